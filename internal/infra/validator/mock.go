package validator

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Mock Loader (for testing and local serving without a real runtime) ─────

// MockLoader implements domain.Loader without a model runtime. It accepts
// any structurally complete artifact and serves deterministic predictions,
// which is enough for the lifecycle, gateway, and drift paths.
type MockLoader struct {
	FailLoad    error         // returned by Load when set
	FailPredict error         // returned by every Predict when set
	Delay       time.Duration // per-call artificial latency
}

func NewMockLoader() *MockLoader { return &MockLoader{} }

func (l *MockLoader) Load(ctx context.Context, ref domain.ArtifactRef) (domain.Predictor, error) {
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.FailLoad != nil {
		return nil, l.FailLoad
	}
	return &mockPredictor{version: ref.Version, fail: l.FailPredict, delay: l.Delay}, nil
}

// mockPredictor returns a score derived from a hash of the input keys, so
// the same features always produce the same prediction.
type mockPredictor struct {
	version string
	fail    error
	delay   time.Duration
}

func (p *mockPredictor) Predict(ctx context.Context, input map[string]any) (domain.Prediction, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.Prediction{}, ctx.Err()
		}
	}
	if p.fail != nil {
		return domain.Prediction{}, p.fail
	}
	if len(input) == 0 {
		return domain.Prediction{}, fmt.Errorf("empty feature map")
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New32a()
	for _, k := range keys {
		h.Write([]byte(k))
		fmt.Fprintf(h, "%v", input[k])
	}
	score := float64(h.Sum32()%1000) / 1000.0
	return domain.Prediction{
		Value:        score,
		Confidence:   0.5 + score/2,
		ModelVersion: p.version,
	}, nil
}
