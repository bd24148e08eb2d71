// Package validator checks pushed model artifacts before deployment.
// Validation is pure: it loads the artifact through a Loader, runs one
// smoke prediction, and returns a verdict. It never touches registry
// state — the caller applies the verdict to the lifecycle.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/metrics"
)

// DefaultTimeout bounds a full validation cycle (load + smoke predict).
const DefaultTimeout = 30 * time.Second

// Validator runs artifact validation.
type Validator struct {
	loader  domain.Loader
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// New creates a Validator using the given loader.
func New(loader domain.Loader, log *zap.Logger) *Validator {
	return &Validator{
		loader:  loader,
		timeout: DefaultTimeout,
		log:     log,
		now:     time.Now,
	}
}

// SetTimeout overrides the validation timeout.
func (v *Validator) SetTimeout(d time.Duration) { v.timeout = d }

// Validate checks an artifact: reference completeness, loadability, and a
// single smoke prediction against the sample input. The verdict reason
// classifies the failure; latency covers the full cycle.
func (v *Validator) Validate(ctx context.Context, ref domain.ArtifactRef, sample map[string]any) domain.Verdict {
	start := v.now()
	verdict := v.run(ctx, ref, sample)
	verdict.Latency = v.now().Sub(start)

	outcome := "pass"
	if !verdict.Passed {
		outcome = "fail"
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	v.log.Info("artifact validated",
		zap.String("name", ref.Name),
		zap.String("version", ref.Version),
		zap.Bool("passed", verdict.Passed),
		zap.String("reason", verdict.Reason),
		zap.Duration("latency", verdict.Latency))
	return verdict
}

func (v *Validator) run(ctx context.Context, ref domain.ArtifactRef, sample map[string]any) domain.Verdict {
	if err := checkRef(ref, sample); err != nil {
		return domain.Verdict{Reason: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	predictor, err := v.loader.Load(ctx, ref)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Verdict{Reason: fmt.Sprintf("validation timeout after %s", v.timeout)}
		}
		return domain.Verdict{Reason: "load error: " + err.Error()}
	}

	if _, err := predictor.Predict(ctx, sample); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Verdict{Reason: fmt.Sprintf("validation timeout after %s", v.timeout)}
		}
		return domain.Verdict{Reason: "smoke prediction failed: " + err.Error()}
	}

	return domain.Verdict{Passed: true}
}

// checkRef verifies the artifact reference is structurally complete
// before any load is attempted.
func checkRef(ref domain.ArtifactRef, sample map[string]any) error {
	switch {
	case ref.Name == "":
		return fmt.Errorf("%w: missing name", domain.ErrArtifactIncomplete)
	case ref.Version == "":
		return fmt.Errorf("%w: missing version", domain.ErrArtifactIncomplete)
	case len(sample) == 0:
		return fmt.Errorf("%w: missing sample input", domain.ErrArtifactIncomplete)
	}
	return nil
}
