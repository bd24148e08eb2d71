package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Test Fixtures ──────────────────────────────────────────────────────────

type memModelStore struct {
	mu     sync.Mutex
	models map[string]domain.Model
}

func newMemModelStore() *memModelStore {
	return &memModelStore{models: make(map[string]domain.Model)}
}

func (s *memModelStore) SaveModel(m domain.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[m.ID] = m
	return nil
}

func (s *memModelStore) GetModel(id string) (*domain.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[id]
	if !ok {
		return nil, domain.ErrModelNotFound
	}
	return &m, nil
}

func (s *memModelStore) ListModels() ([]domain.Model, error) { return nil, nil }
func (s *memModelStore) DeleteModel(id string) error         { return nil }
func (s *memModelStore) ListByStatus(domain.ModelStatus) ([]domain.Model, error) {
	return nil, nil
}

type memLogStore struct {
	mu   sync.Mutex
	logs []domain.InferenceLog
	fail error         // AppendLog error when set
	gate chan struct{} // AppendLog blocks on receive when set
}

func (s *memLogStore) AppendLog(entry domain.InferenceLog) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *memLogStore) QueryLogs(f domain.LogFilter) ([]domain.InferenceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.InferenceLog(nil), s.logs...), nil
}

func (s *memLogStore) CountLogs(f domain.LogFilter) (int, error) {
	logs, _ := s.QueryLogs(f)
	return len(logs), nil
}

type funcPredictor struct {
	fn func(ctx context.Context, input map[string]any) (domain.Prediction, error)
}

func (p *funcPredictor) Predict(ctx context.Context, input map[string]any) (domain.Prediction, error) {
	return p.fn(ctx, input)
}

func okPredictor() *funcPredictor {
	return &funcPredictor{fn: func(_ context.Context, _ map[string]any) (domain.Prediction, error) {
		return domain.Prediction{Value: 0.82, Confidence: 0.9, ModelVersion: "1.0.0"}, nil
	}}
}

func newTestGateway(t *testing.T) (*Gateway, *memModelStore, *memLogStore) {
	t.Helper()
	models := newMemModelStore()
	logs := &memLogStore{}
	g := New(DefaultConfig(), models, logs, zap.NewNop())
	g.Start()
	return g, models, logs
}

func deployModel(t *testing.T, s *memModelStore, id string) {
	t.Helper()
	if err := s.SaveModel(domain.Model{
		ID: id, Name: id, Version: "1.0.0",
		Status:    domain.StatusDeployed,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("SaveModel() error: %v", err)
	}
}

// ─── Prediction Path ────────────────────────────────────────────────────────

func TestPredict_Success(t *testing.T) {
	g, models, logs := newTestGateway(t)
	deployModel(t, models, "fraud")
	g.Install("fraud", okPredictor())

	pred, err := g.Predict(context.Background(), "fraud", map[string]any{
		"age": 35.0, "country": "DE",
	})
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if pred.Value != 0.82 {
		t.Errorf("Value = %v, want 0.82", pred.Value)
	}

	g.Close() // drain
	entries, _ := logs.QueryLogs(domain.LogFilter{})
	if len(entries) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Status != domain.InferenceSuccess {
		t.Errorf("Status = %q, want success", entry.Status)
	}
	if entry.Numerical["age"] != 35.0 {
		t.Errorf("Numerical[age] = %v, want 35", entry.Numerical["age"])
	}
	if entry.Categorical["country"] != "DE" {
		t.Errorf("Categorical[country] = %q, want DE", entry.Categorical["country"])
	}
	if entry.FeatureCount != 2 {
		t.Errorf("FeatureCount = %d, want 2", entry.FeatureCount)
	}
	if entry.LatencyClass != "fast" {
		t.Errorf("LatencyClass = %q, want fast", entry.LatencyClass)
	}
}

func TestPredict_NotDeployed(t *testing.T) {
	g, models, _ := newTestGateway(t)
	defer g.Close()

	models.SaveModel(domain.Model{ID: "pending", Status: domain.StatusPending})
	_, err := g.Predict(context.Background(), "pending", map[string]any{"x": 1.0})
	if !errors.Is(err, domain.ErrModelNotDeployed) {
		t.Errorf("Predict(pending) = %v, want ErrModelNotDeployed", err)
	}

	_, err = g.Predict(context.Background(), "ghost", map[string]any{"x": 1.0})
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Errorf("Predict(ghost) = %v, want ErrModelNotFound", err)
	}
}

func TestPredict_ServesDuringRevalidation(t *testing.T) {
	g, models, _ := newTestGateway(t)
	defer g.Close()

	deployModel(t, models, "fraud")
	g.Install("fraud", okPredictor())

	// A new version push flips the model to validating while the
	// previous predictor stays installed.
	m, _ := models.GetModel("fraud")
	m.Status = domain.StatusValidating
	m.Version = "2.0.0"
	models.SaveModel(*m)

	pred, err := g.Predict(context.Background(), "fraud", map[string]any{"x": 1.0})
	if err != nil {
		t.Fatalf("Predict() during revalidation error: %v", err)
	}
	if pred.Value != 0.82 {
		t.Errorf("Value = %v, want 0.82", pred.Value)
	}
}

func TestPredict_ValidatingWithoutPredictorRejected(t *testing.T) {
	g, models, _ := newTestGateway(t)
	defer g.Close()

	// First-time validation: no predictor has ever been installed.
	models.SaveModel(domain.Model{ID: "fresh", Status: domain.StatusValidating})
	_, err := g.Predict(context.Background(), "fresh", map[string]any{"x": 1.0})
	if !errors.Is(err, domain.ErrModelNotDeployed) {
		t.Errorf("Predict(fresh) = %v, want ErrModelNotDeployed", err)
	}
}

func TestPredict_ErrorPathStillLogged(t *testing.T) {
	g, models, logs := newTestGateway(t)
	deployModel(t, models, "fraud")
	g.Install("fraud", &funcPredictor{fn: func(_ context.Context, _ map[string]any) (domain.Prediction, error) {
		return domain.Prediction{}, errors.New("shape mismatch")
	}})

	_, err := g.Predict(context.Background(), "fraud", map[string]any{"x": 1.0})
	if err == nil {
		t.Fatal("Predict() should return the predictor error")
	}

	g.Close()
	entries, _ := logs.QueryLogs(domain.LogFilter{})
	if len(entries) != 1 {
		t.Fatalf("len(logs) = %d, want 1 (errors are logged too)", len(entries))
	}
	if entries[0].Status != domain.InferenceError {
		t.Errorf("Status = %q, want error", entries[0].Status)
	}
	if entries[0].Error == "" {
		t.Error("Error message should be recorded")
	}
}

func TestPredict_Timeout(t *testing.T) {
	models := newMemModelStore()
	logs := &memLogStore{}
	cfg := DefaultConfig()
	cfg.PredictTimeout = 20 * time.Millisecond
	g := New(cfg, models, logs, zap.NewNop())
	g.Start()

	deployModel(t, models, "slow")
	g.Install("slow", &funcPredictor{fn: func(ctx context.Context, _ map[string]any) (domain.Prediction, error) {
		<-ctx.Done()
		return domain.Prediction{}, ctx.Err()
	}})

	_, err := g.Predict(context.Background(), "slow", map[string]any{"x": 1.0})
	if err == nil {
		t.Fatal("Predict() should time out")
	}

	g.Close()
	entries, _ := logs.QueryLogs(domain.LogFilter{})
	if len(entries) != 1 || entries[0].Status != domain.InferenceTimeout {
		t.Errorf("logged status = %v, want timeout", entries)
	}
}

// ─── Non-Blocking Logging ───────────────────────────────────────────────────

func TestPredict_QueueFullDropsNotBlocks(t *testing.T) {
	models := newMemModelStore()
	gate := make(chan struct{})
	logs := &memLogStore{gate: gate}
	cfg := DefaultConfig()
	cfg.QueueSize = 1
	g := New(cfg, models, logs, zap.NewNop())
	g.Start()

	deployModel(t, models, "m")
	g.Install("m", okPredictor())

	// First entry occupies the blocked drain goroutine, second fills the
	// queue, the rest must drop without delaying predictions.
	for i := 0; i < 5; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := g.Predict(context.Background(), "m", map[string]any{"i": float64(i)}); err != nil {
				t.Errorf("Predict() error: %v", err)
			}
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Predict() blocked on a full log queue")
		}
	}

	if g.Stats().DroppedLogs == 0 {
		t.Error("DroppedLogs = 0, want drops counted")
	}

	close(gate) // release the sink
	g.Close()
}

func TestPredict_SinkFailureCountsDrops(t *testing.T) {
	models := newMemModelStore()
	logs := &memLogStore{fail: errors.New("disk full")}
	g := New(DefaultConfig(), models, logs, zap.NewNop())
	g.Start()

	deployModel(t, models, "m")
	g.Install("m", okPredictor())

	if _, err := g.Predict(context.Background(), "m", map[string]any{"x": 1.0}); err != nil {
		t.Fatalf("Predict() error: %v (sink failures must not fail predictions)", err)
	}

	g.Close()
	if g.Stats().DroppedLogs != 1 {
		t.Errorf("DroppedLogs = %d, want 1", g.Stats().DroppedLogs)
	}
}

// ─── Info and Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	g, models, _ := newTestGateway(t)
	defer g.Close()

	deployModel(t, models, "live")
	models.SaveModel(domain.Model{
		ID: "broken", Status: domain.StatusFailed, Error: "load error: bad artifact",
	})

	h, err := g.Health("live")
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if !h.ReadyForInference {
		t.Error("ReadyForInference = false, want true")
	}

	h, err = g.Health("broken")
	if err != nil {
		t.Fatalf("Health(broken) error: %v", err)
	}
	if h.ReadyForInference {
		t.Error("ReadyForInference = true, want false")
	}
	if h.Error != "load error: bad artifact" {
		t.Errorf("Error = %q, want last validation error", h.Error)
	}
}

func TestRemove(t *testing.T) {
	g, models, _ := newTestGateway(t)
	defer g.Close()

	deployModel(t, models, "m")
	g.Install("m", okPredictor())
	g.Remove("m")

	_, err := g.Predict(context.Background(), "m", map[string]any{"x": 1.0})
	if !errors.Is(err, domain.ErrModelNotDeployed) {
		t.Errorf("Predict() after Remove = %v, want ErrModelNotDeployed", err)
	}
}
