// Package gateway serves predictions for deployed models and records
// every call in the inference log. Logging is asynchronous: entries go
// through a bounded queue drained by a background goroutine, so a slow
// or unavailable log sink never adds latency to the prediction path.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/metrics"
)

// Config holds gateway tuning.
type Config struct {
	QueueSize      int           // log queue capacity
	PredictTimeout time.Duration // per-call prediction deadline
}

// DefaultConfig returns the standard gateway settings.
func DefaultConfig() Config {
	return Config{
		QueueSize:      1024,
		PredictTimeout: 10 * time.Second,
	}
}

// Stats is a point-in-time view of the gateway's logging pipeline.
type Stats struct {
	QueueDepth  int    `json:"queue_depth"`
	DroppedLogs uint64 `json:"dropped_logs"`
}

// Gateway routes predictions to installed predictors.
type Gateway struct {
	cfg    Config
	models domain.ModelStore
	logs   domain.LogStore
	log    *zap.Logger
	now    func() time.Time

	mu         sync.RWMutex
	predictors map[string]domain.Predictor

	queue chan domain.InferenceLog
	drops atomic.Uint64
	done  chan struct{}
}

// New creates a Gateway. Call Start before serving predictions and
// Close on shutdown.
func New(cfg Config, models domain.ModelStore, logs domain.LogStore, log *zap.Logger) *Gateway {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = DefaultConfig().PredictTimeout
	}
	return &Gateway{
		cfg:        cfg,
		models:     models,
		logs:       logs,
		log:        log,
		now:        time.Now,
		predictors: make(map[string]domain.Predictor),
		queue:      make(chan domain.InferenceLog, cfg.QueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the log drain goroutine.
func (g *Gateway) Start() {
	go g.drain()
}

// Close stops accepting log entries and waits for the queue to drain.
func (g *Gateway) Close() {
	close(g.queue)
	<-g.done
}

// Install registers the predictor serving a deployed model version.
func (g *Gateway) Install(modelID string, p domain.Predictor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.predictors[modelID] = p
}

// Remove drops the predictor for a model.
func (g *Gateway) Remove(modelID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.predictors, modelID)
}

// ─── Prediction Path ────────────────────────────────────────────────────────

// Predict runs one prediction against a deployed model. Every call,
// successful or not, produces exactly one inference log entry.
// A model re-validating a new version keeps serving through the
// previously installed predictor until the new cycle terminates.
func (g *Gateway) Predict(ctx context.Context, modelID string, features map[string]any) (domain.Prediction, error) {
	model, err := g.models.GetModel(modelID)
	if err != nil {
		return domain.Prediction{}, err
	}

	g.mu.RLock()
	predictor, ok := g.predictors[modelID]
	g.mu.RUnlock()

	serving := model.Deployed() || (model.Status == domain.StatusValidating && ok)
	if !serving {
		return domain.Prediction{}, fmt.Errorf("%w: %s is %s", domain.ErrModelNotDeployed, modelID, model.Status)
	}
	if !ok {
		return domain.Prediction{}, fmt.Errorf("%w: no predictor installed for %s", domain.ErrModelNotDeployed, modelID)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.PredictTimeout)
	defer cancel()

	start := g.now()
	prediction, err := predictor.Predict(ctx, features)
	latency := g.now().Sub(start)

	status := domain.InferenceSuccess
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			status = domain.InferenceTimeout
		} else {
			status = domain.InferenceError
		}
	}

	g.enqueue(buildEntry(modelID, features, prediction, latency, status, errMsg, start))

	metrics.PredictionsTotal.WithLabelValues(modelID, string(status)).Inc()
	metrics.PredictionLatency.WithLabelValues(modelID).Observe(latency.Seconds())

	if err != nil {
		return domain.Prediction{}, fmt.Errorf("predict %s: %w", modelID, err)
	}
	return prediction, nil
}

// Info returns model metadata for a registered model.
func (g *Gateway) Info(modelID string) (*domain.Model, error) {
	return g.models.GetModel(modelID)
}

// HealthStatus describes a model's serving readiness.
type HealthStatus struct {
	ModelID           string             `json:"model_id"`
	Status            domain.ModelStatus `json:"status"`
	ReadyForInference bool               `json:"ready_for_inference"`
	Error             string             `json:"error,omitempty"`
	CheckedAt         time.Time          `json:"checked_at"`
}

// Health reports whether a model is ready to serve predictions.
func (g *Gateway) Health(modelID string) (*HealthStatus, error) {
	model, err := g.models.GetModel(modelID)
	if err != nil {
		return nil, err
	}
	return &HealthStatus{
		ModelID:           modelID,
		Status:            model.Status,
		ReadyForInference: model.Deployed(),
		Error:             model.Error,
		CheckedAt:         g.now(),
	}, nil
}

// Stats returns the logging pipeline counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		QueueDepth:  len(g.queue),
		DroppedLogs: g.drops.Load(),
	}
}

// ─── Async Logging ──────────────────────────────────────────────────────────

// enqueue hands an entry to the drain goroutine without blocking. A full
// queue drops the entry and counts it; the prediction already returned.
func (g *Gateway) enqueue(entry domain.InferenceLog) {
	select {
	case g.queue <- entry:
		metrics.LogQueueDepth.Set(float64(len(g.queue)))
	default:
		g.drops.Add(1)
		metrics.LogDropsTotal.Inc()
		g.log.Warn("inference log dropped: queue full",
			zap.String("model_id", entry.ModelID))
	}
}

func (g *Gateway) drain() {
	defer close(g.done)
	for entry := range g.queue {
		if err := g.logs.AppendLog(entry); err != nil {
			g.drops.Add(1)
			metrics.LogDropsTotal.Inc()
			g.log.Warn("inference log dropped: sink failure",
				zap.String("model_id", entry.ModelID),
				zap.Error(err))
		}
		metrics.LogQueueDepth.Set(float64(len(g.queue)))
	}
}

func buildEntry(modelID string, features map[string]any, prediction domain.Prediction,
	latency time.Duration, status domain.InferenceStatus, errMsg string, ts time.Time) domain.InferenceLog {

	numerical, categorical := domain.SplitFeatures(features)
	types := make(map[string]domain.FeatureType, len(features))
	names := make([]string, 0, len(features))
	for name := range numerical {
		types[name] = domain.FeatureNumerical
		names = append(names, name)
	}
	for name := range categorical {
		types[name] = domain.FeatureCategorical
		names = append(names, name)
	}
	sort.Strings(names)

	ms := latency.Milliseconds()
	return domain.InferenceLog{
		ID:           uuid.New().String(),
		ModelID:      modelID,
		Features:     features,
		Numerical:    numerical,
		Categorical:  categorical,
		Prediction:   prediction,
		LatencyMs:    ms,
		Status:       status,
		Error:        errMsg,
		Timestamp:    ts,
		FeatureCount: len(names),
		FeatureNames: names,
		FeatureTypes: types,
		LatencyClass: domain.ClassifyLatency(ms),
	}
}
