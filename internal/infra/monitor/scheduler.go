// Package monitor schedules drift checks across deployed models.
// A periodic loop and on-demand calls share the same per-model check
// path: a model is checked by at most one caller at a time, while
// different models fan out with bounded parallelism. One model's
// failure never aborts the batch.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/metrics"
)

// Checker runs a drift check for one model. A zero window means the
// checker's configured default.
type Checker interface {
	Check(ctx context.Context, modelID string, window time.Duration) (domain.CheckOutcome, error)
}

// Config holds scheduler tuning.
type Config struct {
	Interval      time.Duration // periodic check interval
	MaxParallel   int           // bounded fan-out width
	RetentionDays int           // drift report retention
}

// DefaultConfig returns the standard scheduler settings.
func DefaultConfig() Config {
	return Config{
		Interval:      24 * time.Hour,
		MaxParallel:   4,
		RetentionDays: 90,
	}
}

// Scheduler coordinates periodic and on-demand drift checks.
type Scheduler struct {
	cfg      Config
	models   domain.ModelStore
	checker  Checker
	reports  domain.ReportStore
	alerts   domain.AlertStore
	notifier domain.Notifier
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]bool

	// Running global summary, accumulated after each check returns.
	sumMu         sync.Mutex
	totalChecks   int
	driftDetected int
	bySeverity    map[domain.DriftSeverity]int
	lastCheck     map[string]time.Time
}

// New creates a Scheduler.
func New(cfg Config, models domain.ModelStore, checker Checker,
	reports domain.ReportStore, alerts domain.AlertStore,
	notifier domain.Notifier, log *zap.Logger) *Scheduler {

	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultConfig().MaxParallel
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}
	return &Scheduler{
		cfg:        cfg,
		models:     models,
		checker:    checker,
		reports:    reports,
		alerts:     alerts,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
		inflight:   make(map[string]bool),
		bySeverity: make(map[domain.DriftSeverity]int),
		lastCheck:  make(map[string]time.Time),
	}
}

// Run starts the periodic check loop. Call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CheckAll(ctx); err != nil {
				s.log.Error("scheduled drift batch failed", zap.Error(err))
			}
			if n, err := s.reports.PruneReports(s.cfg.RetentionDays); err != nil {
				s.log.Warn("report pruning failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("pruned drift reports", zap.Int("removed", n))
			}
		}
	}
}

// ─── On-Demand Checks ───────────────────────────────────────────────────────

// CheckModel runs one drift check for a model. window overrides the
// engine's configured lookback; zero means the default. Returns
// domain.ErrCheckInFlight if a check for the same model is already
// running, on any path.
func (s *Scheduler) CheckModel(ctx context.Context, modelID string, window time.Duration) (domain.CheckOutcome, error) {
	if !s.acquire(modelID) {
		return domain.CheckOutcome{ModelID: modelID}, fmt.Errorf("%w: %s", domain.ErrCheckInFlight, modelID)
	}
	defer s.release(modelID)
	return s.checkLocked(ctx, modelID, window)
}

// CheckAll fans drift checks out across all deployed models with bounded
// parallelism. Per-model failures are recorded in the batch result, not
// raised; a model deleted mid-batch is skipped.
func (s *Scheduler) CheckAll(ctx context.Context) (*domain.BatchResult, error) {
	deployed, err := s.models.ListByStatus(domain.StatusDeployed)
	if err != nil {
		return nil, fmt.Errorf("list deployed models: %w", err)
	}

	batch := &domain.BatchResult{
		Total:     len(deployed),
		Errors:    make(map[string]string),
		StartedAt: s.now(),
	}

	sem := make(chan struct{}, s.cfg.MaxParallel)
	var wg sync.WaitGroup
	var mu sync.Mutex // guards batch accumulation

	for _, model := range deployed {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if !s.acquire(id) {
				mu.Lock()
				batch.Errors[id] = domain.ErrCheckInFlight.Error()
				batch.FailedChecks++
				mu.Unlock()
				return
			}
			defer s.release(id)

			// Skip models deleted or undeployed since listing
			current, err := s.models.GetModel(id)
			if errors.Is(err, domain.ErrModelNotFound) || (err == nil && !current.Deployed()) {
				mu.Lock()
				batch.Total--
				mu.Unlock()
				return
			}

			outcome, err := s.checkLocked(ctx, id, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				batch.Errors[id] = err.Error()
				batch.FailedChecks++
			case outcome.NoData:
				batch.NoDataChecks++
				batch.Outcomes = append(batch.Outcomes, outcome)
			default:
				batch.SuccessfulChecks++
				batch.Outcomes = append(batch.Outcomes, outcome)
			}
		}(model.ID)
	}
	wg.Wait()

	batch.FinishedAt = s.now()
	metrics.BatchDuration.Observe(batch.FinishedAt.Sub(batch.StartedAt).Seconds())
	s.log.Info("drift batch complete",
		zap.Int("total", batch.Total),
		zap.Int("successful", batch.SuccessfulChecks),
		zap.Int("failed", batch.FailedChecks),
		zap.Int("no_data", batch.NoDataChecks))
	return batch, nil
}

// checkLocked runs the check and applies its side effects. Caller holds
// the model's in-flight slot.
func (s *Scheduler) checkLocked(ctx context.Context, modelID string, window time.Duration) (domain.CheckOutcome, error) {
	outcome, err := s.checker.Check(ctx, modelID, window)
	if err != nil {
		return outcome, err
	}

	s.recordSummary(modelID, outcome)
	if outcome.NoData {
		return outcome, nil
	}

	report := outcome.Report
	if err := s.reports.SaveReport(*report); err != nil {
		return outcome, fmt.Errorf("save report: %w", err)
	}

	if report.OverallDetected {
		s.raiseAlert(ctx, report)
	} else if err := s.alerts.ClearAlert(modelID); err != nil {
		s.log.Warn("clear alert failed", zap.String("model_id", modelID), zap.Error(err))
	}
	s.updateAlertGauge()
	return outcome, nil
}

// raiseAlert replaces the model's active alert and hands it to the
// notifier. Notification failure is logged, never propagated.
func (s *Scheduler) raiseAlert(ctx context.Context, report *domain.DriftReport) {
	var features []string
	for _, r := range report.Results {
		if r.DriftDetected {
			features = append(features, r.FeatureName)
		}
	}
	alert := domain.DriftAlert{
		ID:        uuid.New().String(),
		ModelID:   report.ModelID,
		ReportID:  report.ID,
		Severity:  report.OverallSeverity,
		Features:  features,
		Timestamp: report.Timestamp,
	}

	if err := s.alerts.ReplaceAlert(alert); err != nil {
		s.log.Error("replace alert failed",
			zap.String("model_id", report.ModelID), zap.Error(err))
		return
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, alert); err != nil {
			s.log.Warn("alert notification failed",
				zap.String("model_id", report.ModelID), zap.Error(err))
		}
	}
	s.log.Info("drift alert raised",
		zap.String("model_id", report.ModelID),
		zap.String("severity", string(alert.Severity)),
		zap.Strings("features", features))
}

// ─── In-Flight Guard ────────────────────────────────────────────────────────

func (s *Scheduler) acquire(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[modelID] {
		return false
	}
	s.inflight[modelID] = true
	return true
}

func (s *Scheduler) release(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, modelID)
}

// ─── Global Summary ─────────────────────────────────────────────────────────

func (s *Scheduler) recordSummary(modelID string, outcome domain.CheckOutcome) {
	s.sumMu.Lock()
	defer s.sumMu.Unlock()
	s.totalChecks++
	s.lastCheck[modelID] = s.now()
	if outcome.Report != nil {
		s.bySeverity[outcome.Report.OverallSeverity]++
		if outcome.Report.OverallDetected {
			s.driftDetected++
		}
	}
}

// Summary returns the running global drift view.
func (s *Scheduler) Summary() (domain.DriftSummary, error) {
	alerts, err := s.alerts.ListAlerts()
	if err != nil {
		return domain.DriftSummary{}, fmt.Errorf("list alerts: %w", err)
	}

	s.sumMu.Lock()
	defer s.sumMu.Unlock()
	summary := domain.DriftSummary{
		TotalChecks:      s.totalChecks,
		DriftDetected:    s.driftDetected,
		BySeverity:       make(map[domain.DriftSeverity]int, len(s.bySeverity)),
		ActiveAlerts:     len(alerts),
		LastCheckByModel: make(map[string]time.Time, len(s.lastCheck)),
		GeneratedAt:      s.now(),
	}
	for sev, n := range s.bySeverity {
		summary.BySeverity[sev] = n
	}
	for id, t := range s.lastCheck {
		summary.LastCheckByModel[id] = t
	}
	if s.totalChecks > 0 {
		summary.DetectionRate = float64(s.driftDetected) / float64(s.totalChecks)
	}
	return summary, nil
}

func (s *Scheduler) updateAlertGauge() {
	alerts, err := s.alerts.ListAlerts()
	if err != nil {
		return
	}
	counts := make(map[domain.DriftSeverity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}
	for _, sev := range []domain.DriftSeverity{
		domain.SeverityLow, domain.SeverityModerate, domain.SeverityHigh,
	} {
		metrics.ActiveAlerts.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
}
