// Package drift compares live inference traffic against a model's
// baseline statistics. Categorical features are scored with the
// Population Stability Index, numerical features with KL divergence
// over the baseline's persisted histogram bins. Severity grading is a
// pluggable policy.
package drift

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/metrics"
)

// Config holds drift detection tuning.
type Config struct {
	PSIThreshold float64       // categorical drift threshold
	KLThreshold  float64       // numerical drift threshold
	MinSamples   int           // minimum current-window samples for a check
	Window       time.Duration // current-window lookback
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		PSIThreshold: 0.2,
		KLThreshold:  0.1,
		MinSamples:   30,
		Window:       24 * time.Hour,
	}
}

// Engine runs drift checks for one model at a time.
type Engine struct {
	cfg       Config
	logs      domain.LogStore
	baselines domain.BaselineStore
	severity  SeverityPolicy
	log       *zap.Logger
	now       func() time.Time
}

// New creates an Engine with the banded severity policy.
func New(cfg Config, logs domain.LogStore, baselines domain.BaselineStore, log *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		logs:      logs,
		baselines: baselines,
		severity:  BandedPolicy{},
		log:       log,
		now:       time.Now,
	}
}

// SetSeverityPolicy replaces the severity grading policy.
func (e *Engine) SetSeverityPolicy(p SeverityPolicy) { e.severity = p }

// Check compares the model's current inference window against its
// baseline. window overrides the configured lookback; zero means the
// configured default. A missing baseline or an undersized window is a
// valid no-data outcome, not an error; a corrupted baseline is an error.
func (e *Engine) Check(ctx context.Context, modelID string, window time.Duration) (domain.CheckOutcome, error) {
	if window <= 0 {
		window = e.cfg.Window
	}
	outcome := domain.CheckOutcome{ModelID: modelID}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	baseline, err := e.baselines.GetBaseline(modelID)
	if errors.Is(err, domain.ErrNoBaseline) {
		outcome.NoData = true
		outcome.NoDataReason = domain.NoDataMissingBaseline
		metrics.DriftChecksTotal.WithLabelValues("no_data").Inc()
		return outcome, nil
	}
	if err != nil {
		metrics.DriftChecksTotal.WithLabelValues("error").Inc()
		return outcome, fmt.Errorf("load baseline: %w", err)
	}

	now := e.now()
	logs, err := e.logs.QueryLogs(domain.LogFilter{
		ModelID: modelID,
		Status:  domain.InferenceSuccess,
		Since:   now.Add(-window),
		Limit:   domain.LogLimitNone, // a window is never subsampled
	})
	if err != nil {
		metrics.DriftChecksTotal.WithLabelValues("error").Inc()
		return outcome, fmt.Errorf("query logs: %w", err)
	}

	outcome.Samples = len(logs)
	if len(logs) < e.cfg.MinSamples {
		outcome.NoData = true
		outcome.NoDataReason = domain.NoDataInsufficientSamples
		metrics.DriftChecksTotal.WithLabelValues("no_data").Inc()
		e.log.Info("drift check: insufficient samples",
			zap.String("model_id", modelID),
			zap.Int("samples", len(logs)),
			zap.Int("min_samples", e.cfg.MinSamples))
		return outcome, nil
	}

	numCols, catCols := extractFeatures(logs)
	report := e.buildReport(modelID, baseline, numCols, catCols, len(logs), now, window)
	outcome.Report = report

	metrics.DriftChecksTotal.WithLabelValues("report").Inc()
	for _, r := range report.Results {
		metrics.DriftScore.WithLabelValues(modelID, r.FeatureName).Set(r.DriftScore)
	}
	e.log.Info("drift check complete",
		zap.String("model_id", modelID),
		zap.Bool("drift_detected", report.OverallDetected),
		zap.String("severity", string(report.OverallSeverity)),
		zap.Int("features", len(report.Results)))

	return outcome, nil
}

// buildReport scores every baseline feature that also appears in the
// current window. Features absent from current traffic are skipped.
func (e *Engine) buildReport(modelID string, baseline *domain.BaselineStats,
	numCols map[string][]float64, catCols map[string][]string,
	samples int, now time.Time, window time.Duration) *domain.DriftReport {

	names := make([]string, 0, len(baseline.Features))
	for name := range baseline.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []domain.DriftResult
	for _, name := range names {
		fs := baseline.Features[name]
		var r *domain.DriftResult
		switch fs.Type {
		case domain.FeatureNumerical:
			if vals := numCols[name]; len(vals) > 0 && fs.Histogram != nil {
				r = e.numericalDrift(name, &fs, vals)
			}
		case domain.FeatureCategorical:
			if vals := catCols[name]; len(vals) > 0 {
				r = e.categoricalDrift(name, &fs, vals)
			}
		}
		if r == nil {
			continue
		}
		r.BaselineSamples = fs.Count
		r.CurrentSamples = samples
		results = append(results, *r)
	}

	report := &domain.DriftReport{
		ID:              uuid.New().String(),
		ModelID:         modelID,
		Timestamp:       now,
		OverallSeverity: domain.SeverityNone,
		Results:         results,
		BaselinePeriod:  "reference_data",
		CurrentPeriod:   fmt.Sprintf("last_%dh", int(window.Hours())),
	}

	summary := domain.ReportSummary{
		FeaturesAnalyzed: len(results),
		CurrentSamples:   samples,
	}
	for _, r := range results {
		report.OverallSeverity = domain.MaxSeverity(report.OverallSeverity, r.Severity)
		if r.DriftDetected {
			report.OverallDetected = true
			summary.FeaturesDrifted++
		}
		summary.AverageScore += r.DriftScore
		if r.DriftScore > summary.HighestScore {
			summary.HighestScore = r.DriftScore
			summary.MostDrifted = r.FeatureName
		}
	}
	if len(results) > 0 {
		summary.AverageScore /= float64(len(results))
		summary.DetectionRate = float64(summary.FeaturesDrifted) / float64(len(results))
	}
	report.Summary = summary
	return report
}

func (e *Engine) categoricalDrift(name string, fs *domain.FeatureStats, values []string) *domain.DriftResult {
	current := make(map[string]float64, fs.UniqueCount)
	for _, v := range values {
		current[v] += 1.0 / float64(len(values))
	}

	score, components := PSI(fs.Probabilities(), current)
	severity := e.severity.Classify(score, e.cfg.PSIThreshold)

	return &domain.DriftResult{
		FeatureName:   name,
		FeatureType:   domain.FeatureCategorical,
		DriftScore:    score,
		Threshold:     e.cfg.PSIThreshold,
		DriftDetected: severity != domain.SeverityNone,
		Severity:      severity,
		Metrics: map[string]any{
			"psi_components":        components,
			"baseline_distribution": fs.Probabilities(),
			"current_distribution":  current,
		},
	}
}

func (e *Engine) numericalDrift(name string, fs *domain.FeatureStats, values []float64) *domain.DriftResult {
	counts := histogramCounts(values, fs.Histogram.Edges)
	p := normalizeCounts(counts)
	q := normalizeCounts(fs.Histogram.Counts)

	score := KLDivergence(p, q)
	severity := e.severity.Classify(score, e.cfg.KLThreshold)

	curMean, curStd := meanStd(values)
	return &domain.DriftResult{
		FeatureName:   name,
		FeatureType:   domain.FeatureNumerical,
		DriftScore:    score,
		Threshold:     e.cfg.KLThreshold,
		DriftDetected: severity != domain.SeverityNone,
		Severity:      severity,
		Metrics: map[string]any{
			"kl_divergence":         score,
			"hellinger_distance":    Hellinger(p, q),
			"js_divergence":         JensenShannon(p, q),
			"baseline_mean":         fs.Mean,
			"current_mean":          curMean,
			"baseline_std":          fs.Std,
			"current_std":           curStd,
			"baseline_distribution": q,
			"current_distribution":  p,
		},
	}
}

// extractFeatures collates per-feature columns from inference logs,
// using the typed feature maps captured at log time.
func extractFeatures(logs []domain.InferenceLog) (map[string][]float64, map[string][]string) {
	numCols := make(map[string][]float64)
	catCols := make(map[string][]string)
	for _, entry := range logs {
		for name, v := range entry.Numerical {
			numCols[name] = append(numCols[name], v)
		}
		for name, v := range entry.Categorical {
			catCols[name] = append(catCols[name], v)
		}
	}
	return numCols, catCols
}

func meanStd(values []float64) (float64, float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mu := sum / float64(len(values))
	if len(values) < 2 {
		return mu, 0
	}
	varSum := 0.0
	for _, v := range values {
		d := v - mu
		varSum += d * d
	}
	return mu, math.Sqrt(varSum / float64(len(values)))
}
