package drift

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Test Fixtures ──────────────────────────────────────────────────────────

type memLogStore struct {
	mu   sync.Mutex
	logs []domain.InferenceLog
}

func (s *memLogStore) AppendLog(entry domain.InferenceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *memLogStore) QueryLogs(f domain.LogFilter) ([]domain.InferenceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.InferenceLog
	for _, l := range s.logs {
		if f.ModelID != "" && l.ModelID != f.ModelID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && l.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !l.Timestamp.Before(f.Until) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *memLogStore) CountLogs(f domain.LogFilter) (int, error) {
	logs, err := s.QueryLogs(f)
	return len(logs), err
}

type memBaselineStore struct {
	mu        sync.Mutex
	baselines map[string]domain.BaselineStats
	corrupted map[string]bool
}

func newMemBaselineStore() *memBaselineStore {
	return &memBaselineStore{
		baselines: make(map[string]domain.BaselineStats),
		corrupted: make(map[string]bool),
	}
}

func (s *memBaselineStore) SaveBaseline(b domain.BaselineStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[b.ModelID] = b
	return nil
}

func (s *memBaselineStore) GetBaseline(modelID string) (*domain.BaselineStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted[modelID] {
		return nil, domain.ErrBaselineCorrupted
	}
	b, ok := s.baselines[modelID]
	if !ok {
		return nil, domain.ErrNoBaseline
	}
	return &b, nil
}

func (s *memBaselineStore) DeleteBaseline(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baselines, modelID)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *memLogStore, *memBaselineStore) {
	t.Helper()
	logs := &memLogStore{}
	baselines := newMemBaselineStore()
	e := New(DefaultConfig(), logs, baselines, zap.NewNop())
	return e, logs, baselines
}

// appendNumerical adds n success logs carrying one numerical feature value.
func appendNumerical(t *testing.T, s *memLogStore, modelID, feature string, values []float64) {
	t.Helper()
	for i, v := range values {
		if err := s.AppendLog(domain.InferenceLog{
			ID:        modelID + "-n-" + string(rune(i)),
			ModelID:   modelID,
			Status:    domain.InferenceSuccess,
			Numerical: map[string]float64{feature: v},
			Timestamp: time.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatalf("AppendLog() error: %v", err)
		}
	}
}

func appendCategorical(t *testing.T, s *memLogStore, modelID, feature string, values []string) {
	t.Helper()
	for i, v := range values {
		if err := s.AppendLog(domain.InferenceLog{
			ID:          modelID + "-c-" + string(rune(i)),
			ModelID:     modelID,
			Status:      domain.InferenceSuccess,
			Categorical: map[string]string{feature: v},
			Timestamp:   time.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatalf("AppendLog() error: %v", err)
		}
	}
}

// ─── Metric Functions ───────────────────────────────────────────────────────

func TestPSI_KnownBuckets(t *testing.T) {
	baseline := map[string]float64{"a": 0.30, "b": 0.40, "c": 0.20, "d": 0.10}
	current := map[string]float64{"a": 0.25, "b": 0.45, "c": 0.25, "d": 0.05}

	score, components := PSI(baseline, current)
	// Σ(cur−base)·ln(cur/base) over the four buckets
	want := 0.0608192
	if math.Abs(score-want) > 1e-6 {
		t.Errorf("PSI = %.7f, want %.7f", score, want)
	}
	if len(components) != 4 {
		t.Errorf("len(components) = %d, want 4", len(components))
	}
	// The d bucket (10% → 5%) contributes the most
	if components["d"] < components["a"] || components["d"] < components["b"] {
		t.Errorf("components = %v, want d dominant", components)
	}
}

func TestPSI_Identical(t *testing.T) {
	dist := map[string]float64{"x": 0.5, "y": 0.3, "z": 0.2}
	score, _ := PSI(dist, dist)
	if score > 1e-12 {
		t.Errorf("PSI(identical) = %v, want 0", score)
	}
}

func TestPSI_DisjointCategories(t *testing.T) {
	baseline := map[string]float64{"a": 0.5, "b": 0.5}
	current := map[string]float64{"c": 0.5, "d": 0.5}

	score, _ := PSI(baseline, current)
	if score < 10 {
		t.Errorf("PSI(disjoint) = %v, want very large", score)
	}
}

func TestKLDivergence_Identical(t *testing.T) {
	p := normalizeCounts([]int{10, 20, 30, 40})
	if kl := KLDivergence(p, p); math.Abs(kl) > 1e-12 {
		t.Errorf("KL(p, p) = %v, want 0", kl)
	}
}

func TestJensenShannon_SymmetricZeroWhenIdentical(t *testing.T) {
	p := normalizeCounts([]int{10, 20, 30, 40})
	q := normalizeCounts([]int{40, 30, 20, 10})
	if js := JensenShannon(p, p); math.Abs(js) > 1e-12 {
		t.Errorf("JS(p, p) = %v, want 0", js)
	}
	if a, b := JensenShannon(p, q), JensenShannon(q, p); math.Abs(a-b) > 1e-12 {
		t.Errorf("JS not symmetric: %v vs %v", a, b)
	}
}

func TestHistogramCounts_ClampsOutOfRange(t *testing.T) {
	edges := []float64{0, 1, 2, 3, 4}
	counts := histogramCounts([]float64{-5, 0.5, 1.5, 3.5, 99}, edges)
	want := []int{2, 1, 0, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("counts = %v, want %v", counts, want)
		}
	}
}

// ─── Severity Policy ────────────────────────────────────────────────────────

func TestBandedPolicy(t *testing.T) {
	p := BandedPolicy{}
	tests := []struct {
		score, threshold float64
		want             domain.DriftSeverity
	}{
		{0.05, 0.2, domain.SeverityNone},
		{0.19, 0.2, domain.SeverityNone},
		{0.20, 0.2, domain.SeverityLow},
		{0.29, 0.2, domain.SeverityLow},
		{0.30, 0.2, domain.SeverityModerate},
		{0.39, 0.2, domain.SeverityModerate},
		{0.40, 0.2, domain.SeverityHigh},
		{5.0, 0.2, domain.SeverityHigh},
		{0.15, 0.1, domain.SeverityModerate},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.score, tt.threshold); got != tt.want {
			t.Errorf("Classify(%v, %v) = %q, want %q", tt.score, tt.threshold, got, tt.want)
		}
	}
}

// ─── Engine Outcomes ────────────────────────────────────────────────────────

func TestCheck_MissingBaseline(t *testing.T) {
	e, _, _ := newTestEngine(t)

	outcome, err := e.Check(context.Background(), "unknown", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !outcome.NoData || outcome.NoDataReason != domain.NoDataMissingBaseline {
		t.Errorf("outcome = %+v, want no_data missing_baseline", outcome)
	}
	if outcome.Report != nil {
		t.Error("no-data outcome must not carry a report")
	}
}

func TestCheck_CorruptedBaselineIsError(t *testing.T) {
	e, _, baselines := newTestEngine(t)
	baselines.corrupted["broken"] = true

	_, err := e.Check(context.Background(), "broken", 0)
	if err == nil {
		t.Fatal("Check() should fail for corrupted baseline")
	}
}

func TestCheck_InsufficientSamples(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(numericalBaseline("m"))

	appendNumerical(t, logs, "m", "age", []float64{30, 31, 32}) // 3 < 30

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !outcome.NoData || outcome.NoDataReason != domain.NoDataInsufficientSamples {
		t.Errorf("outcome = %+v, want no_data insufficient_samples", outcome)
	}
	if outcome.Samples != 3 {
		t.Errorf("Samples = %d, want 3", outcome.Samples)
	}
}

func TestCheck_OldLogsOutsideWindow(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(numericalBaseline("m"))

	// Plenty of logs, all older than the 24h window
	for i := 0; i < 50; i++ {
		logs.AppendLog(domain.InferenceLog{
			ID: "old", ModelID: "m", Status: domain.InferenceSuccess,
			Numerical: map[string]float64{"age": 35},
			Timestamp: time.Now().Add(-48 * time.Hour),
		})
	}

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !outcome.NoData {
		t.Error("stale logs should not satisfy the current window")
	}
}

func TestCheck_WindowOverride(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(numericalBaseline("m"))

	// 48h-old logs are outside the default 24h window but inside 72h.
	for i := 0; i < 50; i++ {
		logs.AppendLog(domain.InferenceLog{
			ID: "old-" + string(rune('a'+i)), ModelID: "m", Status: domain.InferenceSuccess,
			Numerical: map[string]float64{"age": 35},
			Timestamp: time.Now().Add(-48 * time.Hour),
		})
	}

	outcome, err := e.Check(context.Background(), "m", 72*time.Hour)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if outcome.NoData {
		t.Fatal("72h window should pick up the 48h-old logs")
	}
	if outcome.Report.CurrentPeriod != "last_72h" {
		t.Errorf("CurrentPeriod = %q, want last_72h", outcome.Report.CurrentPeriod)
	}
}

// numericalBaseline is an age distribution ~N(35,10) over 100 samples,
// binned into [10,60] with 10 equal bins.
func numericalBaseline(modelID string) domain.BaselineStats {
	return domain.BaselineStats{
		ModelID:     modelID,
		SampleCount: 100,
		Features: map[string]domain.FeatureStats{
			"age": {
				Name: "age", Type: domain.FeatureNumerical,
				Count: 100, Mean: 35, Std: 10, Min: 10, Max: 60, Median: 35,
				Histogram: &domain.Histogram{
					Edges:  []float64{10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60},
					Counts: []int{2, 4, 9, 15, 20, 20, 15, 9, 4, 2},
				},
			},
		},
		CreatedAt: time.Now(),
	}
}

func TestCheck_IdenticalDistributionNoDrift(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(numericalBaseline("m"))

	// Current counts exactly mirror the baseline histogram
	centers := []float64{12.5, 17.5, 22.5, 27.5, 32.5, 37.5, 42.5, 47.5, 52.5, 57.5}
	counts := []int{2, 4, 9, 15, 20, 20, 15, 9, 4, 2}
	var values []float64
	for i, c := range counts {
		for j := 0; j < c; j++ {
			values = append(values, centers[i])
		}
	}
	appendNumerical(t, logs, "m", "age", values)

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if outcome.NoData {
		t.Fatal("expected a report")
	}

	r := outcome.Report.Results[0]
	if r.DriftScore > 1e-9 {
		t.Errorf("DriftScore = %v, want ≈ 0", r.DriftScore)
	}
	if r.Severity != domain.SeverityNone || r.DriftDetected {
		t.Errorf("severity = %q detected = %v, want none/false", r.Severity, r.DriftDetected)
	}
	if outcome.Report.OverallDetected {
		t.Error("OverallDetected = true, want false")
	}
}

func TestCheck_AgeShiftAtLeastModerate(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(numericalBaseline("m"))

	// Current window ~N(40,12) discretized into the baseline bins:
	// the shifted mean piles mass into the upper bins.
	centers := []float64{12.5, 17.5, 22.5, 27.5, 32.5, 37.5, 42.5, 47.5, 52.5, 57.5}
	counts := []int{2, 3, 6, 10, 13, 16, 16, 14, 10, 10}
	var values []float64
	for i, c := range counts {
		for j := 0; j < c; j++ {
			values = append(values, centers[i])
		}
	}
	appendNumerical(t, logs, "m", "age", values)

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if outcome.NoData {
		t.Fatal("expected a report")
	}

	r := outcome.Report.Results[0]
	// Exact KL for these counts is ≈ 0.1595
	if math.Abs(r.DriftScore-0.1595) > 0.001 {
		t.Errorf("DriftScore = %.4f, want ≈ 0.1595", r.DriftScore)
	}
	if !r.DriftDetected {
		t.Error("DriftDetected = false, want true")
	}
	if r.Severity.Rank() < domain.SeverityModerate.Rank() {
		t.Errorf("Severity = %q, want at least moderate", r.Severity)
	}
	if outcome.Report.Summary.MostDrifted != "age" {
		t.Errorf("MostDrifted = %q, want age", outcome.Report.Summary.MostDrifted)
	}
}

func TestCheck_CategoricalKnownPSI(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(domain.BaselineStats{
		ModelID:     "m",
		SampleCount: 100,
		Features: map[string]domain.FeatureStats{
			"plan": {
				Name: "plan", Type: domain.FeatureCategorical,
				Count: 100, UniqueCount: 4,
				Distribution: map[string]int{"a": 30, "b": 40, "c": 20, "d": 10},
			},
		},
		CreatedAt: time.Now(),
	})

	var values []string
	for v, c := range map[string]int{"a": 25, "b": 45, "c": 25, "d": 5} {
		for j := 0; j < c; j++ {
			values = append(values, v)
		}
	}
	appendCategorical(t, logs, "m", "plan", values)

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if outcome.NoData {
		t.Fatal("expected a report")
	}

	r := outcome.Report.Results[0]
	if math.Abs(r.DriftScore-0.0608192) > 1e-6 {
		t.Errorf("PSI = %.7f, want ≈ 0.0608192", r.DriftScore)
	}
	// Below the 0.2 threshold: shift is real but not significant
	if r.DriftDetected || r.Severity != domain.SeverityNone {
		t.Errorf("detected = %v severity = %q, want false/none", r.DriftDetected, r.Severity)
	}
}

func TestCheck_DisjointCategoriesHigh(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	baselines.SaveBaseline(domain.BaselineStats{
		ModelID:     "m",
		SampleCount: 100,
		Features: map[string]domain.FeatureStats{
			"country": {
				Name: "country", Type: domain.FeatureCategorical,
				Count: 100, UniqueCount: 2,
				Distribution: map[string]int{"DE": 50, "FR": 50},
			},
		},
		CreatedAt: time.Now(),
	})

	var values []string
	for i := 0; i < 40; i++ {
		values = append(values, "US", "JP")
	}
	appendCategorical(t, logs, "m", "country", values)

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	r := outcome.Report.Results[0]
	if r.Severity != domain.SeverityHigh {
		t.Errorf("Severity = %q, want high", r.Severity)
	}
	if !outcome.Report.OverallDetected {
		t.Error("OverallDetected = false, want true")
	}
	if outcome.Report.OverallSeverity != domain.SeverityHigh {
		t.Errorf("OverallSeverity = %q, want high", outcome.Report.OverallSeverity)
	}
}

func TestCheck_FeatureMissingFromCurrentSkipped(t *testing.T) {
	e, logs, baselines := newTestEngine(t)
	b := numericalBaseline("m")
	b.Features["income"] = domain.FeatureStats{
		Name: "income", Type: domain.FeatureNumerical, Count: 100,
		Histogram: &domain.Histogram{Edges: []float64{0, 1}, Counts: []int{100}},
	}
	baselines.SaveBaseline(b)

	values := make([]float64, 40)
	for i := range values {
		values[i] = 35
	}
	appendNumerical(t, logs, "m", "age", values)

	outcome, err := e.Check(context.Background(), "m", 0)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if got := len(outcome.Report.Results); got != 1 {
		t.Fatalf("len(Results) = %d, want 1 (income skipped)", got)
	}
	if outcome.Report.Results[0].FeatureName != "age" {
		t.Errorf("analyzed %q, want age", outcome.Report.Results[0].FeatureName)
	}
}
