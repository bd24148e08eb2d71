// Package baseline computes reference feature statistics from a model's
// reference dataset. The resulting snapshot is the drift comparison
// target: numerical features keep their histogram bin edges so live
// traffic can be discretized into the same bins later.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// topCategories caps the most-common list per categorical feature.
const topCategories = 10

// Builder computes and stores baseline statistics.
type Builder struct {
	store domain.BaselineStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Builder backed by the given store.
func New(store domain.BaselineStore, log *zap.Logger) *Builder {
	return &Builder{store: store, log: log, now: time.Now}
}

// Build computes baseline statistics from reference data: one column of
// values per feature. Nil values count as missing and are excluded from
// all aggregates. Returns domain.ErrEmptyReference when no feature has
// any observed value.
func (b *Builder) Build(ref map[string][]any) (*domain.BaselineStats, error) {
	stats := &domain.BaselineStats{
		Features:  make(map[string]domain.FeatureStats, len(ref)),
		Source:    "reference_data",
		CreatedAt: b.now(),
	}

	for name, column := range ref {
		fs := featureStats(name, column)
		if fs.Count > 0 && fs.Count > stats.SampleCount {
			stats.SampleCount = fs.Count
		}
		stats.Features[name] = fs
	}

	if stats.SampleCount == 0 {
		return nil, domain.ErrEmptyReference
	}
	return stats, nil
}

// BuildFor computes baseline statistics for a model version and persists
// them, replacing any previous baseline. Called on every deploy.
func (b *Builder) BuildFor(modelID, version string, ref map[string][]any) (*domain.BaselineStats, error) {
	stats, err := b.Build(ref)
	if err != nil {
		return nil, fmt.Errorf("build baseline for %s: %w", modelID, err)
	}
	stats.ModelID = modelID
	stats.Version = version

	if err := b.store.SaveBaseline(*stats); err != nil {
		return nil, fmt.Errorf("save baseline for %s: %w", modelID, err)
	}
	b.log.Info("baseline built",
		zap.String("model_id", modelID),
		zap.String("version", version),
		zap.Int("samples", stats.SampleCount),
		zap.Int("features", len(stats.Features)))
	return stats, nil
}

// ─── Per-Feature Statistics ─────────────────────────────────────────────────

func featureStats(name string, column []any) domain.FeatureStats {
	fs := domain.FeatureStats{Name: name}

	var observed []any
	for _, v := range column {
		if v == nil {
			fs.MissingCount++
			continue
		}
		observed = append(observed, v)
	}
	fs.Count = len(observed)
	if fs.Count == 0 {
		fs.Type = domain.FeatureCategorical
		return fs
	}

	if nums, ok := asFloats(observed); ok {
		fs.Type = domain.FeatureNumerical
		numericalStats(&fs, nums)
	} else {
		fs.Type = domain.FeatureCategorical
		categoricalStats(&fs, observed)
	}
	return fs
}

func numericalStats(fs *domain.FeatureStats, values []float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	fs.Min = sorted[0]
	fs.Max = sorted[len(sorted)-1]
	fs.Mean = mean(values)
	fs.Std = std(values, fs.Mean)
	fs.Median = percentile(sorted, 50)
	fs.Percentiles = domain.Percentiles{
		P25: percentile(sorted, 25),
		P75: percentile(sorted, 75),
		P90: percentile(sorted, 90),
		P95: percentile(sorted, 95),
	}
	fs.Histogram = histogram(sorted)
}

func categoricalStats(fs *domain.FeatureStats, values []any) {
	dist := make(map[string]int)
	for _, v := range values {
		dist[fmt.Sprint(v)]++
	}
	fs.Distribution = dist
	fs.UniqueCount = len(dist)

	common := make([]domain.ValueCount, 0, len(dist))
	for v, c := range dist {
		common = append(common, domain.ValueCount{Value: v, Count: c})
	}
	sort.Slice(common, func(i, j int) bool {
		if common[i].Count != common[j].Count {
			return common[i].Count > common[j].Count
		}
		return common[i].Value < common[j].Value
	})
	if len(common) > topCategories {
		common = common[:topCategories]
	}
	fs.MostCommon = common
}

// ─── Numerical Helpers ──────────────────────────────────────────────────────

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// std is the population standard deviation.
func std(values []float64, mu float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile computes the p-th percentile of sorted values with linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// histogram builds a fixed-count equal-width histogram over the observed
// range. All-identical values get a single bin [v-0.5, v+0.5].
func histogram(sorted []float64) *domain.Histogram {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return &domain.Histogram{
			Edges:  []float64{lo - 0.5, lo + 0.5},
			Counts: []int{len(sorted)},
		}
	}

	bins := domain.HistogramBins
	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi // avoid float drift on the last edge

	counts := make([]int, bins)
	for _, v := range sorted {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1 // max value falls in the last bin
		}
		counts[idx]++
	}
	return &domain.Histogram{Edges: edges, Counts: counts}
}

// asFloats coerces a column to float64s. Succeeds only when every value
// is numeric; bools are not numbers.
func asFloats(values []any) ([]float64, bool) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := domain.NumericValue(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
