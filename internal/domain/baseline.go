// Package domain — baseline statistics types.
// A baseline is the reference feature-distribution snapshot computed from
// training/reference data at deployment time. It is immutable per deployed
// version and recomputed only on redeploy.
package domain

import "time"

// HistogramBins is the fixed bin count for numerical feature histograms.
// Bin edges are persisted so the drift engine can discretize live traffic
// into the same bins as the baseline.
const HistogramBins = 10

// Histogram is a fixed-bin equal-width histogram.
type Histogram struct {
	Edges  []float64 `json:"edges"`  // len = bins+1
	Counts []int     `json:"counts"` // len = bins
}

// Percentiles holds the interpolated percentiles of a numerical feature.
type Percentiles struct {
	P25 float64 `json:"p25"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

// ValueCount pairs a categorical value with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FeatureStats holds reference statistics for one feature. Exactly one of
// the numerical/categorical sections is populated, per Type.
type FeatureStats struct {
	Name         string      `json:"name"`
	Type         FeatureType `json:"type"`
	Count        int         `json:"count"`
	MissingCount int         `json:"missing_count"`

	// Numerical
	Mean        float64     `json:"mean,omitempty"`
	Std         float64     `json:"std,omitempty"`
	Min         float64     `json:"min,omitempty"`
	Max         float64     `json:"max,omitempty"`
	Median      float64     `json:"median,omitempty"`
	Percentiles Percentiles `json:"percentiles,omitempty"`
	Histogram   *Histogram  `json:"histogram,omitempty"`

	// Categorical
	UniqueCount  int            `json:"unique_count,omitempty"`
	MostCommon   []ValueCount   `json:"most_common,omitempty"`
	Distribution map[string]int `json:"distribution,omitempty"` // value → count
}

// BaselineStats is the drift comparison target for one deployed model.
type BaselineStats struct {
	ModelID     string                  `json:"model_id"`
	Version     string                  `json:"version,omitempty"`
	SampleCount int                     `json:"sample_count"`
	Features    map[string]FeatureStats `json:"features"`
	Source      string                  `json:"source,omitempty"` // e.g. "reference_data"
	CreatedAt   time.Time               `json:"created_at"`
}

// Probabilities converts a categorical distribution to probabilities.
func (f *FeatureStats) Probabilities() map[string]float64 {
	if f.Count == 0 || len(f.Distribution) == 0 {
		return nil
	}
	probs := make(map[string]float64, len(f.Distribution))
	for v, c := range f.Distribution {
		probs[v] = float64(c) / float64(f.Count)
	}
	return probs
}
