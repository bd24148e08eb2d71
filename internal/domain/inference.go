// Package domain — inference logging types.
// Every gateway call produces exactly one InferenceLog entry, success or
// not. Entries are append-only and queried by time window.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// InferenceStatus classifies the outcome of a single prediction call.
type InferenceStatus string

const (
	InferenceSuccess InferenceStatus = "success"
	InferenceError   InferenceStatus = "error"
	InferenceTimeout InferenceStatus = "timeout"
)

// FeatureType distinguishes numerical from categorical features.
type FeatureType string

const (
	FeatureNumerical   FeatureType = "numerical"
	FeatureCategorical FeatureType = "categorical"
)

// Prediction is the payload returned by a model's predict function.
type Prediction struct {
	Value        any     `json:"value"`
	Confidence   float64 `json:"confidence,omitempty"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// InferenceLog records one prediction call against a deployed model.
// Never mutated after creation.
type InferenceLog struct {
	ID          string             `json:"id"`
	ModelID     string             `json:"model_id"`
	Features    map[string]any     `json:"features"`
	Numerical   map[string]float64 `json:"numerical_features,omitempty"`
	Categorical map[string]string  `json:"categorical_features,omitempty"`
	Prediction  Prediction         `json:"prediction"`
	LatencyMs   int64              `json:"latency_ms"`
	Status      InferenceStatus    `json:"status"`
	Error       string             `json:"error,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`

	// Derived feature metadata, captured at log time for monitoring.
	FeatureCount int                    `json:"feature_count"`
	FeatureNames []string               `json:"feature_names,omitempty"`
	FeatureTypes map[string]FeatureType `json:"feature_types,omitempty"`
	LatencyClass string                 `json:"latency_class,omitempty"`
}

// ClassifyLatency buckets a latency measurement for monitoring.
func ClassifyLatency(ms int64) string {
	switch {
	case ms < 100:
		return "fast"
	case ms < 500:
		return "medium"
	case ms < 2000:
		return "slow"
	default:
		return "very_slow"
	}
}

// NumericValue coerces a feature value to float64. Bools are not
// numbers; everything non-numeric is treated as categorical.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// SplitFeatures partitions a flat feature map into numerical and
// categorical views. Nil values are dropped from both.
func SplitFeatures(features map[string]any) (map[string]float64, map[string]string) {
	numerical := make(map[string]float64)
	categorical := make(map[string]string)
	for name, v := range features {
		if v == nil {
			continue
		}
		if f, ok := NumericValue(v); ok {
			numerical[name] = f
		} else {
			categorical[name] = fmt.Sprint(v)
		}
	}
	return numerical, categorical
}

// LogLimitNone disables the row cap on a log query. Drift checks use
// it so a time window is never subsampled.
const LogLimitNone = -1

// LogFilter selects inference log entries on query.
type LogFilter struct {
	ModelID string
	Status  InferenceStatus // empty = all
	Since   time.Time       // zero = no lower bound
	Until   time.Time       // zero = no upper bound
	Limit   int             // 0 = store default, negative = unlimited
}
