// Package domain — drift detection types.
package domain

import "time"

// DriftSeverity is the ordinal classification of a drift score relative
// to its threshold.
type DriftSeverity string

const (
	SeverityNone     DriftSeverity = "none"
	SeverityLow      DriftSeverity = "low"
	SeverityModerate DriftSeverity = "moderate"
	SeverityHigh     DriftSeverity = "high"
)

// severityRank orders severities for max() comparisons.
var severityRank = map[DriftSeverity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
}

// Rank returns the ordinal rank of a severity (none=0 … high=3).
func (s DriftSeverity) Rank() int { return severityRank[s] }

// MaxSeverity returns the more severe of two severities.
func MaxSeverity(a, b DriftSeverity) DriftSeverity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// DriftResult is the drift verdict for a single feature.
type DriftResult struct {
	FeatureName     string         `json:"feature_name"`
	FeatureType     FeatureType    `json:"feature_type"`
	DriftScore      float64        `json:"drift_score"`
	Threshold       float64        `json:"threshold"`
	DriftDetected   bool           `json:"drift_detected"`
	Severity        DriftSeverity  `json:"severity"`
	BaselineSamples int            `json:"baseline_samples"`
	CurrentSamples  int            `json:"current_samples"`
	Metrics         map[string]any `json:"metrics,omitempty"` // auxiliary metrics
}

// ReportSummary aggregates the per-feature results of a drift report.
type ReportSummary struct {
	FeaturesAnalyzed int     `json:"features_analyzed"`
	FeaturesDrifted  int     `json:"features_drifted"`
	DetectionRate    float64 `json:"detection_rate"`
	AverageScore     float64 `json:"average_score"`
	HighestScore     float64 `json:"highest_score"`
	MostDrifted      string  `json:"most_drifted,omitempty"`
	CurrentSamples   int     `json:"current_samples"`
}

// DriftReport is the complete drift verdict for one model at one point
// in time.
type DriftReport struct {
	ID              string        `json:"id"`
	ModelID         string        `json:"model_id"`
	Timestamp       time.Time     `json:"timestamp"`
	OverallDetected bool          `json:"overall_drift_detected"`
	OverallSeverity DriftSeverity `json:"overall_severity"`
	Results         []DriftResult `json:"results"`
	Summary         ReportSummary `json:"summary"`
	BaselinePeriod  string        `json:"baseline_period"`
	CurrentPeriod   string        `json:"current_period"`
}

// DriftAlert is raised when a report detects drift. One active alert per
// model; superseded by the next report for that model.
type DriftAlert struct {
	ID        string        `json:"alert_id"`
	ModelID   string        `json:"model_id"`
	ReportID  string        `json:"report_id"`
	Severity  DriftSeverity `json:"severity"`
	Features  []string      `json:"features_with_drift"`
	Timestamp time.Time     `json:"timestamp"`
}

// NoDataReason explains why a drift check produced no report.
type NoDataReason string

const (
	NoDataMissingBaseline     NoDataReason = "missing_baseline"
	NoDataInsufficientSamples NoDataReason = "insufficient_samples"
)

// CheckOutcome is the result of a single-model drift check. Either a
// report was produced, or the check terminated with a valid no-data
// outcome the caller must handle explicitly. NoData is not an error.
type CheckOutcome struct {
	ModelID      string       `json:"model_id"`
	Report       *DriftReport `json:"report,omitempty"`
	NoData       bool         `json:"no_data"`
	NoDataReason NoDataReason `json:"no_data_reason,omitempty"`
	Samples      int          `json:"samples,omitempty"` // current-window samples seen
}

// BatchResult summarizes a drift check fan-out across deployed models.
type BatchResult struct {
	Total            int               `json:"total_models"`
	SuccessfulChecks int               `json:"successful_checks"`
	FailedChecks     int               `json:"failed_checks"`
	NoDataChecks     int               `json:"no_data_checks"`
	Outcomes         []CheckOutcome    `json:"outcomes,omitempty"`
	Errors           map[string]string `json:"errors,omitempty"` // model_id → failure reason
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
}

// DriftSummary is the running global view assembled by the scheduler.
type DriftSummary struct {
	TotalChecks      int                   `json:"total_checks"`
	DriftDetected    int                   `json:"drift_detected"`
	DetectionRate    float64               `json:"detection_rate"`
	BySeverity       map[DriftSeverity]int `json:"by_severity"`
	ActiveAlerts     int                   `json:"active_alerts"`
	LastCheckByModel map[string]time.Time  `json:"last_check_by_model"`
	GeneratedAt      time.Time             `json:"generated_at"`
}
