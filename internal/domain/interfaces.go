package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Loader abstracts the model-format-specific loading code. Only the
// pass/fail outcome matters to this core.
type Loader interface {
	// Load prepares the artifact for inference. Returns a Predictor on
	// success; the error message becomes the validation failure reason.
	Load(ctx context.Context, ref ArtifactRef) (Predictor, error)
}

// Predictor executes predictions for one loaded model version.
type Predictor interface {
	Predict(ctx context.Context, input map[string]any) (Prediction, error)
}

// ModelStore abstracts persistent model metadata storage.
type ModelStore interface {
	SaveModel(m Model) error
	GetModel(id string) (*Model, error)
	ListModels() ([]Model, error)
	ListByStatus(status ModelStatus) ([]Model, error)
	DeleteModel(id string) error
}

// LogStore abstracts append-only inference log storage with time-range
// query support.
type LogStore interface {
	AppendLog(entry InferenceLog) error
	QueryLogs(f LogFilter) ([]InferenceLog, error)
	CountLogs(f LogFilter) (int, error)
}

// BaselineStore abstracts baseline statistics storage, one per model.
type BaselineStore interface {
	SaveBaseline(b BaselineStats) error
	GetBaseline(modelID string) (*BaselineStats, error)
	DeleteBaseline(modelID string) error
}

// ReportStore abstracts drift report storage.
type ReportStore interface {
	SaveReport(r DriftReport) error
	LatestReport(modelID string) (*DriftReport, error)
	ListReports(modelID string, limit int) ([]DriftReport, error)
	PruneReports(keepDays int) (int, error)
}

// AlertStore abstracts active-alert storage: one active alert per model,
// replaced by the next report for that model.
type AlertStore interface {
	ReplaceAlert(a DriftAlert) error
	ActiveAlert(modelID string) (*DriftAlert, error)
	ListAlerts() ([]DriftAlert, error)
	ClearAlert(modelID string) error
}

// Notifier receives a drift alert for external delivery. The core only
// constructs and hands off the alert, never performs transport.
type Notifier interface {
	Notify(ctx context.Context, alert DriftAlert) error
}
