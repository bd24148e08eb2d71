package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Model / registry errors
	ErrModelNotFound     = errors.New("model not found")
	ErrModelExists       = errors.New("model already registered")
	ErrInvalidTransition = errors.New("invalid model status transition")
	ErrModelNotDeployed  = errors.New("model is not deployed")

	// Validation errors
	ErrArtifactIncomplete = errors.New("artifact reference is incomplete")
	ErrValidationFailed   = errors.New("model validation failed")

	// Baseline errors
	ErrNoBaseline        = errors.New("no baseline statistics for model")
	ErrBaselineCorrupted = errors.New("baseline statistics are corrupted")
	ErrEmptyReference    = errors.New("reference dataset is empty")

	// Drift errors
	ErrInsufficientSamples = errors.New("insufficient samples for drift check")
	ErrCheckInFlight       = errors.New("drift check already in flight for model")

	// Query errors
	ErrReportNotFound = errors.New("drift report not found")
	ErrAlertNotFound  = errors.New("no active alert for model")
)
