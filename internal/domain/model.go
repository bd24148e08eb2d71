// Package domain holds the core DriftWatch types: models, inference logs,
// baseline statistics, and drift reports. Pure data — no infrastructure
// dependency.
package domain

import "time"

// ModelStatus tracks the deployment lifecycle of a model.
type ModelStatus string

const (
	StatusPending    ModelStatus = "pending"
	StatusValidating ModelStatus = "validating"
	StatusDeployed   ModelStatus = "deployed"
	StatusFailed     ModelStatus = "failed"
)

// validTransitions is the allowed-transition table for the model state
// machine. A deployed model re-enters validating when a new version is
// pushed; it is never silently reverted to pending.
var validTransitions = map[ModelStatus][]ModelStatus{
	StatusPending:    {StatusValidating},
	StatusValidating: {StatusDeployed, StatusFailed},
	StatusDeployed:   {StatusValidating, StatusFailed},
	StatusFailed:     {StatusValidating},
}

// CanTransition reports whether from → to is an allowed status change.
func CanTransition(from, to ModelStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal validation outcome.
func (s ModelStatus) IsTerminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// Endpoints describes the stable endpoint identifiers generated when a
// model is deployed.
type Endpoints struct {
	Predict string `json:"predict"`
	Info    string `json:"info"`
	Health  string `json:"health"`
}

// Model is a registered ML artifact and its deployment state.
type Model struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	SourceRepo string      `json:"source_repo,omitempty"`
	Status     ModelStatus `json:"status"`
	Error      string      `json:"error,omitempty"` // last validation error
	Endpoints  Endpoints   `json:"endpoints,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Deployed reports whether the model is serving traffic.
func (m *Model) Deployed() bool { return m.Status == StatusDeployed }

// ArtifactRef identifies a pushed model artifact to validate and deploy.
// Only the pass/fail outcome of loading it matters to this core; the
// format-specific loading lives behind the Loader interface.
type ArtifactRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Repo    string `json:"repo,omitempty"`
	URI     string `json:"uri,omitempty"`
}

// Verdict is the outcome of validating an artifact.
type Verdict struct {
	Passed  bool          `json:"passed"`
	Reason  string        `json:"reason,omitempty"`
	Latency time.Duration `json:"latency"`
}
