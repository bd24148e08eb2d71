// Package registry implements the model lifecycle state machine.
// All status changes go through the allowed-transition table; writes to a
// model are serialized by a per-model lock so concurrent webhook
// deliveries and validation completions never interleave.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// Manager owns model lifecycle state. It is safe for concurrent use.
type Manager struct {
	store domain.ModelStore
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// Snapshot of the live model taken when a deployed model re-enters
	// validation, so a failed redeploy can restore it.
	prior map[string]domain.Model

	// Serializes the duplicate-name scan in Register against the save,
	// so two concurrent pushes of the same new name yield one model.
	regMu sync.Mutex
}

// NewManager creates a Manager backed by the given store.
func NewManager(store domain.ModelStore, log *zap.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
		prior: make(map[string]domain.Model),
	}
}

// lockModel returns the mutex serializing writes for one model.
func (m *Manager) lockModel(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// ─── Lifecycle Operations ───────────────────────────────────────────────────

// Register creates a new model in pending state. Returns
// domain.ErrModelExists if a model with the same name is already
// registered; callers should use BeginValidation for new versions.
func (m *Manager) Register(name, version, sourceRepo string) (*domain.Model, error) {
	m.regMu.Lock()
	defer m.regMu.Unlock()

	models, err := m.store.ListModels()
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	for _, existing := range models {
		if existing.Name == name {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelExists, name)
		}
	}

	now := m.now()
	model := domain.Model{
		ID:         uuid.New().String(),
		Name:       name,
		Version:    version,
		SourceRepo: sourceRepo,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.SaveModel(model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	m.log.Info("model registered",
		zap.String("model_id", model.ID),
		zap.String("name", name),
		zap.String("version", version))
	return &model, nil
}

// FindByName returns the model with the given name, if registered.
func (m *Manager) FindByName(name string) (*domain.Model, error) {
	models, err := m.store.ListModels()
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	for i := range models {
		if models[i].Name == name {
			return &models[i], nil
		}
	}
	return nil, domain.ErrModelNotFound
}

// BeginValidation moves a model into validating state. Allowed from
// pending, failed, and deployed (redeploy); a deployed model's live state
// is snapshotted so a failed cycle can restore it.
func (m *Manager) BeginValidation(id, version string) (*domain.Model, error) {
	lock := m.lockModel(id)
	lock.Lock()
	defer lock.Unlock()

	model, err := m.store.GetModel(id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(model.Status, domain.StatusValidating) {
		return nil, fmt.Errorf("%w: %s → validating", domain.ErrInvalidTransition, model.Status)
	}

	if model.Status == domain.StatusDeployed {
		m.mu.Lock()
		m.prior[id] = *model
		m.mu.Unlock()
	}

	model.Status = domain.StatusValidating
	if version != "" {
		model.Version = version
	}
	model.UpdatedAt = m.now()
	if err := m.store.SaveModel(*model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	m.log.Info("validation started",
		zap.String("model_id", id),
		zap.String("version", model.Version))
	return model, nil
}

// CompleteValidation records a validation verdict. Pass deploys the model
// and generates its endpoint identifiers; fail marks it failed with the
// reason — unless this was a redeploy, in which case the previously
// deployed version is restored and the failure reason recorded on it.
func (m *Manager) CompleteValidation(id string, verdict domain.Verdict) (*domain.Model, error) {
	lock := m.lockModel(id)
	lock.Lock()
	defer lock.Unlock()

	model, err := m.store.GetModel(id)
	if err != nil {
		return nil, err
	}
	if model.Status != domain.StatusValidating {
		return nil, fmt.Errorf("%w: %s → terminal", domain.ErrInvalidTransition, model.Status)
	}

	m.mu.Lock()
	prior, wasDeployed := m.prior[id]
	delete(m.prior, id)
	m.mu.Unlock()

	now := m.now()
	switch {
	case verdict.Passed:
		model.Status = domain.StatusDeployed
		model.Error = ""
		model.Endpoints = endpointsFor(id)
	case wasDeployed:
		// Failed redeploy: the old version keeps serving
		*model = prior
		model.Error = verdict.Reason
	default:
		model.Status = domain.StatusFailed
		model.Error = verdict.Reason
		model.Endpoints = domain.Endpoints{}
	}
	model.UpdatedAt = now

	if err := m.store.SaveModel(*model); err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	m.log.Info("validation complete",
		zap.String("model_id", id),
		zap.Bool("passed", verdict.Passed),
		zap.String("status", string(model.Status)),
		zap.Duration("latency", verdict.Latency))
	return model, nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Get returns one model by ID.
func (m *Manager) Get(id string) (*domain.Model, error) {
	return m.store.GetModel(id)
}

// List returns all registered models.
func (m *Manager) List() ([]domain.Model, error) {
	return m.store.ListModels()
}

// ListDeployed returns models currently serving traffic.
func (m *Manager) ListDeployed() ([]domain.Model, error) {
	return m.store.ListByStatus(domain.StatusDeployed)
}

// Delete removes a model and its lock state.
func (m *Manager) Delete(id string) error {
	lock := m.lockModel(id)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.DeleteModel(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.prior, id)
	m.mu.Unlock()
	m.log.Info("model deleted", zap.String("model_id", id))
	return nil
}

func endpointsFor(id string) domain.Endpoints {
	base := "/api/models/" + id
	return domain.Endpoints{
		Predict: base + "/predict",
		Info:    base + "/info",
		Health:  base + "/health",
	}
}
