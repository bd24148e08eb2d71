package sqlite

import (
	"database/sql"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Model Store ────────────────────────────────────────────────────────────

// SaveModel inserts or updates a model record.
func (d *DB) SaveModel(m domain.Model) error {
	_, err := d.db.Exec(
		`INSERT INTO models (id, name, version, source_repo, status, error,
			endpoint_predict, endpoint_info, endpoint_health, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			version=excluded.version,
			source_repo=excluded.source_repo,
			status=excluded.status,
			error=excluded.error,
			endpoint_predict=excluded.endpoint_predict,
			endpoint_info=excluded.endpoint_info,
			endpoint_health=excluded.endpoint_health,
			updated_at=excluded.updated_at`,
		m.ID, m.Name, m.Version, m.SourceRepo, string(m.Status), m.Error,
		m.Endpoints.Predict, m.Endpoints.Info, m.Endpoints.Health,
		m.CreatedAt.Unix(), m.UpdatedAt.Unix(),
	)
	return err
}

// GetModel retrieves a single model by ID.
func (d *DB) GetModel(id string) (*domain.Model, error) {
	row := d.db.QueryRow(
		`SELECT id, name, version, source_repo, status, error,
			endpoint_predict, endpoint_info, endpoint_health, created_at, updated_at
		 FROM models WHERE id = ?`, id,
	)
	m, err := scanModel(row)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrModelNotFound
	}
	return m, nil
}

// ListModels returns all registered models ordered by creation time.
func (d *DB) ListModels() ([]domain.Model, error) {
	return d.queryModels(
		`SELECT id, name, version, source_repo, status, error,
			endpoint_predict, endpoint_info, endpoint_health, created_at, updated_at
		 FROM models ORDER BY created_at`,
	)
}

// ListByStatus returns models in the given lifecycle status.
func (d *DB) ListByStatus(status domain.ModelStatus) ([]domain.Model, error) {
	return d.queryModels(
		`SELECT id, name, version, source_repo, status, error,
			endpoint_predict, endpoint_info, endpoint_health, created_at, updated_at
		 FROM models WHERE status = ? ORDER BY created_at`, string(status),
	)
}

// DeleteModel removes a model record.
func (d *DB) DeleteModel(id string) error {
	result, err := d.db.Exec(`DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrModelNotFound
	}
	return nil
}

func (d *DB) queryModels(query string, args ...any) ([]domain.Model, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []domain.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}
	return models, rows.Err()
}

func scanModel(s scanner) (*domain.Model, error) {
	var m domain.Model
	var status string
	var createdAt, updatedAt int64

	err := s.Scan(&m.ID, &m.Name, &m.Version, &m.SourceRepo, &status, &m.Error,
		&m.Endpoints.Predict, &m.Endpoints.Info, &m.Endpoints.Health,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	m.Status = domain.ModelStatus(status)
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}
