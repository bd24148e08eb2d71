package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Baseline Store ─────────────────────────────────────────────────────────

// SaveBaseline stores baseline statistics for a model, replacing any
// previous baseline. Called on every deploy.
func (d *DB) SaveBaseline(b domain.BaselineStats) error {
	stats, err := json.Marshal(b.Features)
	if err != nil {
		return fmt.Errorf("marshal baseline stats: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO baselines (model_id, version, sample_count, source, stats, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(model_id) DO UPDATE SET
			version=excluded.version,
			sample_count=excluded.sample_count,
			source=excluded.source,
			stats=excluded.stats,
			created_at=excluded.created_at`,
		b.ModelID, b.Version, b.SampleCount, b.Source,
		string(stats), b.CreatedAt.Unix(),
	)
	return err
}

// GetBaseline retrieves the baseline for a model. Returns
// domain.ErrNoBaseline if none exists and domain.ErrBaselineCorrupted
// if the stored statistics cannot be decoded.
func (d *DB) GetBaseline(modelID string) (*domain.BaselineStats, error) {
	var b domain.BaselineStats
	var stats string
	var createdAt int64

	err := d.db.QueryRow(
		`SELECT model_id, version, sample_count, source, stats, created_at
		 FROM baselines WHERE model_id = ?`, modelID,
	).Scan(&b.ModelID, &b.Version, &b.SampleCount, &b.Source, &stats, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoBaseline
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stats), &b.Features); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBaselineCorrupted, err)
	}
	b.CreatedAt = time.Unix(createdAt, 0)
	return &b, nil
}

// DeleteBaseline removes the baseline for a model.
func (d *DB) DeleteBaseline(modelID string) error {
	_, err := d.db.Exec(`DELETE FROM baselines WHERE model_id = ?`, modelID)
	return err
}
