package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Drift Report Store ─────────────────────────────────────────────────────

// SaveReport persists one drift report.
func (d *DB) SaveReport(r domain.DriftReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal drift report: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO drift_reports (id, model_id, timestamp, detected, severity, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ModelID, r.Timestamp.UnixMilli(),
		r.OverallDetected, string(r.OverallSeverity), string(payload),
	)
	return err
}

// LatestReport returns the most recent report for a model.
func (d *DB) LatestReport(modelID string) (*domain.DriftReport, error) {
	row := d.db.QueryRow(
		`SELECT payload FROM drift_reports
		 WHERE model_id = ? ORDER BY timestamp DESC LIMIT 1`, modelID,
	)
	r, err := scanReport(row)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.ErrReportNotFound
	}
	return r, nil
}

// ListReports returns up to limit reports for a model, newest first.
func (d *DB) ListReports(modelID string, limit int) ([]domain.DriftReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db.Query(
		`SELECT payload FROM drift_reports
		 WHERE model_id = ? ORDER BY timestamp DESC LIMIT ?`, modelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []domain.DriftReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// PruneReports deletes reports older than keepDays and returns the
// number removed.
func (d *DB) PruneReports(keepDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -keepDays).UnixMilli()
	result, err := d.db.Exec(
		`DELETE FROM drift_reports WHERE timestamp < ?`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanReport(s scanner) (*domain.DriftReport, error) {
	var payload string
	err := s.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}
	var r domain.DriftReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("unmarshal drift report: %w", err)
	}
	return &r, nil
}
