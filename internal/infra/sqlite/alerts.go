package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// ─── Drift Alert Store ──────────────────────────────────────────────────────

// ReplaceAlert installs the alert as the single active alert for its
// model, superseding any previous one.
func (d *DB) ReplaceAlert(a domain.DriftAlert) error {
	features, err := json.Marshal(a.Features)
	if err != nil {
		return fmt.Errorf("marshal alert features: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO drift_alerts (model_id, id, report_id, severity, features, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(model_id) DO UPDATE SET
			id=excluded.id,
			report_id=excluded.report_id,
			severity=excluded.severity,
			features=excluded.features,
			timestamp=excluded.timestamp`,
		a.ModelID, a.ID, a.ReportID, string(a.Severity),
		string(features), a.Timestamp.UnixMilli(),
	)
	return err
}

// ActiveAlert returns the active alert for a model, or
// domain.ErrAlertNotFound.
func (d *DB) ActiveAlert(modelID string) (*domain.DriftAlert, error) {
	row := d.db.QueryRow(
		`SELECT model_id, id, report_id, severity, features, timestamp
		 FROM drift_alerts WHERE model_id = ?`, modelID,
	)
	a, err := scanAlert(row)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrAlertNotFound
	}
	return a, nil
}

// ListAlerts returns all active alerts, newest first.
func (d *DB) ListAlerts() ([]domain.DriftAlert, error) {
	rows, err := d.db.Query(
		`SELECT model_id, id, report_id, severity, features, timestamp
		 FROM drift_alerts ORDER BY timestamp DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.DriftAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

// ClearAlert removes the active alert for a model, if any.
func (d *DB) ClearAlert(modelID string) error {
	_, err := d.db.Exec(`DELETE FROM drift_alerts WHERE model_id = ?`, modelID)
	return err
}

func scanAlert(s scanner) (*domain.DriftAlert, error) {
	var a domain.DriftAlert
	var severity, features string
	var ts int64

	err := s.Scan(&a.ModelID, &a.ID, &a.ReportID, &severity, &features, &ts)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(features), &a.Features); err != nil {
		return nil, fmt.Errorf("unmarshal alert features: %w", err)
	}
	a.Severity = domain.DriftSeverity(severity)
	a.Timestamp = time.UnixMilli(ts)
	return &a, nil
}
