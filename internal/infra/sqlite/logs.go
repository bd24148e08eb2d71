package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// defaultLogLimit caps QueryLogs results when the filter gives no limit.
const defaultLogLimit = 1000

// ─── Inference Log Store ────────────────────────────────────────────────────

// AppendLog persists one inference log entry. Entries are append-only.
func (d *DB) AppendLog(entry domain.InferenceLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO inference_logs (id, model_id, status, timestamp, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.ModelID, string(entry.Status),
		entry.Timestamp.UnixMilli(), string(payload),
	)
	return err
}

// QueryLogs returns log entries matching the filter, newest first.
// A negative filter limit (domain.LogLimitNone) returns every match.
func (d *DB) QueryLogs(f domain.LogFilter) ([]domain.InferenceLog, error) {
	where, args := logWhere(f)
	query := `SELECT payload FROM inference_logs` + where + ` ORDER BY timestamp DESC`
	if f.Limit >= 0 {
		limit := f.Limit
		if limit == 0 {
			limit = defaultLogLimit
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.InferenceLog
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry domain.InferenceLog
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal log entry: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// CountLogs returns the number of entries matching the filter.
func (d *DB) CountLogs(f domain.LogFilter) (int, error) {
	where, args := logWhere(f)
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM inference_logs`+where, args...).Scan(&n)
	return n, err
}

func logWhere(f domain.LogFilter) (string, []any) {
	var conds []string
	var args []any
	if f.ModelID != "" {
		conds = append(conds, "model_id = ?")
		args = append(args, f.ModelID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, f.Until.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
