package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"nightfall_dashboard/internal/models"
)

// TelemetrySQLite stores the rolling telemetry history.
type TelemetrySQLite struct {
	db *sql.DB
}

func NewTelemetrySQLite(db *sql.DB) *TelemetrySQLite {
	return &TelemetrySQLite{db: db}
}

const (
	insertSampleSQL = `INSERT INTO telemetry_samples (recorded_at, record) VALUES (?, ?)`

	trimSamplesSQL = `
		DELETE FROM telemetry_samples
		WHERE id NOT IN (SELECT id FROM telemetry_samples ORDER BY id DESC LIMIT ?)
	`

	selectSamplesSQL = `
		SELECT id, recorded_at, record FROM (
			SELECT id, recorded_at, record FROM telemetry_samples ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`
)

// Append stores one sample and returns its row id. Zero timestamps become now.
func (r *TelemetrySQLite) Append(ctx context.Context, s models.TelemetrySample) (int64, error) {
	recordJSON, err := json.Marshal(s.Record)
	if err != nil {
		return 0, fmt.Errorf("marshal telemetry record: %w", err)
	}

	ts := s.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := r.db.ExecContext(ctx, insertSampleSQL, ts.UTC(), string(recordJSON))
	if err != nil {
		return 0, fmt.Errorf("insert telemetry sample: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("telemetry sample id: %w", err)
	}
	return id, nil
}

// Trim keeps the newest keep samples and reports how many were deleted.
func (r *TelemetrySQLite) Trim(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := r.db.ExecContext(ctx, trimSamplesSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("trim telemetry samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trim telemetry samples: %w", err)
	}
	return n, nil
}

// List returns the newest limit samples, oldest first.
func (r *TelemetrySQLite) List(ctx context.Context, limit int) ([]models.TelemetrySample, error) {
	rows, err := r.db.QueryContext(ctx, selectSamplesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select telemetry samples: %w", err)
	}
	defer rows.Close()

	out := make([]models.TelemetrySample, 0, limit)
	for rows.Next() {
		var s models.TelemetrySample
		var recordJSON string
		if err := rows.Scan(&s.ID, &s.RecordedAt, &recordJSON); err != nil {
			return nil, err
		}
		s.RecordedAt = s.RecordedAt.UTC()
		s.Record = models.DefaultTelemetry()
		if err := json.Unmarshal([]byte(recordJSON), &s.Record); err != nil {
			return nil, fmt.Errorf("decode telemetry sample %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
