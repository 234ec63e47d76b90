package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no record has the requested id
	ErrNotFound = errors.New("decision record not found")
	// ErrDuplicate is returned when a request id was already audited
	ErrDuplicate = errors.New("decision record already exists")
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

const recordColumns = `request_id, input, data_source, risk_score, risk_level, recommendation,
	explanation_method, payload, digest, created_at`

// Repository handles audit log persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository over an open handle
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a record
func (r *Repository) Insert(ctx context.Context, rec *DecisionRecord) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO decision_audit (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Input, rec.DataSource, rec.RiskScore, rec.RiskLevel, rec.Recommendation,
		rec.ExplanationMethod, string(rec.Payload), rec.Digest, rec.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%s: %w", rec.RequestID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert decision record: %w", err)
	}
	return nil
}

// Get loads one record by request id
func (r *Repository) Get(ctx context.Context, requestID string) (*DecisionRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM decision_audit WHERE request_id = ?`, requestID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query decision record: %w", err)
	}
	return rec, nil
}

// List returns the most recent records, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]*DecisionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM decision_audit
		ORDER BY created_at DESC, request_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decision records: %w", err)
	}
	defer rows.Close()

	records := make([]*DecisionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*DecisionRecord, error) {
	var rec DecisionRecord
	var payload string
	var createdAt time.Time
	if err := s.Scan(&rec.RequestID, &rec.Input, &rec.DataSource, &rec.RiskScore, &rec.RiskLevel,
		&rec.Recommendation, &rec.ExplanationMethod, &payload, &rec.Digest, &createdAt); err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}
