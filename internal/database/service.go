package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AuditEntry is what the decision service hands to the audit log
type AuditEntry struct {
	RequestID         string
	Input             string
	DataSource        string
	RiskScore         float64
	RiskLevel         string
	Recommendation    string
	ExplanationMethod string
	Payload           any
	CreatedAt         time.Time
}

// AuditLog canonicalizes, digests and appends decisions
type AuditLog struct {
	repo *Repository
}

// NewAuditLog creates an audit log over repo
func NewAuditLog(repo *Repository) *AuditLog {
	return &AuditLog{repo: repo}
}

// Record stores one decision and returns the persisted record
func (a *AuditLog) Record(ctx context.Context, e AuditEntry) (*DecisionRecord, error) {
	payload, digest, err := Canonicalize(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", e.RequestID, err)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	rec := &DecisionRecord{
		RequestID:         e.RequestID,
		Input:             e.Input,
		DataSource:        e.DataSource,
		RiskScore:         e.RiskScore,
		RiskLevel:         e.RiskLevel,
		Recommendation:    e.Recommendation,
		ExplanationMethod: e.ExplanationMethod,
		Payload:           payload,
		Digest:            digest,
		CreatedAt:         createdAt.UTC(),
	}
	if err := a.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}

	slog.Debug("Decision audited", "request_id", rec.RequestID, "digest", rec.Digest)
	return rec, nil
}

// Get returns one record by request id
func (a *AuditLog) Get(ctx context.Context, requestID string) (*DecisionRecord, error) {
	return a.repo.Get(ctx, requestID)
}

// Recent returns up to limit records, newest first
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]*DecisionRecord, error) {
	return a.repo.List(ctx, limit)
}
