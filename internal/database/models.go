package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// DecisionRecord is one audited decision
type DecisionRecord struct {
	RequestID         string          `json:"request_id" db:"request_id"`
	Input             string          `json:"input" db:"input"`
	DataSource        string          `json:"data_source" db:"data_source"`
	RiskScore         float64         `json:"risk_score" db:"risk_score"`
	RiskLevel         string          `json:"risk_level" db:"risk_level"`
	Recommendation    string          `json:"recommendation" db:"recommendation"`
	ExplanationMethod string          `json:"explanation_method" db:"explanation_method"`
	Payload           json.RawMessage `json:"payload" db:"payload"`
	Digest            string          `json:"digest" db:"digest"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// Canonicalize renders v as RFC 8785 canonical JSON and returns it with its
// hex SHA-256 digest.
func Canonicalize(v any) ([]byte, string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

// Verify reports whether the stored digest still matches the payload
func (r *DecisionRecord) Verify() bool {
	canonical, err := jcs.Transform(r.Payload)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]) == r.Digest
}
