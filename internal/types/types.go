// Package types holds the HTTP request and response bodies.
package types

import "time"

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	Input       string  `json:"input" binding:"required"`
	DailyBudget float64 `json:"daily_budget,omitempty" binding:"gte=0"`
	Simulate    bool    `json:"simulate,omitempty"`
}

// FeaturesRequest is the body of POST /analyze/features
type FeaturesRequest struct {
	Features    map[string]float64 `json:"features" binding:"required"`
	DailyBudget float64            `json:"daily_budget,omitempty" binding:"gte=0"`
	Label       string             `json:"label,omitempty"`
}

// DecisionSummary is one row of GET /decisions
type DecisionSummary struct {
	RequestID         string    `json:"request_id"`
	Input             string    `json:"input,omitempty"`
	DataSource        string    `json:"data_source"`
	RiskScore         float64   `json:"risk_score"`
	RiskLevel         string    `json:"risk_level"`
	Recommendation    string    `json:"recommendation"`
	ExplanationMethod string    `json:"explanation_method"`
	Digest            string    `json:"digest"`
	CreatedAt         time.Time `json:"created_at"`
}

// DecisionList is the body of GET /decisions
type DecisionList struct {
	Decisions []DecisionSummary `json:"decisions"`
	Count     int               `json:"count"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	Version    string                 `json:"version"`
	Model      string                 `json:"model"`
	Components map[string]string      `json:"components"`
	Metrics    map[string]interface{} `json:"metrics"`
}
