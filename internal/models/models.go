// Package models defines the domain entities exchanged with the detection
// backend and the identity provider.
package models

import (
	"strconv"
	"time"
)

// Plan tiers known to the backend.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// AnalysisItem is one flagged span from the premium detailed analysis.
type AnalysisItem struct {
	Sentence string `json:"sentence"`
	Reason   string `json:"reason"`
}

// DetectionResult is the outcome of a single detect call.
//
// DetailedAnalysis distinguishes nil from empty: nil mirrors JSON null and
// means the feature is locked for the current plan; an empty slice means the
// text was analyzed and no spans were flagged.
type DetectionResult struct {
	IsAI             bool           `json:"is_ai"`
	Score            float64        `json:"score"`
	DetailedAnalysis []AnalysisItem `json:"detailed_analysis"`
}

// Detection is a persisted past result, immutable once created.
type Detection struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	InputText        string         `json:"input_text"`
	Score            float64        `json:"score"`
	IsAI             bool           `json:"is_ai"`
	CreatedAt        time.Time      `json:"created_at"`
	DetailedAnalysis []AnalysisItem `json:"detailed_analysis"`
}

// ListDetectionsResult is the page envelope returned by the history endpoint.
type ListDetectionsResult struct {
	Items []Detection `json:"items"`
	Total int         `json:"total"`
}

// DailyActivity is one day of usage in the dashboard aggregate.
type DailyActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardStats is the read-only usage aggregate computed by the backend.
type DashboardStats struct {
	TotalRequests   int             `json:"total_requests"`
	AIDetectionRate float64         `json:"ai_detection_rate"`
	AverageScore    float64         `json:"average_score"`
	DailyActivity   []DailyActivity `json:"daily_activity"`
}

// Profile is the per-user plan record held in the data store.
type Profile struct {
	Plan             string     `json:"plan"`
	RequestCount     int        `json:"request_count"`
	StripeCustomerID string     `json:"stripe_customer_id,omitempty"`
	PlanExpiresAt    *time.Time `json:"plan_expires_at,omitempty"`
}

// IsPremium reports whether the profile is on the premium tier.
func (p *Profile) IsPremium() bool {
	return p != nil && p.Plan == PlanPremium
}

// CanManageBilling reports whether the billing portal is usable: the payment
// provider only knows customers it has billed before.
func (p *Profile) CanManageBilling() bool {
	return p.IsPremium() && p.StripeCustomerID != ""
}

// FormatScore renders a [0,1] score as a percentage with one decimal,
// matching the product's display convention.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score*100, 'f', 1, 64)
}

// Confidence buckets a score into the product's three display levels.
func Confidence(score float64) string {
	switch {
	case score >= 0.8:
		return "high"
	case score >= 0.6:
		return "medium"
	default:
		return "low"
	}
}
