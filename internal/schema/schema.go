// Package schema validates raw JSON from the network against the shapes the
// client expects, producing typed values or a ValidationError naming the
// violated field. Every response body passes through here before any state
// is set from it.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aura-detect/aura/internal/models"
)

// ValidationError reports the first field that failed validation. It means
// the backend broke its contract, not that the network failed; callers show
// it like any transient error but should log it distinctly.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid response: field %q %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var nullToken = []byte("null")

// ParseDetectResult validates the body of POST /v1/detect.
func ParseDetectResult(raw []byte) (*models.DetectionResult, error) {
	var payload struct {
		IsAI             *bool           `json:"is_ai"`
		Score            *float64        `json:"score"`
		DetailedAnalysis json.RawMessage `json:"detailed_analysis"`
	}
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.IsAI == nil {
		return nil, &ValidationError{Field: "is_ai", Message: "is required"}
	}
	if err := checkScore("score", payload.Score); err != nil {
		return nil, err
	}
	analysis, err := parseAnalysis("detailed_analysis", payload.DetailedAnalysis)
	if err != nil {
		return nil, err
	}
	return &models.DetectionResult{
		IsAI:             *payload.IsAI,
		Score:            *payload.Score,
		DetailedAnalysis: analysis,
	}, nil
}

// ParseListDetections validates the body of GET /v1/detections.
func ParseListDetections(raw []byte) (*models.ListDetectionsResult, error) {
	var payload struct {
		Items []json.RawMessage `json:"items"`
		Total *int              `json:"total"`
	}
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Items == nil {
		return nil, &ValidationError{Field: "items", Message: "is required"}
	}
	if payload.Total == nil {
		return nil, &ValidationError{Field: "total", Message: "is required"}
	}
	items := make([]models.Detection, 0, len(payload.Items))
	for i, itemRaw := range payload.Items {
		item, err := parseDetection(fmt.Sprintf("items[%d]", i), itemRaw)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return &models.ListDetectionsResult{Items: items, Total: *payload.Total}, nil
}

// ParseDashboardStats validates the body of GET /v1/dashboard/stats.
func ParseDashboardStats(raw []byte) (*models.DashboardStats, error) {
	var payload struct {
		TotalRequests   *int     `json:"total_requests"`
		AIDetectionRate *float64 `json:"ai_detection_rate"`
		AverageScore    *float64 `json:"average_score"`
		DailyActivity   []struct {
			Date  *string `json:"date"`
			Count *int    `json:"count"`
		} `json:"daily_activity"`
	}
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.TotalRequests == nil {
		return nil, &ValidationError{Field: "total_requests", Message: "is required"}
	}
	if payload.AIDetectionRate == nil {
		return nil, &ValidationError{Field: "ai_detection_rate", Message: "is required"}
	}
	if payload.AverageScore == nil {
		return nil, &ValidationError{Field: "average_score", Message: "is required"}
	}
	if payload.DailyActivity == nil {
		return nil, &ValidationError{Field: "daily_activity", Message: "is required"}
	}
	activity := make([]models.DailyActivity, 0, len(payload.DailyActivity))
	for i, day := range payload.DailyActivity {
		if day.Date == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("daily_activity[%d].date", i), Message: "is required"}
		}
		if day.Count == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("daily_activity[%d].count", i), Message: "is required"}
		}
		activity = append(activity, models.DailyActivity{Date: *day.Date, Count: *day.Count})
	}
	return &models.DashboardStats{
		TotalRequests:   *payload.TotalRequests,
		AIDetectionRate: *payload.AIDetectionRate,
		AverageScore:    *payload.AverageScore,
		DailyActivity:   activity,
	}, nil
}

func parseDetection(field string, raw json.RawMessage) (*models.Detection, error) {
	var payload struct {
		ID               *string         `json:"id"`
		UserID           *string         `json:"user_id"`
		InputText        *string         `json:"input_text"`
		Score            *float64        `json:"score"`
		IsAI             *bool           `json:"is_ai"`
		CreatedAt        *string         `json:"created_at"`
		DetailedAnalysis json.RawMessage `json:"detailed_analysis"`
	}
	if err := unmarshalAt(field, raw, &payload); err != nil {
		return nil, err
	}
	if payload.ID == nil || *payload.ID == "" {
		return nil, &ValidationError{Field: field + ".id", Message: "is required"}
	}
	if payload.InputText == nil {
		return nil, &ValidationError{Field: field + ".input_text", Message: "is required"}
	}
	if err := checkScore(field+".score", payload.Score); err != nil {
		return nil, err
	}
	if payload.IsAI == nil {
		return nil, &ValidationError{Field: field + ".is_ai", Message: "is required"}
	}
	if payload.CreatedAt == nil {
		return nil, &ValidationError{Field: field + ".created_at", Message: "is required"}
	}
	createdAt, err := time.Parse(time.RFC3339, *payload.CreatedAt)
	if err != nil {
		return nil, &ValidationError{Field: field + ".created_at", Message: "must be an RFC 3339 timestamp"}
	}
	analysis, err := parseAnalysis(field+".detailed_analysis", payload.DetailedAnalysis)
	if err != nil {
		return nil, err
	}
	det := &models.Detection{
		ID:               *payload.ID,
		InputText:        *payload.InputText,
		Score:            *payload.Score,
		IsAI:             *payload.IsAI,
		CreatedAt:        createdAt,
		DetailedAnalysis: analysis,
	}
	if payload.UserID != nil {
		det.UserID = *payload.UserID
	}
	return det, nil
}

// parseAnalysis keeps null and [] distinct: an absent field is a contract
// violation, explicit null means the feature is locked, an empty array means
// analyzed with no flagged spans.
func parseAnalysis(field string, raw json.RawMessage) ([]models.AnalysisItem, error) {
	if raw == nil {
		return nil, &ValidationError{Field: field, Message: "is required"}
	}
	if bytes.Equal(bytes.TrimSpace(raw), nullToken) {
		return nil, nil
	}
	var items []struct {
		Sentence *string `json:"sentence"`
		Reason   *string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ValidationError{Field: field, Message: "must be an array or null"}
	}
	out := make([]models.AnalysisItem, 0, len(items))
	for i, item := range items {
		if item.Sentence == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d].sentence", field, i), Message: "is required"}
		}
		if item.Reason == nil {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d].reason", field, i), Message: "is required"}
		}
		out = append(out, models.AnalysisItem{Sentence: *item.Sentence, Reason: *item.Reason})
	}
	return out, nil
}

func checkScore(field string, score *float64) error {
	if score == nil {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if *score < 0 || *score > 1 {
		return &ValidationError{Field: field, Message: "must be between 0 and 1"}
	}
	return nil
}

func unmarshal(raw []byte, v any) error {
	return unmarshalAt("", raw, v)
}

// unmarshalAt converts decode failures into ValidationErrors so callers see
// one error taxonomy regardless of where the shape broke.
func unmarshalAt(prefix string, raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "(root)"
		}
		if prefix != "" {
			field = prefix + "." + field
		}
		return &ValidationError{Field: field, Message: "has the wrong type"}
	}
	field := prefix
	if field == "" {
		field = "(root)"
	}
	return &ValidationError{Field: field, Message: "is not valid JSON"}
}
