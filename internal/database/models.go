package database

import (
	"time"
)

// AssessmentRow is the persisted audit record of one scored request.
type AssessmentRow struct {
	ID              string    `json:"id" db:"id"`
	ApplicantID     string    `json:"applicant_id" db:"applicant_id"`
	RecordVersion   int       `json:"record_version" db:"record_version"`
	OverallTrust    float64   `json:"overall_trust" db:"overall_trust"`
	BehavioralScore float64   `json:"behavioral_score" db:"behavioral_score"`
	SocialScore     float64   `json:"social_score" db:"social_score"`
	DigitalScore    float64   `json:"digital_score" db:"digital_score"`
	ObscurityIndex  float64   `json:"obscurity_index" db:"obscurity_index"`
	PD              float64   `json:"probability_of_default" db:"probability_of_default"`
	CILower         float64   `json:"ci_lower" db:"ci_lower"`
	CIUpper         float64   `json:"ci_upper" db:"ci_upper"`
	Category        string    `json:"category" db:"category"`
	CreditEligible  bool      `json:"credit_eligible" db:"credit_eligible"`
	ModelVersion    string    `json:"model_version" db:"model_version"`
	UsedFallback    bool      `json:"used_fallback" db:"used_fallback"`
	Explanation     string    `json:"-" db:"explanation"` // JSON blob
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// AssessmentSummary is the list view of assessment history, without the
// explanation payload.
type AssessmentSummary struct {
	ID             string    `json:"id"`
	ApplicantID    string    `json:"applicant_id"`
	RecordVersion  int       `json:"record_version"`
	OverallTrust   float64   `json:"overall_trust"`
	ObscurityIndex float64   `json:"obscurity_index"`
	PD             float64   `json:"probability_of_default"`
	CILower        float64   `json:"ci_lower"`
	CIUpper        float64   `json:"ci_upper"`
	Category       string    `json:"category"`
	CreditEligible bool      `json:"credit_eligible"`
	ModelVersion   string    `json:"model_version"`
	UsedFallback   bool      `json:"used_fallback"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventRow is one persisted gamification event.
type EventRow struct {
	ID          string    `json:"id" db:"id"`
	ApplicantID string    `json:"applicant_id" db:"applicant_id"`
	ActionType  string    `json:"action_type" db:"action_type"`
	Credits     int64     `json:"credits" db:"credits"`
	OccurredAt  time.Time `json:"occurred_at" db:"occurred_at"`
}
