package analytics

import "time"

// OutcomeRow is the persisted result of one completed call.
type OutcomeRow struct {
	CallID           string         `json:"call_id" db:"call_id"`
	AgentID          string         `json:"agent_id" db:"agent_id"`
	UserPhone        string         `json:"user_phone,omitempty" db:"user_phone"`
	DurationSeconds  int            `json:"duration_seconds" db:"duration_seconds"`
	Outcome          string         `json:"outcome" db:"outcome"`
	LeadScore        int            `json:"lead_score" db:"lead_score"`
	ExtractedDetails map[string]any `json:"extracted_details,omitempty" db:"extracted_details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CallStats are the raw per-campaign counters metrics are derived from.
type CallStats struct {
	CallsMade       int `json:"calls_made" db:"calls_made"`
	CallsAnswered   int `json:"calls_answered" db:"calls_answered"`
	CallsSuccessful int `json:"calls_successful" db:"calls_successful"`
	Bookings        int `json:"bookings" db:"bookings"`
}

// CampaignMetrics is the snapshot pushed on the metrics topic every 5s.
type CampaignMetrics struct {
	CampaignID        string  `json:"campaign_id"`
	CallsMade         int     `json:"calls_made"`
	CallsAnswered     int     `json:"calls_answered"`
	CallsSuccessful   int     `json:"calls_successful"`
	BookingsScheduled int     `json:"bookings_scheduled"`
	LeadsContacted    int     `json:"leads_contacted"`
	ConversionRate    float64 `json:"conversion_rate"`
}

// CompanySnapshot is the on-change payload for the analytics topic.
type CompanySnapshot struct {
	CompanyID      string  `json:"company_id"`
	TotalCalls     int     `json:"total_calls"`
	CompletedCalls int     `json:"completed_calls"`
	FailedCalls    int     `json:"failed_calls"`
	ResolutionRate float64 `json:"resolution_rate"`
	TotalBookings  int     `json:"total_bookings"`

	UpdatedAt time.Time `json:"updated_at"`
}
