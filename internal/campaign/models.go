package campaign

import (
	"fmt"
	"time"
)

// CampaignStatus values as stored on the campaigns table.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// JobStatus is the lifecycle of one calling job.
type JobStatus string

const (
	JobIdle      JobStatus = "idle"
	JobActive    JobStatus = "active"
	JobHalted    JobStatus = "halted"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Lead is one callable campaign lead, snapshotted at job start.
type Lead struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Phone  string `json:"phone" db:"phone"`
	Status string `json:"status" db:"status"`
}

// LeadFilters narrows which leads a calling job will dial.
type LeadFilters struct {
	Statuses []string `json:"statuses,omitempty"`
	MaxLeads int      `json:"max_leads,omitempty"`
}

// StartRequest is the decoded body of a start-calling request.
type StartRequest struct {
	LeadFilters      LeadFilters    `json:"lead_filters"`
	CallSettings     map[string]any `json:"call_settings,omitempty"`
	RateLimitSeconds int            `json:"rate_limit_seconds,omitempty"`
}

// CallStatus is the progress snapshot for one campaign's calling job.
// It feeds the call-status endpoint, the live push topic, and the
// Redis mirror.
type CallStatus struct {
	CampaignID          string     `json:"campaign_id"`
	CallingActive       bool       `json:"calling_active"`
	JobStatus           JobStatus  `json:"job_status"`
	TotalLeads          int        `json:"total_leads"`
	CalledLeads         int        `json:"called_leads"`
	SuccessfulCalls     int        `json:"successful_calls"`
	FailedCalls         int        `json:"failed_calls"`
	ActiveCalls         int        `json:"active_calls"`
	QueueSize           int        `json:"queue_size"`
	CurrentLeadPosition int        `json:"current_lead_position"`
	ProgressPercentage  float64    `json:"progress_percentage"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	LastCallAt          *time.Time `json:"last_call_at,omitempty"`
}

// ValidationError marks a start request the caller can fix. The HTTP
// layer maps it to 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("campaign: invalid %s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
