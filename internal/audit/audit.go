// Package audit keeps an append-only event trail for campaign calling
// activity.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCampaignStatusChange EventType = "campaign_status_change"
	EventCallAttempt          EventType = "call_attempt"
	EventCallingStarted       EventType = "calling_started"
	EventCallingFinished      EventType = "calling_finished"
)

// Event is one immutable audit record.
type Event struct {
	ID         string         `json:"id" db:"id"`
	Type       EventType      `json:"type" db:"type"`
	CampaignID string         `json:"campaign_id" db:"campaign_id"`
	CallID     string         `json:"call_id,omitempty" db:"call_id"`
	LeadID     string         `json:"lead_id,omitempty" db:"lead_id"`
	Detail     map[string]any `json:"detail,omitempty" db:"detail"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, e Event) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Event, error)
}

// Service records audit events. Failures are logged, never propagated;
// an audit miss must not break the calling path.
type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log.With("component", "audit")}
}

func (s *Service) record(ctx context.Context, e Event) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	if err := s.repo.Insert(ctx, e); err != nil {
		s.log.Error("audit insert failed", "type", string(e.Type), "campaign_id", e.CampaignID, "err", err)
	}
}

func (s *Service) LogStatusChange(ctx context.Context, campaignID, from, to string) {
	s.record(ctx, Event{
		Type:       EventCampaignStatusChange,
		CampaignID: campaignID,
		Detail:     map[string]any{"from": from, "to": to},
	})
}

func (s *Service) LogCallAttempt(ctx context.Context, campaignID, leadID, callSID string, success bool, attemptErr string) {
	detail := map[string]any{"success": success}
	if attemptErr != "" {
		detail["error"] = attemptErr
	}
	s.record(ctx, Event{
		Type:       EventCallAttempt,
		CampaignID: campaignID,
		LeadID:     leadID,
		CallID:     callSID,
		Detail:     detail,
	})
}

func (s *Service) LogCallingStarted(ctx context.Context, campaignID string, totalLeads int) {
	s.record(ctx, Event{
		Type:       EventCallingStarted,
		CampaignID: campaignID,
		Detail:     map[string]any{"total_leads": totalLeads},
	})
}

func (s *Service) LogCallingFinished(ctx context.Context, campaignID, finalStatus string, calledLeads int) {
	s.record(ctx, Event{
		Type:       EventCallingFinished,
		CampaignID: campaignID,
		Detail:     map[string]any{"final_status": finalStatus, "called_leads": calledLeads},
	})
}

// Trail returns the most recent events for a campaign.
func (s *Service) Trail(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListByCampaign(ctx, campaignID, limit)
}
