package conversation

import (
	"context"

	"github.com/Call-Sure-AI/csai-realtime/internal/analytics"
)

// AnalyticsAdapter bridges the manager's Analytics contract onto the
// analytics service.
type AnalyticsAdapter struct {
	svc *analytics.Service
}

func NewAnalyticsAdapter(svc *analytics.Service) *AnalyticsAdapter {
	return &AnalyticsAdapter{svc: svc}
}

func (a *AnalyticsAdapter) RecordConversationOutcome(ctx context.Context, rec OutcomeRecord) error {
	return a.svc.RecordConversationOutcome(ctx, analytics.OutcomeRow{
		CallID:           rec.CallID,
		AgentID:          rec.AgentID,
		UserPhone:        rec.UserPhone,
		DurationSeconds:  rec.DurationSeconds,
		Outcome:          string(rec.Outcome),
		LeadScore:        rec.LeadScore,
		ExtractedDetails: rec.ExtractedDetails,
	})
}
