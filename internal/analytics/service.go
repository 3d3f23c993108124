package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsCacheTTL = 30 * time.Second

// Notifier pushes a fresh company snapshot to whoever is watching the
// analytics feed. The realtime hub satisfies this in production.
type Notifier interface {
	NotifyCompany(companyID string, payload any)
}

// Service computes campaign metrics and company analytics, caching the
// hot campaign aggregate in Redis so the 5s push loops do not hammer
// Postgres.
type Service struct {
	repo     Repository
	cache    *redis.Client // nil disables caching
	notifier Notifier      // nil disables on-change pushes
	log      *slog.Logger
}

func NewService(repo Repository, cache *redis.Client, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log.With("component", "analytics"),
	}
}

// RecordConversationOutcome persists one completed call and pushes an
// updated snapshot to the owning company's analytics feed.
func (s *Service) RecordConversationOutcome(ctx context.Context, row OutcomeRow) error {
	if err := s.repo.InsertOutcome(ctx, row); err != nil {
		return err
	}
	s.log.Info("outcome recorded",
		"call_id", row.CallID,
		"outcome", row.Outcome,
		"lead_score", row.LeadScore)

	if s.notifier == nil {
		return nil
	}
	companyID, err := s.repo.CompanyIDForAgent(ctx, row.AgentID)
	if err != nil {
		s.log.Warn("company lookup failed", "agent_id", row.AgentID, "err", err)
		return nil
	}
	snap, err := s.CompanySnapshot(ctx, companyID)
	if err != nil {
		s.log.Warn("company snapshot failed", "company_id", companyID, "err", err)
		return nil
	}
	s.notifier.NotifyCompany(companyID, snap)
	return nil
}

// CampaignMetrics returns the live metrics snapshot for one campaign,
// served from Redis when a fresh copy exists.
func (s *Service) CampaignMetrics(ctx context.Context, campaignID string) (CampaignMetrics, error) {
	key := "analytics:metrics:" + campaignID

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var m CampaignMetrics
			if err := json.Unmarshal(raw, &m); err == nil {
				return m, nil
			}
		} else if err != redis.Nil {
			s.log.Warn("metrics cache read failed", "campaign_id", campaignID, "err", err)
		}
	}

	stats, err := s.repo.CampaignCallStats(ctx, campaignID)
	if err != nil {
		return CampaignMetrics{}, err
	}

	m := CampaignMetrics{
		CampaignID:        campaignID,
		CallsMade:         stats.CallsMade,
		CallsAnswered:     stats.CallsAnswered,
		CallsSuccessful:   stats.CallsSuccessful,
		BookingsScheduled: stats.Bookings,
		LeadsContacted:    stats.CallsMade,
	}
	if stats.CallsMade > 0 {
		m.ConversionRate = round2(float64(stats.CallsSuccessful) / float64(stats.CallsMade) * 100)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(m); err == nil {
			if err := s.cache.Set(ctx, key, raw, metricsCacheTTL).Err(); err != nil {
				s.log.Warn("metrics cache write failed", "campaign_id", campaignID, "err", err)
			}
		}
	}
	return m, nil
}

// CompanySnapshot returns the company-wide analytics aggregate.
func (s *Service) CompanySnapshot(ctx context.Context, companyID string) (CompanySnapshot, error) {
	snap, err := s.repo.CompanyAnalytics(ctx, companyID)
	if err != nil {
		return CompanySnapshot{}, err
	}
	snap.UpdatedAt = time.Now().UTC()
	return snap, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
