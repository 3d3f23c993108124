package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("analytics: not found")

// Repository is the storage contract for call outcomes and the
// aggregates derived from them.
type Repository interface {
	InsertOutcome(ctx context.Context, row OutcomeRow) error
	CampaignCallStats(ctx context.Context, campaignID string) (CallStats, error)
	CompanyAnalytics(ctx context.Context, companyID string) (CompanySnapshot, error)
	CompanyIDForAgent(ctx context.Context, agentID string) (string, error)
}

// PostgresRepository implements Repository over database/sql (pgx driver).
//
// Assumed tables:
//   call_outcomes(call_id PK, agent_id, user_phone, duration_seconds,
//                 outcome, lead_score, extracted_details JSONB, created_at)
//   campaign_calls(id PK, campaign_id, lead_id, status, call_sid, created_at)
//   agents(id PK, company_id, ...)
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertOutcome(ctx context.Context, row OutcomeRow) error {
	details, err := json.Marshal(row.ExtractedDetails)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO call_outcomes (call_id, agent_id, user_phone, duration_seconds, outcome, lead_score, extracted_details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (call_id) DO UPDATE
SET outcome = EXCLUDED.outcome, lead_score = EXCLUDED.lead_score,
    duration_seconds = EXCLUDED.duration_seconds, extracted_details = EXCLUDED.extracted_details
`
	_, err = r.db.ExecContext(ctx, q,
		row.CallID, row.AgentID, row.UserPhone, row.DurationSeconds,
		row.Outcome, row.LeadScore, details)
	return err
}

func (r *PostgresRepository) CampaignCallStats(ctx context.Context, campaignID string) (CallStats, error) {
	const q = `
SELECT
	COUNT(*) AS calls_made,
	COUNT(*) FILTER (WHERE status IN ('answered', 'completed')) AS calls_answered,
	COUNT(*) FILTER (WHERE status = 'completed') AS calls_successful,
	COUNT(*) FILTER (WHERE status = 'booked') AS bookings
FROM campaign_calls
WHERE campaign_id = $1
`
	var s CallStats
	err := r.db.QueryRowContext(ctx, q, campaignID).
		Scan(&s.CallsMade, &s.CallsAnswered, &s.CallsSuccessful, &s.Bookings)
	if err != nil {
		return CallStats{}, err
	}
	return s, nil
}

func (r *PostgresRepository) CompanyAnalytics(ctx context.Context, companyID string) (CompanySnapshot, error) {
	const q = `
SELECT
	COUNT(*) AS total_calls,
	COUNT(*) FILTER (WHERE o.outcome IN ('interested', 'callback_requested')) AS completed_calls,
	COUNT(*) FILTER (WHERE o.outcome = 'incomplete') AS failed_calls,
	COUNT(*) FILTER (WHERE o.outcome = 'callback_requested') AS total_bookings
FROM call_outcomes o
JOIN agents a ON a.id = o.agent_id
WHERE a.company_id = $1
`
	snap := CompanySnapshot{CompanyID: companyID}
	err := r.db.QueryRowContext(ctx, q, companyID).
		Scan(&snap.TotalCalls, &snap.CompletedCalls, &snap.FailedCalls, &snap.TotalBookings)
	if err != nil {
		return CompanySnapshot{}, err
	}
	if snap.TotalCalls > 0 {
		snap.ResolutionRate = round2(float64(snap.CompletedCalls) / float64(snap.TotalCalls) * 100)
	}
	return snap, nil
}

func (r *PostgresRepository) CompanyIDForAgent(ctx context.Context, agentID string) (string, error) {
	const q = `SELECT company_id FROM agents WHERE id = $1`
	var companyID string
	err := r.db.QueryRowContext(ctx, q, agentID).Scan(&companyID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return companyID, nil
}
