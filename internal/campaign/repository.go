package campaign

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/Call-Sure-AI/csai-realtime/pkg/utils"
)

var ErrNotFound = errors.New("campaign: not found")

// CallCounts are the persisted attempt totals for a campaign, used to
// answer status queries when no job is running.
type CallCounts struct {
	Called     int
	Successful int
	Failed     int
}

// Repository is the storage contract the orchestrator drives.
type Repository interface {
	CampaignStatus(ctx context.Context, campaignID string) (string, error)
	SetCampaignStatus(ctx context.Context, campaignID, status string) error
	CallableLeads(ctx context.Context, campaignID string, f LeadFilters) ([]Lead, error)
	RecordCall(ctx context.Context, campaignID, leadID, callSID, status string) error
	CallCounts(ctx context.Context, campaignID string) (CallCounts, error)
}

// PostgresRepository implements Repository over database/sql (pgx driver).
//
// Assumed tables:
//   campaigns(id PK, company_id, agent_id, status, updated_at, ...)
//   campaign_leads(id PK, campaign_id, name, phone, status, ...)
//   campaign_calls(id PK, campaign_id, lead_id, call_sid, status, created_at)
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CampaignStatus(ctx context.Context, campaignID string) (string, error) {
	const q = `SELECT status FROM campaigns WHERE id = $1`
	var status string
	err := r.db.QueryRowContext(ctx, q, campaignID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *PostgresRepository) SetCampaignStatus(ctx context.Context, campaignID, status string) error {
	const q = `UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, campaignID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CallableLeads(ctx context.Context, campaignID string, f LeadFilters) ([]Lead, error) {
	statuses := f.Statuses
	if len(statuses) == 0 {
		statuses = []string{"pending", "callback"}
	}
	limit := f.MaxLeads
	if limit <= 0 {
		limit = 10000
	}

	const q = `
SELECT id, name, phone, status
FROM campaign_leads
WHERE campaign_id = $1 AND status = ANY($2) AND phone <> ''
ORDER BY created_at
LIMIT $3
`
	// The pgx stdlib driver encodes []string as a text array.
	rows, err := r.db.QueryContext(ctx, q, campaignID, statuses, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Phone, &l.Status); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// RecordCall persists one attempt and advances the lead out of the
// callable pool in the same transaction, so a crash between the two
// writes can never leave an attempted lead eligible for redial.
func (r *PostgresRepository) RecordCall(ctx context.Context, campaignID, leadID, callSID, status string) error {
	const insertCall = `
INSERT INTO campaign_calls (id, campaign_id, lead_id, call_sid, status, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
`
	const advanceLead = `
UPDATE campaign_leads SET status = 'called', updated_at = NOW()
WHERE id = $1 AND campaign_id = $2
`
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertCall, uuid.NewString(), campaignID, leadID, callSID, status); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, advanceLead, leadID, campaignID)
		return err
	})
}

func (r *PostgresRepository) CallCounts(ctx context.Context, campaignID string) (CallCounts, error) {
	const q = `
SELECT
	COUNT(*) AS called,
	COUNT(*) FILTER (WHERE status <> 'failed') AS successful,
	COUNT(*) FILTER (WHERE status = 'failed') AS failed
FROM campaign_calls
WHERE campaign_id = $1
`
	var c CallCounts
	err := r.db.QueryRowContext(ctx, q, campaignID).Scan(&c.Called, &c.Successful, &c.Failed)
	if err != nil {
		return CallCounts{}, err
	}
	return c, nil
}
