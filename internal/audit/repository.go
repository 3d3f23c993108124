package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
)

// PostgresRepository stores audit events in Postgres.
//
// Assumed table:
//   audit_events(id PK, type, campaign_id, call_id, lead_id,
//                detail JSONB, created_at)
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e Event) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_events (id, type, campaign_id, call_id, lead_id, detail, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
`
	_, err = r.db.ExecContext(ctx, q, e.ID, string(e.Type), e.CampaignID, e.CallID, e.LeadID, detail, e.CreatedAt)
	return err
}

func (r *PostgresRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	const q = `
SELECT id, type, campaign_id, COALESCE(call_id, ''), COALESCE(lead_id, ''), detail, created_at
FROM audit_events
WHERE campaign_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var detail []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.CampaignID, &e.CallID, &e.LeadID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu     sync.Mutex
	Events []Event
	Err    error
}

func NewMemoryRepository() *MemoryRepository { return &MemoryRepository{} }

func (r *MemoryRepository) Insert(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, e)
	return nil
}

func (r *MemoryRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []Event
	for i := len(r.Events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Events[i].CampaignID == campaignID {
			out = append(out, r.Events[i])
		}
	}
	return out, nil
}

// ByType returns recorded events of one type, for assertions.
func (r *MemoryRepository) ByType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
