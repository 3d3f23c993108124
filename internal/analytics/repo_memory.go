package analytics

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu sync.Mutex

	Outcomes []OutcomeRow
	Stats    map[string]CallStats
	Agents   map[string]string // agent ID -> company ID

	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Stats:  make(map[string]CallStats),
		Agents: make(map[string]string),
	}
}

func (r *MemoryRepository) InsertOutcome(ctx context.Context, row OutcomeRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	row.CreatedAt = time.Now().UTC()
	r.Outcomes = append(r.Outcomes, row)
	return nil
}

func (r *MemoryRepository) CampaignCallStats(ctx context.Context, campaignID string) (CallStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return CallStats{}, r.Err
	}
	return r.Stats[campaignID], nil
}

func (r *MemoryRepository) CompanyAnalytics(ctx context.Context, companyID string) (CompanySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return CompanySnapshot{}, r.Err
	}

	snap := CompanySnapshot{CompanyID: companyID}
	for _, o := range r.Outcomes {
		if r.Agents[o.AgentID] != companyID {
			continue
		}
		snap.TotalCalls++
		switch o.Outcome {
		case "interested":
			snap.CompletedCalls++
		case "callback_requested":
			snap.CompletedCalls++
			snap.TotalBookings++
		case "incomplete":
			snap.FailedCalls++
		}
	}
	if snap.TotalCalls > 0 {
		snap.ResolutionRate = round2(float64(snap.CompletedCalls) / float64(snap.TotalCalls) * 100)
	}
	return snap, nil
}

func (r *MemoryRepository) CompanyIDForAgent(ctx context.Context, agentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	companyID, ok := r.Agents[agentID]
	if !ok {
		return "", ErrNotFound
	}
	return companyID, nil
}
