package campaign

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu sync.Mutex

	Statuses map[string]string // campaign ID -> status
	Leads    map[string][]Lead // campaign ID -> callable leads
	Calls    []RecordedCall

	// StatusErr, when set, is returned by CampaignStatus lookups.
	StatusErr error

	// OnStatusLookup, when set, runs before each CampaignStatus lookup
	// with the number of lookups made so far for that campaign. Tests
	// use it to flip a campaign's status mid-run.
	OnStatusLookup func(campaignID string, lookups int)

	lookups map[string]int
}

type RecordedCall struct {
	CampaignID string
	LeadID     string
	CallSID    string
	Status     string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Statuses: make(map[string]string),
		Leads:    make(map[string][]Lead),
		lookups:  make(map[string]int),
	}
}

func (r *MemoryRepository) CampaignStatus(ctx context.Context, campaignID string) (string, error) {
	r.mu.Lock()
	r.lookups[campaignID]++
	n := r.lookups[campaignID]
	hook := r.OnStatusLookup
	r.mu.Unlock()

	if hook != nil {
		hook(campaignID, n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StatusErr != nil {
		return "", r.StatusErr
	}
	status, ok := r.Statuses[campaignID]
	if !ok {
		return "", ErrNotFound
	}
	return status, nil
}

func (r *MemoryRepository) SetCampaignStatus(ctx context.Context, campaignID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Statuses[campaignID]; !ok {
		return ErrNotFound
	}
	r.Statuses[campaignID] = status
	return nil
}

func (r *MemoryRepository) CallableLeads(ctx context.Context, campaignID string, f LeadFilters) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	leads := r.Leads[campaignID]
	if f.MaxLeads > 0 && len(leads) > f.MaxLeads {
		leads = leads[:f.MaxLeads]
	}
	out := make([]Lead, len(leads))
	copy(out, leads)
	return out, nil
}

func (r *MemoryRepository) RecordCall(ctx context.Context, campaignID, leadID, callSID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RecordedCall{
		CampaignID: campaignID,
		LeadID:     leadID,
		CallSID:    callSID,
		Status:     status,
	})
	return nil
}

func (r *MemoryRepository) CallCounts(ctx context.Context, campaignID string) (CallCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c CallCounts
	for _, call := range r.Calls {
		if call.CampaignID != campaignID {
			continue
		}
		c.Called++
		if call.Status == "failed" {
			c.Failed++
		} else {
			c.Successful++
		}
	}
	return c, nil
}

// RecordedCalls returns a copy of the call log.
func (r *MemoryRepository) RecordedCalls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCall, len(r.Calls))
	copy(out, r.Calls)
	return out
}
