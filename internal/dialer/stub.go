package dialer

import (
	"context"
	"sync"
)

// Stub is an in-memory Dialer for tests and local development. Calls
// are recorded; FailFor marks lead IDs whose attempts should fail.
type Stub struct {
	mu      sync.Mutex
	Placed  []PlaceRequest
	FailFor map[string]error
}

func NewStub() *Stub {
	return &Stub{FailFor: make(map[string]error)}
}

func (s *Stub) PlaceCall(ctx context.Context, req PlaceRequest) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Placed = append(s.Placed, req)
	if err, ok := s.FailFor[req.LeadID]; ok {
		return Result{}, err
	}
	return Result{Success: true, CallSID: "SID-" + req.LeadID, Status: "queued"}, nil
}

// PlacedCount returns how many calls have been attempted so far.
func (s *Stub) PlacedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Placed)
}
