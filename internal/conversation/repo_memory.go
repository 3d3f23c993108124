package conversation

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu sync.Mutex

	Created []CreatedRecord
	Updated []UpdatedRecord

	// Err, when set, is returned by every call. Used to exercise the
	// collaborator-failure paths.
	Err error
}

type CreatedRecord struct {
	CallID    string
	UserPhone string
	AgentID   string
}

type UpdatedRecord struct {
	CallID          string
	Outcome         Outcome
	MessagesJSON    string
	DurationSeconds int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (r *MemoryStore) CreateConversation(ctx context.Context, callID, userPhone, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Created = append(r.Created, CreatedRecord{CallID: callID, UserPhone: userPhone, AgentID: agentID})
	return nil
}

func (r *MemoryStore) UpdateConversationOutcome(ctx context.Context, callID string, outcome Outcome, messagesJSON string, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Updated = append(r.Updated, UpdatedRecord{
		CallID:          callID,
		Outcome:         outcome,
		MessagesJSON:    messagesJSON,
		DurationSeconds: durationSeconds,
	})
	return nil
}
