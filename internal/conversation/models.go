package conversation

import (
	"encoding/json"
	"sync"
	"time"
)

// MessageType is the closed set of envelope types on a conversation
// channel. Inbound and outbound messages share the envelope; unknown
// inbound types are logged and ignored.
type MessageType string

const (
	// Inbound
	MessageTypeUserJoined       MessageType = "user_joined"
	MessageTypeTranscriptUpdate MessageType = "transcript_update"
	MessageTypeAgentResponse    MessageType = "agent_response"
	MessageTypeCallEnded        MessageType = "call_ended"

	// Outbound
	MessageTypeConnected     MessageType = "connected"
	MessageTypeCallCompleted MessageType = "call_completed"
	MessageTypeError         MessageType = "error"
)

// AgentAction selects the behavior of an agent_response message.
type AgentAction string

const (
	AgentActionSendMessage      AgentAction = "send_message"
	AgentActionScheduleCallback AgentAction = "schedule_callback"
)

// InboundMessage is the decoded wire envelope for one inbound message.
// Fields are type-specific; only the ones for the given Type are read.
type InboundMessage struct {
	Type MessageType `json:"type"`

	// user_joined
	Phone       string         `json:"phone,omitempty"`
	UserDetails map[string]any `json:"user_details,omitempty"`

	// transcript_update
	Transcript string `json:"transcript,omitempty"`
	Speaker    string `json:"speaker,omitempty"`

	// agent_response
	Response        string         `json:"response,omitempty"`
	Action          AgentAction    `json:"action,omitempty"`
	CallbackDetails map[string]any `json:"callback_details,omitempty"`
}

type SessionStatus string

const (
	SessionStatusConnected SessionStatus = "connected"
	SessionStatusCompleted SessionStatus = "completed"
)

// TranscriptEntry is one utterance in arrival order.
type TranscriptEntry struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the in-memory state for one live call. CallID, AgentID,
// StartTime and sender are fixed at creation; every other field is
// guarded by mu, because the dispatch path and the monitoring surface
// run on different goroutines.
type Session struct {
	CallID    string
	AgentID   string
	StartTime time.Time

	mu     sync.Mutex
	Status SessionStatus

	UserPhone   string
	UserDetails map[string]any

	Messages   []TranscriptEntry
	Transcript string

	CallbackRequested bool
	CallbackDetails   map[string]any

	sender Sender
}

// SessionInfo is the read-only view exposed to monitoring surfaces.
type SessionInfo struct {
	CallID    string        `json:"call_id"`
	AgentID   string        `json:"agent_id"`
	Status    SessionStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
}

// Outcome is the heuristic classification computed once at call end.
type Outcome string

const (
	OutcomeCallbackRequested Outcome = "callback_requested"
	OutcomeInterested        Outcome = "interested"
	OutcomeNotInterested     Outcome = "not_interested"
	OutcomeIncomplete        Outcome = "incomplete"
)

func marshalMessages(msgs []TranscriptEntry) (string, error) {
	b, err := json.Marshal(msgs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OutcomeRecord is the immutable result of a completed call, handed to
// the analytics collaborator.
type OutcomeRecord struct {
	CallID           string         `json:"call_id"`
	AgentID          string         `json:"agent_id"`
	UserPhone        string         `json:"user_phone,omitempty"`
	DurationSeconds  int            `json:"duration_seconds"`
	Outcome          Outcome        `json:"outcome"`
	LeadScore        int            `json:"lead_score"`
	ExtractedDetails map[string]any `json:"extracted_details,omitempty"`
}
