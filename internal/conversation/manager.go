package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sender is the outbound half of a conversation channel. Implementations
// must be safe for concurrent use.
type Sender interface {
	Send(v any) error
	Close() error
}

// Store is the persistence collaborator for conversation records.
// Implementations live at the storage boundary; the manager only sees
// this contract.
type Store interface {
	CreateConversation(ctx context.Context, callID, userPhone, agentID string) error
	UpdateConversationOutcome(ctx context.Context, callID string, outcome Outcome, messagesJSON string, durationSeconds int) error
}

// Analytics is the analytics collaborator invoked once per completed call.
type Analytics interface {
	RecordConversationOutcome(ctx context.Context, rec OutcomeRecord) error
}

var ErrSessionNotFound = errors.New("conversation: session not found")

// Manager owns one live session per call ID. Messages for one call are
// processed strictly in arrival order (the channel read loop is the
// single consumer); the registry itself supports concurrent
// connect/disconnect/lookup across calls.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store     Store
	analytics Analytics

	now func() time.Time
	log *slog.Logger
}

// NewManager creates a session manager. Pass nil logger for default.
func NewManager(store Store, analytics Analytics, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		store:     store,
		analytics: analytics,
		now:       time.Now,
		log:       log.With("component", "conversation_manager"),
	}
}

// Connect registers a new session for callID. If a live session already
// exists for the same call ID its channel is closed before the entry is
// replaced, so the stale connection cannot linger.
func (m *Manager) Connect(sender Sender, callID, agentID string) {
	s := &Session{
		CallID:    callID,
		AgentID:   agentID,
		StartTime: m.now().UTC(),
		Status:    SessionStatusConnected,
		sender:    sender,
	}

	m.mu.Lock()
	old, existed := m.sessions[callID]
	m.sessions[callID] = s
	m.mu.Unlock()

	if existed {
		m.log.Warn("replacing live session", "call_id", callID)
		_ = old.sender.Close()
	}
	m.log.Info("session connected", "call_id", callID, "agent_id", agentID)
}

// Disconnect removes the session for callID, but only while it is still
// bound to sender: after a reconnect replaces the registry entry, the
// old handler's teardown must not evict the new session. A nil sender
// removes whatever is registered. Idempotent.
func (m *Manager) Disconnect(callID string, sender Sender) {
	m.mu.Lock()
	s, existed := m.sessions[callID]
	removed := existed && (sender == nil || s.sender == sender)
	if removed {
		delete(m.sessions, callID)
	}
	m.mu.Unlock()

	if removed {
		m.log.Info("session disconnected", "call_id", callID)
	}
}

// Send delivers a message on the session's channel.
func (m *Manager) Send(callID string, v any) error {
	m.mu.RLock()
	s, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.sender.Send(v)
}

// HandleMessage routes one decoded inbound message for callID.
// Unknown types are logged and dropped; no error reaches the channel.
func (m *Manager) HandleMessage(ctx context.Context, callID string, msg InboundMessage) {
	switch msg.Type {
	case MessageTypeUserJoined:
		m.handleUserJoined(ctx, callID, msg)
	case MessageTypeTranscriptUpdate:
		m.handleTranscriptUpdate(callID, msg.Speaker, msg.Transcript)
	case MessageTypeAgentResponse:
		m.handleAgentResponse(callID, msg)
	case MessageTypeCallEnded:
		m.handleCallEnded(ctx, callID)
	default:
		m.log.Warn("unknown message type", "call_id", callID, "type", string(msg.Type))
	}
}

// HandleMalformed replies with an error envelope for a message that
// could not be decoded. The session stays up.
func (m *Manager) HandleMalformed(callID string) {
	err := m.Send(callID, map[string]any{
		"type":      MessageTypeError,
		"message":   "invalid message format, expected JSON",
		"timestamp": m.now().UTC(),
	})
	if err != nil {
		m.log.Warn("error reply failed", "call_id", callID, "err", err)
	}
}

func (m *Manager) handleUserJoined(ctx context.Context, callID string, msg InboundMessage) {
	m.mu.RLock()
	s, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.UserPhone = msg.Phone
	s.UserDetails = msg.UserDetails
	s.mu.Unlock()

	if err := m.store.CreateConversation(ctx, callID, msg.Phone, s.AgentID); err != nil {
		m.log.Error("conversation create failed", "call_id", callID, "err", err)
	}

	if err := s.sender.Send(map[string]any{
		"type":         MessageTypeUserJoined,
		"phone":        msg.Phone,
		"user_details": msg.UserDetails,
	}); err != nil {
		m.log.Warn("echo failed", "call_id", callID, "err", err)
	}
}

func (m *Manager) handleTranscriptUpdate(callID, speaker, text string) {
	m.mu.RLock()
	s, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	if speaker == "" {
		speaker = "unknown"
	}

	ts := m.now().UTC()
	s.mu.Lock()
	s.Messages = append(s.Messages, TranscriptEntry{Speaker: speaker, Text: text, Timestamp: ts})
	s.Transcript += speaker + ": " + text + "\n"
	s.mu.Unlock()

	if err := s.sender.Send(map[string]any{
		"type":      MessageTypeTranscriptUpdate,
		"speaker":   speaker,
		"text":      text,
		"timestamp": ts,
	}); err != nil {
		m.log.Warn("echo failed", "call_id", callID, "err", err)
	}
}

func (m *Manager) handleAgentResponse(callID string, msg InboundMessage) {
	switch msg.Action {
	case AgentActionSendMessage:
		m.handleTranscriptUpdate(callID, "agent", msg.Response)
	case AgentActionScheduleCallback:
		m.mu.RLock()
		s, ok := m.sessions[callID]
		m.mu.RUnlock()
		if !ok {
			return
		}
		s.mu.Lock()
		s.CallbackRequested = true
		s.CallbackDetails = msg.CallbackDetails
		s.mu.Unlock()
	default:
		m.log.Warn("unknown agent action", "call_id", callID, "action", string(msg.Action))
	}
}

// handleCallEnded is the terminal path: classify the outcome, notify the
// collaborators, send the summary, tear the session down. Collaborator
// failures are logged and never prevent the summary or the teardown.
func (m *Manager) handleCallEnded(ctx context.Context, callID string) {
	m.mu.RLock()
	s, ok := m.sessions[callID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	duration := m.now().UTC().Sub(s.StartTime)

	s.mu.Lock()
	s.Status = SessionStatusCompleted
	transcript := s.Transcript
	callbackRequested := s.CallbackRequested
	userPhone := s.UserPhone
	userDetails := s.UserDetails
	messages := s.Messages
	s.mu.Unlock()

	outcome := classifyOutcome(transcript, callbackRequested)
	score := leadScore(transcript, duration)
	details := extractDetails(userPhone, userDetails, duration)
	secs := int(duration.Seconds())

	rec := OutcomeRecord{
		CallID:           callID,
		AgentID:          s.AgentID,
		UserPhone:        userPhone,
		DurationSeconds:  secs,
		Outcome:          outcome,
		LeadScore:        score,
		ExtractedDetails: details,
	}
	if err := m.analytics.RecordConversationOutcome(ctx, rec); err != nil {
		m.log.Error("analytics record failed", "call_id", callID, "err", err)
	}

	messagesJSON, err := marshalMessages(messages)
	if err != nil {
		m.log.Error("messages marshal failed", "call_id", callID, "err", err)
	} else if err := m.store.UpdateConversationOutcome(ctx, callID, outcome, messagesJSON, secs); err != nil {
		m.log.Error("conversation update failed", "call_id", callID, "err", err)
	}

	if err := s.sender.Send(map[string]any{
		"type":              MessageTypeCallCompleted,
		"outcome":           outcome,
		"lead_score":        score,
		"duration":          secs,
		"extracted_details": details,
	}); err != nil {
		m.log.Warn("summary send failed", "call_id", callID, "err", err)
	}

	// A reconnect may have replaced the entry while we were finishing;
	// only remove the session this handler still owns.
	m.mu.Lock()
	if cur, ok := m.sessions[callID]; ok && cur == s {
		delete(m.sessions, callID)
	}
	m.mu.Unlock()

	m.log.Info("session completed",
		"call_id", callID,
		"outcome", string(outcome),
		"lead_score", score,
		"duration_seconds", secs)
}

// BroadcastToSessions sends v to every live session, pruning any whose
// channel has gone dead.
func (m *Manager) BroadcastToSessions(v any) {
	m.mu.RLock()
	type target struct {
		callID string
		sender Sender
	}
	targets := make([]target, 0, len(m.sessions))
	for id, s := range m.sessions {
		targets = append(targets, target{callID: id, sender: s.sender})
	}
	m.mu.RUnlock()

	for _, t := range targets {
		if err := t.sender.Send(v); err != nil {
			m.log.Warn("broadcast send failed", "call_id", t.callID, "err", err)
			m.Disconnect(t.callID, t.sender)
		}
	}
}

// ActiveSessions returns a point-in-time view of live sessions for the
// monitoring surface.
func (m *Manager) ActiveSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.mu.Lock()
		status := s.Status
		s.mu.Unlock()
		out = append(out, SessionInfo{
			CallID:    s.CallID,
			AgentID:   s.AgentID,
			Status:    status,
			StartTime: s.StartTime,
		})
	}
	return out
}
