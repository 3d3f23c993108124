package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Call-Sure-AI/csai-realtime/internal/analytics"
	"github.com/Call-Sure-AI/csai-realtime/internal/auth"
	"github.com/Call-Sure-AI/csai-realtime/internal/campaign"
	"github.com/Call-Sure-AI/csai-realtime/internal/config"
	"github.com/Call-Sure-AI/csai-realtime/internal/conversation"
	"github.com/Call-Sure-AI/csai-realtime/internal/realtime"
)

// Handlers upgrades websocket handshakes and bridges each connection
// to the session manager or the realtime hub.
type Handlers struct {
	upgrader websocket.Upgrader

	auth          *auth.Manager
	conversations *conversation.Manager
	orchestrator  *campaign.Orchestrator
	analytics     *analytics.Service
	hub           *realtime.Hub
	pusher        *realtime.Pusher

	cfg config.RealtimeConfig
	log *slog.Logger
}

func NewHandlers(
	authMgr *auth.Manager,
	conversations *conversation.Manager,
	orchestrator *campaign.Orchestrator,
	analyticsSvc *analytics.Service,
	hub *realtime.Hub,
	pusher *realtime.Pusher,
	cfg config.RealtimeConfig,
	log *slog.Logger,
) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Dashboards and the voice pipeline connect cross-origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		auth:          authMgr,
		conversations: conversations,
		orchestrator:  orchestrator,
		analytics:     analyticsSvc,
		hub:           hub,
		pusher:        pusher,
		cfg:           cfg,
		log:           log.With("component", "ws"),
	}
}

// authorize verifies the handshake token from the query string. It
// writes the HTTP rejection itself and reports whether to proceed.
func (h *Handlers) authorize(c *gin.Context) (auth.Claims, bool) {
	claims, err := auth.VerifyQueryToken(h.auth, c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return auth.Claims{}, false
	}
	return claims, true
}

// authorizeCompany additionally requires the token to belong to the
// company in the path, admins excepted.
func (h *Handlers) authorizeCompany(c *gin.Context, companyID string) (auth.Claims, bool) {
	claims, ok := h.authorize(c)
	if !ok {
		return auth.Claims{}, false
	}
	if claims.CompanyID != companyID && claims.Role != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "company mismatch"})
		return auth.Claims{}, false
	}
	return claims, true
}

func (h *Handlers) upgrade(c *gin.Context) (*Conn, bool) {
	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("upgrade failed", "path", c.Request.URL.Path, "err", err)
		return nil, false
	}
	return NewConn(wsConn), true
}

// Conversation is the voice-pipeline channel for one call. The read
// loop is the single consumer, so messages for a call are handled
// strictly in arrival order.
func (h *Handlers) Conversation(c *gin.Context) {
	callID := c.Param("call_id")
	agentID := c.Query("agent_id")
	if _, ok := h.authorize(c); !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	h.conversations.Connect(conn, callID, agentID)
	defer func() {
		// Scoped to this connection: a reconnect may already own the
		// call's registry entry by the time this handler unwinds.
		h.conversations.Disconnect(callID, conn)
		_ = conn.Close()
	}()

	if err := conn.Send(gin.H{
		"type":      conversation.MessageTypeConnected,
		"call_id":   callID,
		"agent_id":  agentID,
		"timestamp": time.Now().UTC(),
	}); err != nil {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg conversation.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.conversations.HandleMalformed(callID)
			continue
		}
		if msg.Type == "ping" {
			_ = conn.Send(gin.H{"type": "pong"})
			continue
		}
		h.conversations.HandleMessage(ctx, callID, msg)
	}
}

// Live streams calling-job progress for a campaign every push interval.
func (h *Handlers) Live(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if _, ok := h.authorize(c); !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	topic := realtime.LiveTopic(campaignID)
	snapshot := h.orchestrator.GetStatus(ctx, campaignID)
	subID := h.hub.Subscribe(topic, conn, snapshot)
	h.pusher.Ensure(ctx, topic, h.cfg.LivePushInterval, func(ctx context.Context) (any, error) {
		return h.orchestrator.GetStatus(ctx, campaignID), nil
	})

	h.drain(conn)
	h.hub.Unsubscribe(topic, subID)
	_ = conn.Close()
}

// Metrics streams campaign metrics on its own cadence.
func (h *Handlers) Metrics(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if _, ok := h.authorize(c); !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	topic := realtime.MetricsTopic(campaignID)

	var snapshot any
	if m, err := h.analytics.CampaignMetrics(ctx, campaignID); err != nil {
		h.log.Warn("metrics snapshot failed", "campaign_id", campaignID, "err", err)
	} else {
		snapshot = m
	}
	subID := h.hub.Subscribe(topic, conn, snapshot)
	h.pusher.Ensure(ctx, topic, h.cfg.MetricsPushInterval, func(ctx context.Context) (any, error) {
		return h.analytics.CampaignMetrics(ctx, campaignID)
	})

	h.drain(conn)
	h.hub.Unsubscribe(topic, subID)
	_ = conn.Close()
}

// Analytics is the on-change company analytics feed. Subscribers get a
// snapshot at join and fresh ones as outcomes are recorded.
func (h *Handlers) Analytics(c *gin.Context) {
	companyID := c.Param("company_id")
	if _, ok := h.authorizeCompany(c, companyID); !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	var snapshot any
	if snap, err := h.analytics.CompanySnapshot(ctx, companyID); err != nil {
		h.log.Warn("analytics snapshot failed", "company_id", companyID, "err", err)
	} else {
		snapshot = snap
	}

	topic := realtime.AnalyticsTopic(companyID)
	subID := h.hub.Subscribe(topic, conn, snapshot)

	h.drain(conn)
	h.hub.Unsubscribe(topic, subID)
	_ = conn.Close()
}

// AgentNumbers is the on-change feed of agent phone-number assignments
// for a company. Publishes arrive from whichever component changes an
// assignment.
func (h *Handlers) AgentNumbers(c *gin.Context) {
	companyID := c.Param("company_id")
	if _, ok := h.authorizeCompany(c, companyID); !ok {
		return
	}
	conn, ok := h.upgrade(c)
	if !ok {
		return
	}

	topic := realtime.AgentNumbersTopic(companyID)
	subID := h.hub.Subscribe(topic, conn, nil)

	h.drain(conn)
	h.hub.Unsubscribe(topic, subID)
	_ = conn.Close()
}

// drain keeps the read side alive so peer closes are noticed, answering
// pings and dropping everything else. Returns when the peer goes away.
func (h *Handlers) drain(conn *Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err == nil && msg.Type == "ping" {
			_ = conn.Send(gin.H{"type": "pong"})
		}
	}
}
