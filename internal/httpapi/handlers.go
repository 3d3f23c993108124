// Package httpapi holds the REST handlers that sit next to the
// websocket surfaces.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Call-Sure-AI/csai-realtime/internal/audit"
	"github.com/Call-Sure-AI/csai-realtime/internal/auth"
	"github.com/Call-Sure-AI/csai-realtime/internal/campaign"
	"github.com/Call-Sure-AI/csai-realtime/internal/conversation"
)

type Handlers struct {
	campaigns     *campaign.Orchestrator
	conversations *conversation.Manager
	audit         *audit.Service
	log           *slog.Logger
}

func NewHandlers(campaigns *campaign.Orchestrator, conversations *conversation.Manager, auditSvc *audit.Service, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		campaigns:     campaigns,
		conversations: conversations,
		audit:         auditSvc,
		log:           log.With("component", "httpapi"),
	}
}

// StartCalling kicks off the calling job for a campaign and returns
// 202 with the lead count once the job is running in the background.
func (h *Handlers) StartCalling(c *gin.Context) {
	campaignID := c.Param("id")

	var req campaign.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	companyID, _ := auth.CompanyID(c.Request.Context())
	n, err := h.campaigns.Initiate(c.Request.Context(), campaignID, companyID, req)
	if err != nil {
		var verr *campaign.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		case errors.Is(err, campaign.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		default:
			h.log.Error("start calling failed", "campaign_id", campaignID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start calling"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":     "calling started",
		"campaign_id": campaignID,
		"leads_count": n,
	})
}

// CallStatus reports calling-job progress for a campaign.
func (h *Handlers) CallStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.campaigns.GetStatus(c.Request.Context(), c.Param("id")))
}

// StopCalling cancels a running calling job. Idempotent.
func (h *Handlers) StopCalling(c *gin.Context) {
	campaignID := c.Param("id")
	h.campaigns.Stop(campaignID)
	c.JSON(http.StatusOK, gin.H{"message": "calling stopped", "campaign_id": campaignID})
}

// AuditTrail returns the most recent calling events for a campaign.
func (h *Handlers) AuditTrail(c *gin.Context) {
	campaignID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.audit.Trail(c.Request.Context(), campaignID, limit)
	if err != nil {
		h.log.Error("audit trail lookup failed", "campaign_id", campaignID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign_id": campaignID, "events": events})
}

// ActiveSessions lists live conversation sessions for monitoring.
func (h *Handlers) ActiveSessions(c *gin.Context) {
	sessions := h.conversations.ActiveSessions()
	c.JSON(http.StatusOK, gin.H{"count": len(sessions), "sessions": sessions})
}
