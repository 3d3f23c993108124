package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Call-Sure-AI/csai-realtime/internal/auth"
	"github.com/Call-Sure-AI/csai-realtime/internal/httpapi"
	"github.com/Call-Sure-AI/csai-realtime/internal/ws"
	"github.com/Call-Sure-AI/csai-realtime/pkg/utils"
)

// registerRoutes wires HTTP and websocket routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, db *sql.DB, rdb *redis.Client, authManager *auth.Manager, wsH *ws.Handlers, apiH *httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Websocket handshakes authenticate via ?token= inside the handler;
	// browsers cannot set an Authorization header on a ws upgrade.
	wsGroup := r.Group("/ws")
	{
		wsGroup.GET("/conversations/:call_id", wsH.Conversation)
		wsGroup.GET("/live/:campaign_id", wsH.Live)
		wsGroup.GET("/metrics/:campaign_id", wsH.Metrics)
		wsGroup.GET("/analytics/:company_id", wsH.Analytics)
		wsGroup.GET("/agent-numbers/:company_id", wsH.AgentNumbers)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(authManager))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			cid, _ := auth.CompanyID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "company_id": cid, "role": role})
		})

		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("/:id/start-calling", apiH.StartCalling)
			campaigns.POST("/:id/stop-calling", apiH.StopCalling)
			campaigns.GET("/:id/call-status", apiH.CallStatus)
			campaigns.GET("/:id/audit", apiH.AuditTrail)
		}

		conversations := v1.Group("/conversations")
		{
			conversations.GET("/active", apiH.ActiveSessions)
		}
	}
}
