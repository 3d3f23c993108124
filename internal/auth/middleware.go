package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// tokenQueryParam carries the JWT on websocket handshakes, where browsers
// cannot set an Authorization header.
const tokenQueryParam = "token"

// RequireAccessToken verifies a bearer access token and injects identity
// into the request context.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.CompanyID, claims.Role)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", claims.UserID)
		c.Set("company_id", claims.CompanyID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

var ErrMissingToken = errors.New("auth: missing token")

// VerifyQueryToken authenticates a websocket handshake from the ?token=
// query parameter. It must run before the connection is upgraded so a
// rejection is still a plain HTTP 401.
func VerifyQueryToken(m *Manager, c *gin.Context) (Claims, error) {
	tok := strings.TrimSpace(c.Query(tokenQueryParam))
	if tok == "" {
		return Claims{}, ErrMissingToken
	}
	return m.Verify(tok, time.Now())
}
