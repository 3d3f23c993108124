package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess TokenType = "access"
)

// Claims are the only supported JWT claims shape for this service.
// Multi-tenant invariant: CompanyID must be present on every access token;
// dashboard sockets and campaign endpoints are all company-scoped.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	CompanyID string    `json:"company_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
