package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/enums"
)

// AccessTokenPayload carries the identity fields minted into a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the typed claim set embedded in access tokens.
// The jti doubles as the Redis session key, so revoking the session
// invalidates the token before expiry.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"uid"`
	Email  string         `json:"email"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
