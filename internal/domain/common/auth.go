package common

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the custom claims included in the JWT access token.
type Claims struct {
	UserID               string `json:"uid"`           // Custom claim for User ID.
	Email                string `json:"eml,omitempty"` // Custom claim for Email.
	Role                 string `json:"rol,omitempty"` // Custom claim for User Role.
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}
