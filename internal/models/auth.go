package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the JWT payload issued by the external session provider.
// The messaging core only validates it, it never issues tokens.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
