package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims are the JWT claims issued by the ERP web app for a signed-in user.
type UserClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Validate performs additional validation on custom claims
func (c *UserClaims) Validate() error {
	if c.UserID == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}
