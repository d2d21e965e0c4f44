package middleware

import (
	"strings"

	apperrors "github.com/abdulllahhh/Comfy/common/errors"
	"github.com/abdulllahhh/Comfy/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextEmail  = "email"
)

// TokenValidator is satisfied by services.TokenService.
type TokenValidator interface {
	ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error)
}

// AuthMiddleware requires a valid bearer access token and exposes its
// subject and role to later handlers.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			apperrors.Respond(c, apperrors.Auth("Missing token", nil))
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(tokenString), "access")
		if err != nil {
			apperrors.Respond(c, apperrors.Auth("Invalid token", err))
			return
		}

		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		email, _ := claims["email"].(string)
		if role == "" {
			role = models.RoleUser
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		c.Set(ContextEmail, email)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			apperrors.Respond(c, apperrors.Forbidden("Access denied"))
			return
		}
		c.Next()
	}
}
