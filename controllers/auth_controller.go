package controllers

import (
	"context"
	"net/http"

	"github.com/abdulllahhh/Comfy/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	AssignRole(ctx context.Context, userID, role string) error
}

type AuthController struct {
	authService AuthService
	Logger      *zap.Logger
}

func NewAuthController(svc AuthService, log *zap.Logger) *AuthController {
	return &AuthController{authService: svc, Logger: log}
}

// Register handles POST /api/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	resp, err := ac.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Login handles POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ac.Logger, err)
		return
	}

	resp, err := ac.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshToken handles POST /api/auth/refresh-token
func (ac *AuthController) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Validate() != nil {
		badRequest(c, "Refresh token is required")
		return
	}

	resp, err := ac.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddRole handles POST /api/auth/addrole (admin only)
func (ac *AuthController) AddRole(c *gin.Context) {
	var req models.AddRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, ac.Logger, err)
		return
	}

	if err := ac.authService.AssignRole(c.Request.Context(), req.UserID, req.Role); err != nil {
		respondError(c, ac.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role assigned successfully"})
}
