package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/abdulllahhh/Comfy/common/errors"
	"github.com/abdulllahhh/Comfy/middleware"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GatedRunner interface {
	RunGatedWork(ctx context.Context, userID string, req models.WorkflowRequest) (json.RawMessage, error)
}

type WorkflowController struct {
	guard  GatedRunner
	Logger *zap.Logger
}

func NewWorkflowController(guard GatedRunner, log *zap.Logger) *WorkflowController {
	return &WorkflowController{guard: guard, Logger: log}
}

// RunModel handles POST /api/workflow/run-model
func (wc *WorkflowController) RunModel(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		apperrors.Respond(c, apperrors.Auth("Unauthorized", nil))
		return
	}

	var req models.WorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		respondError(c, wc.Logger, err)
		return
	}

	result, err := wc.guard.RunGatedWork(c.Request.Context(), userID, req)
	if errors.Is(err, services.ErrUserNotFound) {
		// token outlived its account
		apperrors.Respond(c, apperrors.Auth("Unauthorized", err))
		return
	}
	if err != nil {
		respondError(c, wc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
