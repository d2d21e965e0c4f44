package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/abdulllahhh/Comfy/middleware"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 65536

type CheckoutIssuer interface {
	ListPackages() []services.CreditPackage
	CreateCheckoutSession(ctx context.Context, userID string, credits int) (*services.SessionDescriptor, error)
}

type PaymentEventApplier interface {
	ApplyPaymentEvent(ctx context.Context, rawBody []byte, signatureHeader string) error
}

type PaymentController struct {
	checkout CheckoutIssuer
	events   PaymentEventApplier
	Logger   *zap.Logger
}

func NewPaymentController(checkout CheckoutIssuer, events PaymentEventApplier, log *zap.Logger) *PaymentController {
	return &PaymentController{checkout: checkout, events: events, Logger: log}
}

// ListPackages handles GET /api/payment/packages
func (pc *PaymentController) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": pc.checkout.ListPackages()})
}

// CreateCheckoutSession handles POST /api/payment/create-checkout-session
func (pc *PaymentController) CreateCheckoutSession(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Validate() != nil {
		badRequest(c, "Invalid credit package")
		return
	}

	sess, err := pc.checkout.CreateCheckoutSession(c.Request.Context(), userID, req.Credits)
	if err != nil {
		respondError(c, pc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// StripeWebhook handles POST /api/payment/stripe-webhook. The body is read
// raw because the signature covers the exact bytes sent.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		badRequest(c, "Unable to read request body")
		return
	}
	if len(body) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}

	if err := pc.events.ApplyPaymentEvent(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, pc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
