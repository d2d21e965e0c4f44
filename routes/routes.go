package routes

import (
	"net/http"

	"github.com/abdulllahhh/Comfy/controllers"
	"github.com/abdulllahhh/Comfy/middleware"
	"github.com/abdulllahhh/Comfy/models"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth     *controllers.AuthController
	Payment  *controllers.PaymentController
	Credits  *controllers.CreditsController
	Workflow *controllers.WorkflowController
	Metrics  http.Handler
	Tokens   middleware.TokenValidator
}

// Rate limits on the anonymous auth endpoints, per client IP.
const (
	loginPerMinute    = 5
	registerPerMinute = 3
)

// RegisterRoutes wires every endpoint onto r.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "comfy"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	authn := middleware.AuthMiddleware(h.Tokens)
	admin := middleware.RequireRole(models.RoleAdmin)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", middleware.PerMinute(registerPerMinute).Limit(), h.Auth.Register)
		auth.POST("/login", middleware.PerMinute(loginPerMinute).Limit(), h.Auth.Login)
		auth.POST("/refresh-token", h.Auth.RefreshToken)
		auth.POST("/addrole", authn, admin, h.Auth.AddRole)
	}

	payment := r.Group("/api/payment")
	{
		payment.GET("/packages", h.Payment.ListPackages)
		payment.POST("/create-checkout-session", authn, h.Payment.CreateCheckoutSession)
		// signature-authenticated, never behind JWT
		payment.POST("/stripe-webhook", h.Payment.StripeWebhook)
	}

	credits := r.Group("/api/credits", authn)
	{
		credits.GET("/balance", h.Credits.GetBalance)
		credits.GET("/transactions", h.Credits.GetTransactions)
		credits.GET("/payments", h.Credits.GetPayments)
	}

	r.GET("/api/admin/ledger/:userId/reconcile", authn, admin, h.Credits.Reconcile)

	r.POST("/api/workflow/run-model", authn, h.Workflow.RunModel)
}
