package controllers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/abdulllahhh/Comfy/middleware"
	"github.com/abdulllahhh/Comfy/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LedgerReader is the read side of repository.LedgerRepository.
type LedgerReader interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, int64, error)
	ListPayments(ctx context.Context, userID string) ([]models.Payment, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, userID string) (*models.ReconciliationReport, error)
}

type CreditsController struct {
	ledger     LedgerReader
	reconciler Reconciler
	Logger     *zap.Logger
}

func NewCreditsController(ledger LedgerReader, reconciler Reconciler, log *zap.Logger) *CreditsController {
	return &CreditsController{ledger: ledger, reconciler: reconciler, Logger: log}
}

// GetBalance handles GET /api/credits/balance
func (cc *CreditsController) GetBalance(c *gin.Context) {
	balance, err := cc.ledger.GetBalance(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

// GetTransactions handles GET /api/credits/transactions?page=&limit=
func (cc *CreditsController) GetTransactions(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	txs, total, err := cc.ledger.ListTransactions(c.Request.Context(), c.GetString(middleware.ContextUserID), limit, (page-1)*limit)
	if err != nil {
		respondError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        total,
		"page":         page,
		"limit":        limit,
	})
}

// GetPayments handles GET /api/credits/payments
func (cc *CreditsController) GetPayments(c *gin.Context) {
	payments, err := cc.ledger.ListPayments(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// Reconcile handles GET /api/admin/ledger/:userId/reconcile
func (cc *CreditsController) Reconcile(c *gin.Context) {
	report, err := cc.reconciler.Reconcile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, cc.Logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

const (
	maxLimit = 100
	// maxPage keeps (page-1)*limit inside an int32 offset.
	maxPage = math.MaxInt32 / maxLimit
)

// parsePaginationParams extracts and validates page/limit query params.
func parsePaginationParams(c *gin.Context) (int, int) {
	page, limit := 1, 20
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && p > 0 {
		page = p
	}
	if page > maxPage {
		page = maxPage
	}
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
