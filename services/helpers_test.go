package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abdulllahhh/Comfy/database"
	"github.com/abdulllahhh/Comfy/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, credits int) *models.User {
	t.Helper()
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     "user_" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleUser,
		Credits:      credits,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func balanceOf(t *testing.T, db *gorm.DB, userID string) int {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", userID).Error)
	return u.Credits
}

func transactionsOf(t *testing.T, db *gorm.DB, userID string) []models.CreditTransaction {
	t.Helper()
	var txs []models.CreditTransaction
	require.NoError(t, db.Where("user_id = ?", userID).Order("timestamp ASC").Find(&txs).Error)
	return txs
}

// runnerFunc adapts a function to WorkflowRunner.
type runnerFunc func(ctx context.Context, req models.WorkflowRequest) (json.RawMessage, error)

func (f runnerFunc) RunWorkflow(ctx context.Context, req models.WorkflowRequest) (json.RawMessage, error) {
	return f(ctx, req)
}

func okRunner() WorkflowRunner {
	return runnerFunc(func(context.Context, models.WorkflowRequest) (json.RawMessage, error) {
		return json.RawMessage(`{"images":["out.png"]}`), nil
	})
}

func failingRunner() WorkflowRunner {
	return runnerFunc(func(context.Context, models.WorkflowRequest) (json.RawMessage, error) {
		return nil, fmt.Errorf("gpu worker crashed")
	})
}

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type MockMetricsRecorder struct{ mock.Mock }

func (m *MockMetricsRecorder) RecordValue(ctx context.Context, metricName string, value float64, dimensions map[string]string) error {
	args := m.Called(ctx, metricName, value, dimensions)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
