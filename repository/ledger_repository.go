package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdulllahhh/Comfy/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrDuplicate    = errors.New("duplicate record")
)

// LedgerTx is the set of writes allowed inside one ledger transaction.
type LedgerTx interface {
	// LockUser loads the user row and holds a write lock on it until the
	// transaction ends.
	LockUser(userID string) (*models.User, error)
	AdjustCredits(userID string, delta int) error
	InsertTransaction(t *models.CreditTransaction) error
	InsertPayment(p *models.Payment) error
	InsertProcessedEvent(e *models.ProcessedEvent) error
}

type LedgerRepository interface {
	// WithTx runs fn in a transaction. It commits only when fn returns nil and
	// rolls back on error or panic.
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error
	ProcessedEventExists(ctx context.Context, eventID string) (bool, error)
	GetBalance(ctx context.Context, userID string) (int, error)
	SumTransactions(ctx context.Context, userID string) (int, error)
	// BalanceSnapshot reads the stored balance and the transaction sum in one
	// statement so both values come from the same snapshot.
	BalanceSnapshot(ctx context.Context, userID string) (balance, sum int, err error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, int64, error)
	ListTransactionsByReference(ctx context.Context, referenceID string) ([]models.CreditTransaction, error)
	ListPayments(ctx context.Context, userID string) ([]models.Payment, error)
}

type gormLedgerRepo struct {
	db *gorm.DB
}

func NewGormLedgerRepo(db *gorm.DB) LedgerRepository {
	return &gormLedgerRepo{db: db}
}

func (r *gormLedgerRepo) WithTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLedgerTx{tx: tx})
	})
}

func (r *gormLedgerRepo) ProcessedEventExists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Where("stripe_event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormLedgerRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	var user models.User
	err := r.db.WithContext(ctx).Select("id", "credits").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

func (r *gormLedgerRepo) SumTransactions(ctx context.Context, userID string) (int, error) {
	var sum int
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, err
}

func (r *gormLedgerRepo) BalanceSnapshot(ctx context.Context, userID string) (int, int, error) {
	var row struct {
		Credits        int
		TransactionSum int
	}
	res := r.db.WithContext(ctx).Raw(
		`SELECT credits, (SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = users.id) AS transaction_sum FROM users WHERE id = ?`,
		userID,
	).Scan(&row)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, 0, ErrUserNotFound
	}
	return row.Credits, row.TransactionSum, nil
}

func (r *gormLedgerRepo) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.CreditTransaction, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *gormLedgerRepo) ListTransactionsByReference(ctx context.Context, referenceID string) ([]models.CreditTransaction, error) {
	var txs []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("timestamp ASC").
		Find(&txs).Error
	return txs, err
}

func (r *gormLedgerRepo) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

type gormLedgerTx struct {
	tx *gorm.DB
}

func (t *gormLedgerTx) LockUser(userID string) (*models.User, error) {
	var user models.User
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *gormLedgerTx) AdjustCredits(userID string, delta int) error {
	res := t.tx.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (t *gormLedgerTx) InsertTransaction(ct *models.CreditTransaction) error {
	if ct.ID == "" {
		ct.ID = uuid.NewString()
	}
	if ct.Timestamp.IsZero() {
		ct.Timestamp = time.Now().UTC()
	}
	return translate(t.tx.Create(ct).Error, "credit transaction")
}

func (t *gormLedgerTx) InsertPayment(p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return translate(t.tx.Create(p).Error, "payment")
}

func (t *gormLedgerTx) InsertProcessedEvent(e *models.ProcessedEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	return translate(t.tx.Create(e).Error, "processed event")
}

func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return err
}
