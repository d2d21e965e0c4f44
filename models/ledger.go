package models

import "time"

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionUsage    TransactionType = "usage"
	TransactionRefund   TransactionType = "refund"
	TransactionBonus    TransactionType = "bonus"
)

// CreditTransaction is an append-only audit row; one per balance mutation.
type CreditTransaction struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string          `gorm:"type:varchar(36);index;not null" json:"userId"`
	Amount          int             `gorm:"not null" json:"amount"`
	TransactionType TransactionType `gorm:"type:varchar(20);not null" json:"transactionType"`
	Description     string          `gorm:"type:varchar(255)" json:"description"`
	ReferenceID     string          `gorm:"type:varchar(255);index" json:"referenceId"`
	Timestamp       time.Time       `gorm:"not null" json:"timestamp"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records one completed checkout. StripeSessionID is unique so a
// session can produce at most one row. AmountMinor is the provider's total in
// the currency's minor unit; Amount is the same value in major units.
type Payment struct {
	ID                    string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID                string        `gorm:"type:varchar(36);index;not null" json:"userId"`
	Amount                float64       `gorm:"type:decimal(10,2);not null" json:"amount"`
	AmountMinor           int64         `gorm:"not null;default:0" json:"amountMinor"`
	Currency              string        `gorm:"type:varchar(3);not null" json:"currency"`
	CreditsAdded          int           `gorm:"not null" json:"creditsAdded"`
	Status                PaymentStatus `gorm:"type:varchar(20);not null" json:"status"`
	StripeSessionID       string        `gorm:"type:varchar(255);uniqueIndex;not null" json:"stripeSessionId"`
	StripePaymentIntentID string        `gorm:"type:varchar(255)" json:"stripePaymentIntentId,omitempty"`
	CreatedAt             time.Time     `gorm:"not null" json:"createdAt"`
	CompletedAt           *time.Time    `json:"completedAt,omitempty"`
}

// ProcessedEvent marks a provider event as consumed. A row exists for an
// event id if and only if that event has been applied.
type ProcessedEvent struct {
	ID            string    `gorm:"type:varchar(36);primaryKey"`
	StripeEventID string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	EventType     string    `gorm:"type:varchar(100);not null"`
	UserID        string    `gorm:"type:varchar(36);index"`
	ProcessedAt   time.Time `gorm:"not null"`
	EventData     string    `gorm:"type:text"`
}

// LedgerEvent is published after a ledger mutation commits.
type LedgerEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	LedgerEventPurchased = "credits.purchased"
	LedgerEventUsed      = "credits.used"
	LedgerEventRefunded  = "credits.refunded"
	LedgerEventBonus     = "credits.bonus"
)

// ReconciliationReport compares a stored balance to its transaction history.
type ReconciliationReport struct {
	UserID         string `json:"userId"`
	Balance        int    `json:"balance"`
	TransactionSum int    `json:"transactionSum"`
	Consistent     bool   `json:"consistent"`
}
