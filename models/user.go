package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User holds identity, credential and balance state. Credits is only ever
// changed inside a ledger transaction alongside a CreditTransaction row.
type User struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username           string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email              string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	FirstName          string     `gorm:"type:varchar(100)" json:"firstName"`
	LastName           string     `gorm:"type:varchar(100)" json:"lastName"`
	PasswordHash       string     `gorm:"type:varchar(255);not null" json:"-"`
	Role               string     `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Credits            int        `gorm:"not null;default:0;check:chk_users_credits_non_negative,credits >= 0" json:"credits"`
	RefreshTokenHash   *string    `gorm:"type:varchar(64);index" json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
	AccessFailedCount  int        `gorm:"not null;default:0" json:"-"`
	LockoutEnd         *time.Time `json:"-"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &CreditTransaction{}, &Payment{}, &ProcessedEvent{})
}
