package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdulllahhh/Comfy/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityStore owns credentials, lockout state and refresh tokens.
type IdentityStore interface {
	// CreateUser hashes password and persists user together with a bonus
	// ledger entry for its starting balance.
	CreateUser(ctx context.Context, user *models.User, password string, signupCredits int) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	LockoutState(user *models.User, now time.Time) (locked bool, until time.Time)
	// IncrementFailureCount records a failed login and locks the account for
	// lockout once maxAttempts is reached. It returns the failures counted
	// so far (0 after a lock) and the lock end, if any.
	IncrementFailureCount(ctx context.Context, userID string, maxAttempts int, lockout time.Duration, now time.Time) (int, *time.Time, error)
	ResetFailureCount(ctx context.Context, userID string, loginAt time.Time) error
	SetRefreshToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error
	FindByRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	// RotateRefreshToken swaps oldHash for newHash only while oldHash is
	// still current and unexpired.
	RotateRefreshToken(ctx context.Context, oldHash, newHash string, expiry, now time.Time) error
	SetRole(ctx context.Context, userID, role string) error
}

type gormIdentityStore struct {
	db         *gorm.DB
	bcryptCost int
}

func NewGormIdentityStore(db *gorm.DB) IdentityStore {
	return &gormIdentityStore{db: db, bcryptCost: bcrypt.DefaultCost}
}

// NewGormIdentityStoreWithCost is used by tests to keep hashing fast.
func NewGormIdentityStoreWithCost(db *gorm.DB, cost int) IdentityStore {
	return &gormIdentityStore{db: db, bcryptCost: cost}
}

func (s *gormIdentityStore) CreateUser(ctx context.Context, user *models.User, password string, signupCredits int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.PasswordHash = string(hash)
	user.Credits = signupCredits

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return translate(err, "user")
		}
		if signupCredits <= 0 {
			return nil
		}
		bonus := &models.CreditTransaction{
			ID:              uuid.NewString(),
			UserID:          user.ID,
			Amount:          signupCredits,
			TransactionType: models.TransactionBonus,
			Description:     fmt.Sprintf("Signup bonus of %d credits", signupCredits),
			ReferenceID:     user.ID,
			Timestamp:       time.Now().UTC(),
		}
		return tx.Create(bonus).Error
	})
}

func (s *gormIdentityStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *gormIdentityStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, "username = ?", username)
}

func (s *gormIdentityStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *gormIdentityStore) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormIdentityStore) VerifyPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (s *gormIdentityStore) LockoutState(user *models.User, now time.Time) (bool, time.Time) {
	if user.IsLocked(now) {
		return true, *user.LockoutEnd
	}
	return false, time.Time{}
}

func (s *gormIdentityStore) IncrementFailureCount(ctx context.Context, userID string, maxAttempts int, lockout time.Duration, now time.Time) (int, *time.Time, error) {
	var (
		count int
		until *time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		count = user.AccessFailedCount + 1
		updates := map[string]interface{}{"access_failed_count": count}
		if count >= maxAttempts {
			end := now.Add(lockout)
			until = &end
			count = 0
			updates["access_failed_count"] = 0
			updates["lockout_end"] = end
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
	})
	if err != nil {
		return 0, nil, err
	}
	return count, until, nil
}

func (s *gormIdentityStore) ResetFailureCount(ctx context.Context, userID string, loginAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"access_failed_count": 0,
			"lockout_end":         nil,
			"last_login_at":       loginAt,
		}).Error
}

func (s *gormIdentityStore) SetRefreshToken(ctx context.Context, userID, tokenHash string, expiry time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"refresh_token_hash":   tokenHash,
			"refresh_token_expiry": expiry,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *gormIdentityStore) FindByRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("refresh_token_hash = ? AND refresh_token_expiry > ?", tokenHash, now).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormIdentityStore) RotateRefreshToken(ctx context.Context, oldHash, newHash string, expiry, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("refresh_token_hash = ? AND refresh_token_expiry > ?", oldHash, now).
		Updates(map[string]interface{}{
			"refresh_token_hash":   newHash,
			"refresh_token_expiry": expiry,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *gormIdentityStore) SetRole(ctx context.Context, userID, role string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
