package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdulllahhh/Comfy/common/logger"
	"github.com/abdulllahhh/Comfy/models"
	"github.com/abdulllahhh/Comfy/repository"

	"go.uber.org/zap"
)

const (
	MaxFailedAccessAttempts = 5
	DefaultLockoutDuration  = 15 * time.Minute
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
)

type ITokenService interface {
	GenerateAccessToken(userID, email, role string) (string, error)
	NewRefreshToken() (token, hash string, err error)
	AccessTTL() time.Duration
}

type AuthService struct {
	identities    repository.IdentityStore
	tokens        ITokenService
	passwords     *PasswordValidator
	publisher     LedgerEventPublisher
	logger        *zap.Logger
	refreshTTL    time.Duration
	signupCredits int
	now           func() time.Time
}

func NewAuthService(identities repository.IdentityStore, tokens ITokenService, publisher LedgerEventPublisher, refreshTTL time.Duration, signupCredits int, log *zap.Logger) *AuthService {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if publisher == nil {
		publisher = NoopLedgerPublisher{}
	}
	return &AuthService{
		identities:    identities,
		tokens:        tokens,
		passwords:     NewPasswordValidator(),
		publisher:     publisher,
		logger:        log,
		refreshTTL:    refreshTTL,
		signupCredits: signupCredits,
		now:           time.Now,
	}
}

// Register creates the account with its signup bonus and signs the user in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.passwords.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleUser,
	}
	if err := s.identities.CreateUser(ctx, user, req.Password, s.signupCredits); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost a race with a concurrent signup
			if err := s.ensureAvailable(ctx, req.Email, req.Username); err != nil {
				return nil, err
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	log := logger.FromContext(ctx, s.logger)
	log.Info("User registered", zap.String("user_id", user.ID))
	if s.signupCredits > 0 {
		publishAfterCommit(ctx, s.publisher, log, models.LedgerEvent{
			Type:        models.LedgerEventBonus,
			UserID:      user.ID,
			Amount:      s.signupCredits,
			ReferenceID: user.ID,
			Timestamp:   s.now().UTC(),
		})
	}

	return s.issue(ctx, user)
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	if _, err := s.identities.FindByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	return nil
}

// Login checks credentials and lockout state. Wrong passwords count towards
// the lockout; a successful login clears the count.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	user, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if locked, until := s.identities.LockoutState(user, now); locked {
		return nil, &LockedError{Until: until}
	}

	if !s.identities.VerifyPassword(user, password) {
		count, until, err := s.identities.IncrementFailureCount(ctx, user.ID, MaxFailedAccessAttempts, DefaultLockoutDuration, now)
		if err != nil {
			return nil, err
		}
		log := logger.FromContext(ctx, s.logger)
		if until != nil {
			log.Warn("Account locked after repeated login failures", zap.String("user_id", user.ID))
			return nil, &LockedError{Until: *until, JustLocked: true}
		}
		log.Info("Failed login attempt", zap.String("user_id", user.ID), zap.Int("failures", count))
		return nil, &FailedLoginError{AttemptsRemaining: MaxFailedAccessAttempts - count}
	}

	if err := s.identities.ResetFailureCount(ctx, user.ID, now.UTC()); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// RefreshTokens exchanges a live refresh token for a new pair. The old token
// stops working as soon as the swap commits.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	now := s.now()
	oldHash := HashRefreshToken(refreshToken)

	user, err := s.identities.FindByRefreshToken(ctx, oldHash, now)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	newToken, newHash, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.identities.RotateRefreshToken(ctx, oldHash, newHash, now.Add(s.refreshTTL), now); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return s.response(user, access, newToken), nil
}

// AssignRole changes the role of userID.
func (s *AuthService) AssignRole(ctx context.Context, userID, role string) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return ErrInvalidRole
	}
	user, err := s.identities.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == role {
		return ErrRoleAlreadyAssigned
	}
	if err := s.identities.SetRole(ctx, userID, role); err != nil {
		return err
	}
	logger.FromContext(ctx, s.logger).Info("Role assigned",
		zap.String("user_id", userID),
		zap.String("role", role),
	)
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, hash, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.identities.SetRefreshToken(ctx, user.ID, hash, s.now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return s.response(user, access, refresh), nil
}

func (s *AuthService) response(user *models.User, access, refresh string) *models.AuthResponse {
	return &models.AuthResponse{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		Credits:      user.Credits,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}
}
