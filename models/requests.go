package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate        = newValidator()
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50,username"`
	Email     string `json:"email" validate:"required,email,max=128"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *RegisterRequest) Validate() error {
	return validate.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	return validate.Struct(r)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (r *RefreshTokenRequest) Validate() error {
	return validate.Struct(r)
}

type AddRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=user admin"`
}

func (r *AddRoleRequest) Validate() error {
	return validate.Struct(r)
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Credits      int    `json:"credits"`
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type CheckoutRequest struct {
	Credits int `json:"credits" validate:"required"`
}

func (r *CheckoutRequest) Validate() error {
	return validate.Struct(r)
}

const (
	DefaultSeed  = 1234
	DefaultSteps = 20
	DefaultCfg   = 8.0
)

// WorkflowRequest carries the prompt and generation parameters for one gated run.
type WorkflowRequest struct {
	Prompt string  `json:"prompt" validate:"required,max=1000"`
	Seed   int64   `json:"seed"`
	Steps  int     `json:"steps" validate:"gte=0,lte=150"`
	Cfg    float64 `json:"cfg" validate:"gte=0,lte=30"`
}

// ApplyDefaults fills zero-valued generation parameters.
func (r *WorkflowRequest) ApplyDefaults() {
	if r.Seed == 0 {
		r.Seed = DefaultSeed
	}
	if r.Steps == 0 {
		r.Steps = DefaultSteps
	}
	if r.Cfg == 0 {
		r.Cfg = DefaultCfg
	}
}

func (r *WorkflowRequest) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	return validate.Struct(r)
}
