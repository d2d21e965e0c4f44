package services

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPasswordTooShort      = errors.New("password must be at least 12 characters long")
	ErrPasswordTooLong       = errors.New("password must be at most 128 characters long")
	ErrPasswordNoUpper       = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower       = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber      = errors.New("password must contain at least one number")
	ErrPasswordNoSpecial     = errors.New("password must contain at least one special character")
	ErrPasswordFewUniqueChar = errors.New("password must contain at least 6 unique characters")
	ErrPasswordCommon        = errors.New("password is too common")
)

// PasswordValidator validates passwords against security requirements
type PasswordValidator struct {
	minLength       int
	maxLength       int
	minUniqueChars  int
	commonPasswords map[string]bool
}

// NewPasswordValidator creates a new password validator with default settings
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		minLength:      12,
		maxLength:      128,
		minUniqueChars: 6,
		commonPasswords: map[string]bool{
			"password1234!":   true,
			"Password1234!":   true,
			"Qwerty123456!":   true,
			"Welcome12345!":   true,
			"Administrator1!": true,
		},
	}
}

// ValidatePassword checks if a password meets all security requirements
func (pv *PasswordValidator) ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < pv.minLength {
		return ErrPasswordTooShort
	}
	if n > pv.maxLength {
		return ErrPasswordTooLong
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	unique := make(map[rune]struct{})
	for _, char := range password {
		unique[char] = struct{}{}
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case !unicode.IsLetter(char) && !unicode.IsNumber(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasLower {
		return ErrPasswordNoLower
	}
	if !hasNumber {
		return ErrPasswordNoNumber
	}
	if !hasSpecial {
		return ErrPasswordNoSpecial
	}
	if len(unique) < pv.minUniqueChars {
		return ErrPasswordFewUniqueChar
	}

	if pv.commonPasswords[password] || pv.commonPasswords[strings.ToLower(password)] {
		return ErrPasswordCommon
	}
	return nil
}
