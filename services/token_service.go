package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess = "access"
	refreshTokenLen = 32
)

// TokenService signs access tokens and mints opaque refresh tokens.
type TokenService struct {
	secretKey []byte
	issuer    string
	audience  string
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenService(secret, issuer, audience string, accessTTL time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secret),
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL is how long a freshly issued access token is valid.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// GenerateAccessToken signs an HS256 access token for the user.
func (s *TokenService) GenerateAccessToken(userID, email, role string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"typ":   TokenTypeAccess,
		"jti":   uuid.NewString(),
		"iss":   s.issuer,
		"aud":   s.audience,
		"exp":   now.Add(s.accessTTL).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses a token and checks signature, expiry, issuer, audience and type.
func (s *TokenService) ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(s.issuer, true) || !claims.VerifyAudience(s.audience, true) {
		return nil, ErrInvalidToken
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, ErrInvalidToken
		}
	}
	if sub, ok := claims["sub"].(string); !ok || sub == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshToken returns a random 256-bit token and the hash to store for it.
func (s *TokenService) NewRefreshToken() (token, hash string, err error) {
	b := make([]byte, refreshTokenLen)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(b)
	return token, HashRefreshToken(token), nil
}

// HashRefreshToken is the at-rest form of a refresh token.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
