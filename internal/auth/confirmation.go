package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	DefaultConfirmationMaxAge = time.Hour
	confirmationPurpose       = "confirmation"
)

type confirmationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// ConfirmationSigner issues the time-limited tokens mailed for email
// confirmation and password reset. They are signed with a key derived from
// the secret and the salt, never with the access token key.
type ConfirmationSigner struct {
	key    []byte
	MaxAge time.Duration
	Clock  func() time.Time
}

func NewConfirmationSigner(secret, salt string, maxAge time.Duration) (*ConfirmationSigner, error) {
	if salt == "" {
		return nil, errors.New("confirmation salt is required")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte("leaf confirmation token")), key); err != nil {
		return nil, fmt.Errorf("derive confirmation key: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultConfirmationMaxAge
	}
	return &ConfirmationSigner{key: key, MaxAge: maxAge, Clock: time.Now}, nil
}

func (s *ConfirmationSigner) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *ConfirmationSigner) Sign(email string) (string, error) {
	claims := &confirmationClaims{
		Email:   email,
		Purpose: confirmationPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify returns the email carried by token. Age is measured from the
// issue time against maxAge, or the signer default when maxAge <= 0.
func (s *ConfirmationSigner) Verify(tokenString string, maxAge time.Duration) (string, error) {
	if maxAge <= 0 {
		maxAge = s.MaxAge
	}

	claims := &confirmationClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", ErrBadSignature
	}
	if claims.Purpose != confirmationPurpose || claims.Email == "" || claims.IssuedAt == nil {
		return "", ErrBadSignature
	}
	if s.now().Sub(claims.IssuedAt.Time) > maxAge {
		return "", ErrTokenExpired
	}
	return claims.Email, nil
}
