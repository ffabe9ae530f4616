package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAccessTokenTTL = 15 * time.Minute

// Claims is the access token payload: {sub, exp}. Purpose is only ever set
// on confirmation tokens and makes them unusable as bearer credentials.
type Claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	Secret []byte
	Method jwt.SigningMethod
	TTL    time.Duration
	Clock  func() time.Time
}

// NewJWTTokenGenerator accepts the HMAC algorithms HS256, HS384 and HS512.
func NewJWTTokenGenerator(secret, algorithm string, ttl time.Duration) (*JWTTokenGenerator, error) {
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &JWTTokenGenerator{
		Secret: []byte(secret),
		Method: method,
		TTL:    ttl,
		Clock:  time.Now,
	}, nil
}

func (j *JWTTokenGenerator) now() time.Time {
	if j.Clock == nil {
		return time.Now()
	}
	return j.Clock()
}

// GenerateAccessToken signs {sub: subject, exp: now+ttl}. A non positive ttl
// uses the generator default.
func (j *JWTTokenGenerator) GenerateAccessToken(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = j.TTL
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(j.now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(j.Method, claims)
	return token.SignedString(j.Secret)
}

// ValidateToken returns the subject of a valid access token.
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	},
		jwt.WithValidMethods([]string{j.Method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != "" || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
