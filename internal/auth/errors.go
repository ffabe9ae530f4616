package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrBadSignature       = errors.New("bad signature")
	ErrUserInactive       = errors.New("user is inactive")
)
