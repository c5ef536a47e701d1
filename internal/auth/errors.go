package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("auth: unauthorized")

	errMissingSecret = errors.New("auth secret is not configured")
)
