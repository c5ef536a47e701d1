package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidMethod       = errors.New("invalid check-in method")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrConflict            = errors.New("booking changed concurrently")
)
