package domain

import "errors"

var (
	ErrAlreadyCompleted = errors.New("ticket already completed")
	ErrInvalidPhone     = errors.New("phone must have 10 digits")
)
