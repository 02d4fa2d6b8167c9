package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Use errors.Is to classify.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	ErrInvalidDate   = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrEmptyTitle    = fmt.Errorf("%w: empty title", ErrInvalidInput)
	ErrEmptyCategory = fmt.Errorf("%w: empty category", ErrInvalidInput)
)
