package bingo

import (
	"context"
	"errors"
)

var (
	ErrConfiguration = errors.New("configuration-error")
	ErrExhausted     = errors.New("draw-pool-exhausted")
)

var (
	ErrRoomNotFound = errors.New("room-not-found")
	ErrUserNotFound = errors.New("user-not-found")
	ErrNoCard       = errors.New("no-card-in-room")
)

var (
	ErrRoomClosed      = errors.New("room-closed")
	ErrAlreadyFinished = errors.New("room-already-finished")
	ErrDuplicateCode   = errors.New("duplicate-room-code")
)

// ErrInvalidClaim is the normal negative outcome of win validation.
var ErrInvalidClaim = errors.New("invalid-claim")

var (
	ErrValidation      = errors.New("validation-error")
	ErrInvalidPosition = errors.New("invalid-position")
)

// ErrStoreFailure wraps any record store error that is not a domain outcome.
var ErrStoreFailure = errors.New("store-failure")

type ErrorCategory string

const (
	CategoryNotFound     ErrorCategory = "not_found"
	CategoryConflict     ErrorCategory = "conflict"
	CategoryInvalidClaim ErrorCategory = "invalid_claim"
	CategoryExhausted    ErrorCategory = "exhausted"
	CategoryValidation   ErrorCategory = "validation"
	CategoryStoreFailure ErrorCategory = "store_failure"
	CategoryInternal     ErrorCategory = "internal"
)

// Category classifies err so callers can react per kind of rejection.
func Category(err error) ErrorCategory {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNoCard):
		return CategoryNotFound
	case errors.Is(err, ErrRoomClosed), errors.Is(err, ErrAlreadyFinished), errors.Is(err, ErrDuplicateCode):
		return CategoryConflict
	case errors.Is(err, ErrInvalidClaim):
		return CategoryInvalidClaim
	case errors.Is(err, ErrExhausted):
		return CategoryExhausted
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidPosition):
		return CategoryValidation
	case errors.Is(err, ErrStoreFailure), errors.Is(err, context.DeadlineExceeded):
		return CategoryStoreFailure
	default:
		return CategoryInternal
	}
}

// Retryable reports whether err may succeed on a bounded retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreFailure) && !errors.Is(err, context.Canceled)
}
