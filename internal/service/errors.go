package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Every error returned by the services wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUpstream     = errors.New("upstream error")
)

// ErrInvalidSignature is returned for gateway notifications whose signature does not match.
var ErrInvalidSignature = fmt.Errorf("%w: invalid notification signature", ErrValidation)

// ErrUntrackedStatus marks gateway statuses that are real but never move a
// payment, such as refunds and chargebacks.
var ErrUntrackedStatus = fmt.Errorf("%w: untracked transaction status", ErrValidation)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func invalidStateError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, msg)
}

func upstreamError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, msg, err)
}

// storeError classifies a repository error for entity what.
func storeError(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return upstreamError("failed to load "+what, err)
}
