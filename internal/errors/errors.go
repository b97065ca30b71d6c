package errors

import (
	"errors"
)

// Common error types shared across the moderation components.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNotPending         = errors.New("not pending")
	ErrPendingExists      = errors.New("pending entry already exists")
	ErrCooldownActive     = errors.New("cooldown active")
	ErrNoActivePunishment = errors.New("no active punishment")
	ErrDisabled           = errors.New("feature disabled")
)
