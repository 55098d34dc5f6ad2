package service

import "errors"

// Validation errors
var (
	ErrMissingUserID    = errors.New("user id is required")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidQuestion  = errors.New("question is required")
	ErrInvalidChoices   = errors.New("an event needs 2 or 3 non-empty choices")
	ErrInvalidDeadline  = errors.New("deadline must be in the future")
	ErrInvalidUsername  = errors.New("username is required")
	ErrInvalidClassName = errors.New("class name is required")
	ErrInvalidReward    = errors.New("reward needs a name and a non-negative cost")
	ErrInvalidExpiry    = errors.New("token expiry must be in the future")
)

// Not found errors
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrRewardNotFound = errors.New("reward not found")
	ErrInvalidToken   = errors.New("invalid attendance token")
)

// State errors
var (
	ErrUserExists          = errors.New("user already registered")
	ErrEventClosed         = errors.New("event is closed for betting")
	ErrAlreadyResolved     = errors.New("event already resolved")
	ErrDuplicateBet        = errors.New("user already placed a bet on this event")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTokenExpired        = errors.New("attendance token expired")
)

// ErrConflict is returned by storage when a concurrent transaction committed
// first. The ledger retries it; callers only see it once retries are exhausted.
var ErrConflict = errors.New("transaction conflict")
