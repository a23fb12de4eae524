package game

import "errors"

// Error taxonomy. Every failure rolls back its owning transaction, so callers
// never observe partial state alongside one of these.
var (
	// ErrValidation covers malformed or out-of-range input, rejected before
	// any mutation.
	ErrValidation = errors.New("invalid request")

	// ErrInsufficientBalance means the balance check failed before any debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStateConflict means the action is not legal for the current state,
	// including a sequence mismatch: a replay, stale client, or lost race.
	ErrStateConflict = errors.New("state conflict")

	// ErrNotFound means the session or room is missing or expired.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited means the minimum inter-action interval was violated.
	ErrRateLimited = errors.New("too many actions")
)
