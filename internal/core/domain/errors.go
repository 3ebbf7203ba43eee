package domain

import "errors"

// Error taxonomy. Services return these sentinels (usually wrapped with
// %w and context) so callers can branch with errors.Is.
var (
	// ErrValidation marks malformed input, rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown profile or lead id.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost compare-and-swap race or an otherwise
	// concurrent mutation (e.g. credit exhaustion mid-routing).
	ErrConflict = errors.New("conflict")

	// ErrClaimChannelMismatch marks a claim destination that does not
	// correspond to the profile being claimed.
	ErrClaimChannelMismatch = errors.New("claim channel mismatch")

	// ErrChallengeNotFound marks an unknown challenge id.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired marks a verify attempt past the expiry window.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrChallengeCodeMismatch marks a wrong one-time code.
	ErrChallengeCodeMismatch = errors.New("challenge code mismatch")
)
