package ports

import (
	"StandMatch/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// ChallengeRepository defines the persistence operations for claim
// challenges.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *domain.ClaimChallenge) error

	// GetByID finds a challenge by id. Returns nil, nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ClaimChallenge, error)

	// GetPendingByProfile returns the profile's Pending challenge, if
	// any. There is at most one by invariant.
	GetPendingByProfile(ctx context.Context, profileID uuid.UUID) (*domain.ClaimChallenge, error)

	Update(ctx context.Context, challenge *domain.ClaimChallenge) error
}

// ClaimAuditLog is the append-only trail of claim-status changes,
// kept for dispute resolution. Entries are never mutated after write.
type ClaimAuditLog interface {
	Append(ctx context.Context, entry domain.ClaimAuditEntry) error
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.ClaimAuditEntry, error)
}
