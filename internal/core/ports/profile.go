package ports

import (
	"StandMatch/internal/core/domain"
	"context"

	"github.com/google/uuid"
)

// ProfileRepository defines the persistence operations for Profiles.
//
// Update is optimistic: the store compares the record's Version against
// the stored one and returns domain.ErrConflict on mismatch, bumping the
// version on success. All invariant-affecting mutations (credit
// deduction, claim transitions, merges) go through this CAS path.
type ProfileRepository interface {
	// Create saves a new profile.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByID finds a profile by id. Returns nil, nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)

	// Update applies a compare-and-swap write.
	Update(ctx context.Context, profile *domain.Profile) error

	// List returns every profile. The dataset is assumed to fit in a
	// single process's working set; the resolver scans it linearly.
	List(ctx context.Context) ([]*domain.Profile, error)

	// ScanByLocation returns active profiles whose headquarters or
	// service locations match the given city or country.
	ScanByLocation(ctx context.Context, city, country string) ([]*domain.Profile, error)
}
