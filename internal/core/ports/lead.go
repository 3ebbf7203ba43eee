package ports

import (
	"StandMatch/internal/core/domain"
	"context"
)

// LeadRepository defines the persistence operations for Leads.
// Update follows the same compare-and-swap contract as ProfileRepository.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error

	// GetByID finds a lead by id. Returns nil, nil when not found.
	GetByID(ctx context.Context, id string) (*domain.Lead, error)

	Update(ctx context.Context, lead *domain.Lead) error

	List(ctx context.Context) ([]*domain.Lead, error)
}

// CreditEntry is one line of the per-profile credit audit trail.
type CreditEntry struct {
	ID        string
	ProfileID string
	LeadID    string
	Delta     int
	Reason    string
	At        string
}

// CreditLedger records every credit deduction alongside the lead that
// consumed it. Append-only.
type CreditLedger interface {
	Append(ctx context.Context, entry CreditEntry) error
	ListByProfile(ctx context.Context, profileID string) ([]CreditEntry, error)
}
