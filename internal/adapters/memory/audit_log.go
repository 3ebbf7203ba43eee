package memory

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// claimAuditLog is the in-memory append-only claim trail.
type claimAuditLog struct {
	mu      sync.RWMutex
	entries []domain.ClaimAuditEntry
	log     zerolog.Logger
}

var _ ports.ClaimAuditLog = (*claimAuditLog)(nil)

// NewClaimAuditLog creates an empty in-memory claim audit trail.
func NewClaimAuditLog(baseLogger *zerolog.Logger) ports.ClaimAuditLog {
	return &claimAuditLog{
		log: baseLogger.With().Str("component", "memory_claim_audit").Logger(),
	}
}

func (l *claimAuditLog) Append(ctx context.Context, entry domain.ClaimAuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *claimAuditLog) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.ClaimAuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.ClaimAuditEntry
	for _, e := range l.entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}

// creditLedger is the in-memory append-only credit trail.
type creditLedger struct {
	mu      sync.RWMutex
	entries []ports.CreditEntry
	log     zerolog.Logger
}

var _ ports.CreditLedger = (*creditLedger)(nil)

// NewCreditLedger creates an empty in-memory credit ledger.
func NewCreditLedger(baseLogger *zerolog.Logger) ports.CreditLedger {
	return &creditLedger{
		log: baseLogger.With().Str("component", "memory_credit_ledger").Logger(),
	}
}

func (l *creditLedger) Append(ctx context.Context, entry ports.CreditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *creditLedger) ListByProfile(ctx context.Context, profileID string) ([]ports.CreditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ports.CreditEntry
	for _, e := range l.entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}
