package postgres

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// claimAuditLog persists the append-only claim trail. Destinations
// arrive already redacted, so nothing here needs encryption.
type claimAuditLog struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.ClaimAuditLog = (*claimAuditLog)(nil)

// NewClaimAuditLog creates the postgres-backed claim audit trail.
func NewClaimAuditLog(db *DB, baseLogger *zerolog.Logger) ports.ClaimAuditLog {
	return &claimAuditLog{
		db:  db,
		log: baseLogger.With().Str("component", "claim_audit").Logger(),
	}
}

func (l *claimAuditLog) Append(ctx context.Context, entry domain.ClaimAuditEntry) error {
	query := `
		INSERT INTO claim_audit (id, profile_id, event, channel, destination, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.db.pool.Exec(ctx, query,
		entry.ID, entry.ProfileID, entry.Event, entry.Channel, entry.Destination, entry.At)
	if err != nil {
		l.log.Error().Err(err).Str("profile_id", entry.ProfileID.String()).Msg("Failed to append claim audit entry")
	}
	return err
}

func (l *claimAuditLog) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]domain.ClaimAuditEntry, error) {
	query := `
		SELECT id, profile_id, event, channel, destination, at
		FROM claim_audit WHERE profile_id = $1 ORDER BY at
	`
	rows, err := l.db.pool.Query(ctx, query, profileID)
	if err != nil {
		l.log.Error().Err(err).Msg("Failed to query claim audit entries")
		return nil, err
	}
	defer rows.Close()

	var out []domain.ClaimAuditEntry
	for rows.Next() {
		var e domain.ClaimAuditEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Event, &e.Channel, &e.Destination, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// creditLedger persists the append-only credit trail.
type creditLedger struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.CreditLedger = (*creditLedger)(nil)

// NewCreditLedger creates the postgres-backed credit ledger.
func NewCreditLedger(db *DB, baseLogger *zerolog.Logger) ports.CreditLedger {
	return &creditLedger{
		db:  db,
		log: baseLogger.With().Str("component", "credit_ledger").Logger(),
	}
}

func (l *creditLedger) Append(ctx context.Context, entry ports.CreditEntry) error {
	query := `
		INSERT INTO credit_ledger (id, profile_id, lead_id, delta, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.db.pool.Exec(ctx, query,
		entry.ID, entry.ProfileID, entry.LeadID, entry.Delta, entry.Reason, entry.At)
	if err != nil {
		l.log.Error().Err(err).Str("profile_id", entry.ProfileID).Msg("Failed to append ledger entry")
	}
	return err
}

func (l *creditLedger) ListByProfile(ctx context.Context, profileID string) ([]ports.CreditEntry, error) {
	query := `
		SELECT id, profile_id, lead_id, delta, reason, at
		FROM credit_ledger WHERE profile_id = $1 ORDER BY id
	`
	rows, err := l.db.pool.Query(ctx, query, profileID)
	if err != nil {
		l.log.Error().Err(err).Msg("Failed to query ledger entries")
		return nil, err
	}
	defer rows.Close()

	var out []ports.CreditEntry
	for rows.Next() {
		var e ports.CreditEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.LeadID, &e.Delta, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
