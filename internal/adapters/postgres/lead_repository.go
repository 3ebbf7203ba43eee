package postgres

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type leadRepository struct {
	db     *DB
	secSvc ports.SecurityPort
	log    zerolog.Logger
}

var _ ports.LeadRepository = (*leadRepository)(nil)

// NewLeadRepository creates a new repository for lead operations.
func NewLeadRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.LeadRepository {
	return &leadRepository{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "lead_repo").Logger(),
	}
}

const leadQueryCols = `
	id, company_name, contact_email, city, country, stand_size, budget,
	status, matched_profile_ids, unlocked_by, created_at, routed_at,
	updated_at, version
`

// Create encrypts the requester's email and saves a new lead.
func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	encEmail, err := r.encryptEmail(lead.ContactEmail)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (
			id, company_name, contact_email, city, country, stand_size, budget,
			status, matched_profile_ids, unlocked_by, created_at, routed_at,
			updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
	`
	_, err = r.db.pool.Exec(ctx, query,
		lead.ID,
		lead.CompanyName,
		encEmail,
		lead.City,
		lead.Country,
		lead.StandSize,
		lead.Budget,
		lead.Status,
		lead.MatchedProfileIDs,
		lead.UnlockedBy,
		lead.CreatedAt,
		nullableTime(lead.RoutedAt),
		lead.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("lead_id", lead.ID).Msg("Failed to insert lead")
		return err
	}
	lead.Version = 1
	return nil
}

// GetByID finds and decrypts a lead by id.
func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	query := `SELECT ` + leadQueryCols + ` FROM leads WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)
	lead, err := r.scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return lead, nil
}

// Update is the compare-and-swap write, same contract as profiles.
func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	encEmail, err := r.encryptEmail(lead.ContactEmail)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads SET
			company_name = $3, contact_email = $4, city = $5, country = $6,
			stand_size = $7, budget = $8, status = $9,
			matched_profile_ids = $10, unlocked_by = $11,
			routed_at = $12, updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := r.db.pool.Exec(ctx, query,
		lead.ID,
		lead.Version,
		lead.CompanyName,
		encEmail,
		lead.City,
		lead.Country,
		lead.StandSize,
		lead.Budget,
		lead.Status,
		lead.MatchedProfileIDs,
		lead.UnlockedBy,
		nullableTime(lead.RoutedAt),
		lead.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("lead_id", lead.ID).Msg("Failed to update lead")
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, lead.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: lead %s", domain.ErrNotFound, lead.ID)
		}
		return fmt.Errorf("%w: lead %s stale version %d", domain.ErrConflict, lead.ID, lead.Version)
	}
	lead.Version++
	return nil
}

// List returns all leads ordered by id (ULIDs sort by creation time).
func (r *leadRepository) List(ctx context.Context) ([]*domain.Lead, error) {
	query := `SELECT ` + leadQueryCols + ` FROM leads ORDER BY id`

	rows, err := r.db.pool.Query(ctx, query)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to query leads")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Lead
	for rows.Next() {
		l, err := r.scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *leadRepository) scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	var encEmail *string
	var routedAt *time.Time

	err := row.Scan(
		&l.ID,
		&l.CompanyName,
		&encEmail,
		&l.City,
		&l.Country,
		&l.StandSize,
		&l.Budget,
		&l.Status,
		&l.MatchedProfileIDs,
		&l.UnlockedBy,
		&l.CreatedAt,
		&routedAt,
		&l.UpdatedAt,
		&l.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.log.Error().Err(err).Msg("Failed to scan lead row")
		return nil, err
	}

	if routedAt != nil {
		l.RoutedAt = *routedAt
	}
	if encEmail != nil {
		decBytes, err := base64.StdEncoding.DecodeString(*encEmail)
		if err != nil {
			r.log.Error().Err(err).Str("lead_id", l.ID).Msg("Failed to base64-decode contact email")
			return nil, err
		}
		dec, err := r.secSvc.Decrypt(decBytes)
		if err != nil {
			r.log.Error().Err(err).Str("lead_id", l.ID).Msg("Failed to decrypt contact email (tampered?)")
			return nil, err
		}
		l.ContactEmail = string(dec)
	}

	return &l, nil
}

func (r *leadRepository) encryptEmail(email string) (*string, error) {
	if email == "" {
		return nil, nil
	}
	encBytes, err := r.secSvc.Encrypt([]byte(email))
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt contact email")
		return nil, err
	}
	encStr := base64.StdEncoding.EncodeToString(encBytes)
	return &encStr, nil
}
