package postgres

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type challengeRepository struct {
	db     *DB
	secSvc ports.SecurityPort // destination and code never hit disk in the clear
	log    zerolog.Logger
}

var _ ports.ChallengeRepository = (*challengeRepository)(nil)

// NewChallengeRepository creates a new repository for claim challenges.
func NewChallengeRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.ChallengeRepository {
	return &challengeRepository{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "challenge_repo").Logger(),
	}
}

const challengeQueryCols = `
	id, profile_id, channel, destination, code, created_at, expires_at, status
`

// Create encrypts the destination and code and saves a new challenge.
func (r *challengeRepository) Create(ctx context.Context, challenge *domain.ClaimChallenge) error {
	encDest, err := r.encrypt(challenge.Destination)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt challenge destination")
		return err
	}
	encCode, err := r.encrypt(challenge.Code)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt challenge code")
		return err
	}

	query := `
		INSERT INTO claim_challenges (
			id, profile_id, channel, destination, code, created_at, expires_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.pool.Exec(ctx, query,
		challenge.ID,
		challenge.ProfileID,
		challenge.Channel,
		encDest,
		encCode,
		challenge.CreatedAt,
		challenge.ExpiresAt,
		challenge.Status,
	)
	if err != nil {
		r.log.Error().Err(err).Str("challenge_id", challenge.ID.String()).Msg("Failed to insert challenge")
	}
	return err
}

// GetByID finds and decrypts a challenge by id.
func (r *challengeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClaimChallenge, error) {
	query := `SELECT ` + challengeQueryCols + ` FROM claim_challenges WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)
	c, err := r.scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return c, nil
}

// GetPendingByProfile returns the profile's Pending challenge, if any.
func (r *challengeRepository) GetPendingByProfile(ctx context.Context, profileID uuid.UUID) (*domain.ClaimChallenge, error) {
	query := `SELECT ` + challengeQueryCols + `
		FROM claim_challenges WHERE profile_id = $1 AND status = 'pending' LIMIT 1`

	row := r.db.pool.QueryRow(ctx, query, profileID)
	c, err := r.scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Update rewrites the challenge row. Challenges only ever move forward
// (pending to verified, expired or failed), so no version column here.
func (r *challengeRepository) Update(ctx context.Context, challenge *domain.ClaimChallenge) error {
	encDest, err := r.encrypt(challenge.Destination)
	if err != nil {
		return err
	}
	encCode, err := r.encrypt(challenge.Code)
	if err != nil {
		return err
	}

	query := `
		UPDATE claim_challenges SET
			channel = $2, destination = $3, code = $4, expires_at = $5, status = $6
		WHERE id = $1
	`
	tag, err := r.db.pool.Exec(ctx, query,
		challenge.ID,
		challenge.Channel,
		encDest,
		encCode,
		challenge.ExpiresAt,
		challenge.Status,
	)
	if err != nil {
		r.log.Error().Err(err).Str("challenge_id", challenge.ID.String()).Msg("Failed to update challenge")
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: challenge %s", domain.ErrNotFound, challenge.ID)
	}
	return nil
}

func (r *challengeRepository) scanChallenge(row pgx.Row) (*domain.ClaimChallenge, error) {
	var c domain.ClaimChallenge
	var encDest, encCode string

	err := row.Scan(
		&c.ID,
		&c.ProfileID,
		&c.Channel,
		&encDest,
		&encCode,
		&c.CreatedAt,
		&c.ExpiresAt,
		&c.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.log.Error().Err(err).Msg("Failed to scan challenge row")
		return nil, err
	}

	if c.Destination, err = r.decrypt(encDest); err != nil {
		r.log.Error().Err(err).Str("challenge_id", c.ID.String()).Msg("Failed to decrypt destination")
		return nil, err
	}
	if c.Code, err = r.decrypt(encCode); err != nil {
		r.log.Error().Err(err).Str("challenge_id", c.ID.String()).Msg("Failed to decrypt code")
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepository) encrypt(plain string) (string, error) {
	encBytes, err := r.secSvc.Encrypt([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encBytes), nil
}

func (r *challengeRepository) decrypt(enc string) (string, error) {
	decBytes, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	dec, err := r.secSvc.Decrypt(decBytes)
	if err != nil {
		return "", err
	}
	return string(dec), nil
}
