package postgres

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/matching"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type profileRepository struct {
	db     *DB
	secSvc ports.SecurityPort // encrypts contact details at rest
	log    zerolog.Logger
}

var _ ports.ProfileRepository = (*profileRepository)(nil)

// NewProfileRepository creates a new repository for profile operations.
func NewProfileRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.ProfileRepository {
	return &profileRepository{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "profile_repo").Logger(),
	}
}

const profileQueryCols = `
	id, display_name, description,
	hq_city, hq_country, hq_country_code, hq_address, hq_latitude, hq_longitude,
	service_locations, contact_email, contact_phone, contact_website, contact_person,
	claim_status, credit_balance, unlimited_plan, premium, active,
	rating, review_count, value_band_min, value_band_max,
	source_record_ids, merged_into, last_synced_at, created_at, updated_at, version
`

// Create encrypts contact fields and saves a new profile.
func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	encEmail, encPhone, err := r.encryptContact(profile)
	if err != nil {
		return err
	}

	locs, err := json.Marshal(profile.ServiceLocations)
	if err != nil {
		return fmt.Errorf("marshal service locations: %w", err)
	}

	query := `
		INSERT INTO profiles (
			id, display_name, description,
			hq_city, hq_country, hq_country_code, hq_address, hq_latitude, hq_longitude,
			service_locations, contact_email, contact_phone, contact_website, contact_person,
			claim_status, credit_balance, unlimited_plan, premium, active,
			rating, review_count, value_band_min, value_band_max,
			source_record_ids, merged_into, last_synced_at, created_at, updated_at, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, 1
		)
	`
	_, err = r.db.pool.Exec(ctx, query,
		profile.ID,
		profile.DisplayName,
		profile.Description,
		profile.Headquarters.City,
		profile.Headquarters.Country,
		profile.Headquarters.CountryCode,
		profile.Headquarters.Address,
		profile.Headquarters.Latitude,
		profile.Headquarters.Longitude,
		locs,
		encEmail,
		encPhone,
		profile.Contact.Website,
		profile.Contact.ContactPerson,
		profile.ClaimStatus,
		profile.CreditBalance,
		profile.UnlimitedPlan,
		profile.Premium,
		profile.Active,
		profile.Rating,
		profile.ReviewCount,
		profile.ValueBand.Min,
		profile.ValueBand.Max,
		profile.SourceRecordIDs,
		nullableUUID(profile.MergedInto),
		nullableTime(profile.LastSyncedAt),
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("profile_id", profile.ID.String()).Msg("Failed to insert profile")
		return err
	}
	profile.Version = 1
	return nil
}

// GetByID finds and decrypts a profile by id.
func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileQueryCols + ` FROM profiles WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)
	profile, err := r.scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil for "not found"
		}
		return nil, err
	}
	return profile, nil
}

// Update writes the profile back only if nobody else touched it since
// the caller's read. A lost race surfaces as domain.ErrConflict.
func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	encEmail, encPhone, err := r.encryptContact(profile)
	if err != nil {
		return err
	}

	locs, err := json.Marshal(profile.ServiceLocations)
	if err != nil {
		return fmt.Errorf("marshal service locations: %w", err)
	}

	query := `
		UPDATE profiles SET
			display_name = $3, description = $4,
			hq_city = $5, hq_country = $6, hq_country_code = $7, hq_address = $8,
			hq_latitude = $9, hq_longitude = $10,
			service_locations = $11, contact_email = $12, contact_phone = $13,
			contact_website = $14, contact_person = $15,
			claim_status = $16, credit_balance = $17, unlimited_plan = $18,
			premium = $19, active = $20, rating = $21, review_count = $22,
			value_band_min = $23, value_band_max = $24,
			source_record_ids = $25, merged_into = $26, last_synced_at = $27,
			updated_at = $28, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := r.db.pool.Exec(ctx, query,
		profile.ID,
		profile.Version,
		profile.DisplayName,
		profile.Description,
		profile.Headquarters.City,
		profile.Headquarters.Country,
		profile.Headquarters.CountryCode,
		profile.Headquarters.Address,
		profile.Headquarters.Latitude,
		profile.Headquarters.Longitude,
		locs,
		encEmail,
		encPhone,
		profile.Contact.Website,
		profile.Contact.ContactPerson,
		profile.ClaimStatus,
		profile.CreditBalance,
		profile.UnlimitedPlan,
		profile.Premium,
		profile.Active,
		profile.Rating,
		profile.ReviewCount,
		profile.ValueBand.Min,
		profile.ValueBand.Max,
		profile.SourceRecordIDs,
		nullableUUID(profile.MergedInto),
		nullableTime(profile.LastSyncedAt),
		profile.UpdatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("profile_id", profile.ID.String()).Msg("Failed to update profile")
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, profile.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: profile %s", domain.ErrNotFound, profile.ID)
		}
		return fmt.Errorf("%w: profile %s stale version %d", domain.ErrConflict, profile.ID, profile.Version)
	}
	profile.Version++
	return nil
}

// List returns all profiles ordered by id.
func (r *profileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileQueryCols + ` FROM profiles ORDER BY id`
	return r.queryProfiles(ctx, query)
}

// ScanByLocation returns active profiles with any presence in the given
// city or country. Location folding (diacritics, casing) lives in Go, so
// the SQL side only narrows to active rows and the fold-aware filter
// runs in process.
func (r *profileRepository) ScanByLocation(ctx context.Context, city, country string) ([]*domain.Profile, error) {
	query := `SELECT ` + profileQueryCols + ` FROM profiles WHERE active ORDER BY id`
	profiles, err := r.queryProfiles(ctx, query)
	if err != nil {
		return nil, err
	}

	cityKey := matching.FoldLocation(city)
	countryKey := matching.FoldLocation(country)
	var out []*domain.Profile
	for _, p := range profiles {
		if profileMatchesLocation(p, cityKey, countryKey) {
			out = append(out, p)
		}
	}
	return out, nil
}

func profileMatchesLocation(p *domain.Profile, cityKey, countryKey string) bool {
	locs := append([]domain.Location{p.Headquarters}, p.ServiceLocations...)
	for _, loc := range locs {
		if cityKey != "" && matching.FoldLocation(loc.City) == cityKey {
			return true
		}
		if countryKey != "" && matching.FoldLocation(loc.Country) == countryKey {
			return true
		}
	}
	return false
}

func (r *profileRepository) queryProfiles(ctx context.Context, query string, args ...any) ([]*domain.Profile, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to query profiles")
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// scanProfile is a helper to scan a row into a Profile struct.
// It handles decryption internally.
func (r *profileRepository) scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	var locs []byte
	var encEmail, encPhone *string
	var mergedInto *uuid.UUID
	var lastSynced *time.Time

	err := row.Scan(
		&p.ID,
		&p.DisplayName,
		&p.Description,
		&p.Headquarters.City,
		&p.Headquarters.Country,
		&p.Headquarters.CountryCode,
		&p.Headquarters.Address,
		&p.Headquarters.Latitude,
		&p.Headquarters.Longitude,
		&locs,
		&encEmail,
		&encPhone,
		&p.Contact.Website,
		&p.Contact.ContactPerson,
		&p.ClaimStatus,
		&p.CreditBalance,
		&p.UnlimitedPlan,
		&p.Premium,
		&p.Active,
		&p.Rating,
		&p.ReviewCount,
		&p.ValueBand.Min,
		&p.ValueBand.Max,
		&p.SourceRecordIDs,
		&mergedInto,
		&lastSynced,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.log.Error().Err(err).Msg("Failed to scan profile row")
		return nil, err
	}

	if err := json.Unmarshal(locs, &p.ServiceLocations); err != nil {
		r.log.Error().Err(err).Str("profile_id", p.ID.String()).Msg("Failed to unmarshal service locations")
		return nil, err
	}
	if mergedInto != nil {
		p.MergedInto = *mergedInto
	}
	if lastSynced != nil {
		p.LastSyncedAt = *lastSynced
	}

	if p.Contact.Email, err = r.decryptField(encEmail, p.ID, "email"); err != nil {
		return nil, err
	}
	if p.Contact.Phone, err = r.decryptField(encPhone, p.ID, "phone"); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *profileRepository) encryptContact(profile *domain.Profile) (encEmail, encPhone *string, err error) {
	if encEmail, err = r.encryptField(profile.Contact.Email); err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt contact email")
		return nil, nil, err
	}
	if encPhone, err = r.encryptField(profile.Contact.Phone); err != nil {
		r.log.Error().Err(err).Msg("Failed to encrypt contact phone")
		return nil, nil, err
	}
	return encEmail, encPhone, nil
}

func (r *profileRepository) encryptField(plain string) (*string, error) {
	if plain == "" {
		return nil, nil
	}
	encBytes, err := r.secSvc.Encrypt([]byte(plain))
	if err != nil {
		return nil, err
	}
	encStr := base64.StdEncoding.EncodeToString(encBytes)
	return &encStr, nil
}

func (r *profileRepository) decryptField(enc *string, id uuid.UUID, name string) (string, error) {
	if enc == nil {
		return "", nil
	}
	decBytes, err := base64.StdEncoding.DecodeString(*enc)
	if err != nil {
		r.log.Error().Err(err).Str("profile_id", id.String()).Str("field", name).Msg("Failed to base64-decode contact field")
		return "", err
	}
	dec, err := r.secSvc.Decrypt(decBytes)
	if err != nil {
		r.log.Error().Err(err).Str("profile_id", id.String()).Str("field", name).Msg("Failed to decrypt contact field (tampered?)")
		return "", err
	}
	return string(dec), nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
