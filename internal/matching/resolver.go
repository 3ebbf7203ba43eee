package matching

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/ids"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RawRecord is one entry of the external business-data feed.
type RawRecord struct {
	ExternalID   string
	BusinessName string
	Address      string
	Phone        string
	Website      string
	City         string
	Country      string
	CountryCode  string
	Rating       float64
	ReviewCount  int
}

// DecisionAction says what the resolver did with a candidate.
type DecisionAction string

const (
	DecisionCreate DecisionAction = "create"
	DecisionMerge  DecisionAction = "merge"
)

// Decision is the outcome of resolving one candidate.
type Decision struct {
	Action    DecisionAction
	ProfileID uuid.UUID
}

// BatchError records a single failed candidate without failing siblings.
type BatchError struct {
	ExternalID string
	Err        error
}

// BatchReport summarizes a resolved import batch.
type BatchReport struct {
	Created int
	Merged  int
	Errors  []BatchError
}

// casRetries bounds the optimistic-update loop when two imports race on
// the same target profile.
const casRetries = 5

// Resolver decides whether a candidate record is a new canonical
// business or a duplicate of an existing profile.
type Resolver struct {
	profiles ports.ProfileRepository
	bus      ports.EventBus
	log      zerolog.Logger
	now      func() time.Time
}

// NewResolver creates the identity resolver.
func NewResolver(profiles ports.ProfileRepository, bus ports.EventBus, baseLogger *zerolog.Logger) *Resolver {
	return &Resolver{
		profiles: profiles,
		bus:      bus,
		log:      baseLogger.With().Str("component", "identity_resolver").Logger(),
		now:      time.Now,
	}
}

// Resolve runs the import-dedup rule list against every existing profile
// and either merges the candidate into the first match or creates a new
// canonical profile. Resolving the same record twice is a no-op after
// the first merge.
func (r *Resolver) Resolve(ctx context.Context, rec RawRecord) (Decision, error) {
	if rec.ExternalID == "" || rec.BusinessName == "" {
		return Decision{}, fmt.Errorf("%w: externalId and businessName are required", domain.ErrValidation)
	}

	all, err := r.profiles.List(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("list profiles: %w", err)
	}

	// 1. Re-merge detection: a record already merged somewhere stays there.
	for _, p := range all {
		if p.HasSourceRecord(rec.ExternalID) {
			r.log.Debug().Str("external_id", rec.ExternalID).Str("profile_id", p.ID.String()).Msg("Record already merged, skipping")
			return Decision{Action: DecisionMerge, ProfileID: p.ID}, nil
		}
	}

	// 2. Rule list against every active profile; first match wins.
	cand := Signals{Name: rec.BusinessName, Phone: rec.Phone, Website: rec.Website}
	for _, p := range all {
		if !p.Active {
			continue
		}
		if SameBusiness(ProfileSignals(p), cand, false) {
			if err := r.mergeInto(ctx, p.ID, rec); err != nil {
				return Decision{}, err
			}
			return Decision{Action: DecisionMerge, ProfileID: p.ID}, nil
		}
	}

	// 3. No rule fired: new canonical profile.
	p, err := r.createFrom(ctx, rec)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Action: DecisionCreate, ProfileID: p.ID}, nil
}

// ResolveBatch resolves each record independently. One bad candidate
// never aborts the batch; its error is captured in the report.
func (r *Resolver) ResolveBatch(ctx context.Context, recs []RawRecord) BatchReport {
	var report BatchReport
	for _, rec := range recs {
		decision, err := r.Resolve(ctx, rec)
		if err != nil {
			r.log.Warn().Err(err).Str("external_id", rec.ExternalID).Msg("Candidate resolution failed")
			report.Errors = append(report.Errors, BatchError{ExternalID: rec.ExternalID, Err: err})
			continue
		}
		switch decision.Action {
		case DecisionCreate:
			report.Created++
		case DecisionMerge:
			report.Merged++
		}
	}
	r.log.Info().Int("created", report.Created).Int("merged", report.Merged).Int("errors", len(report.Errors)).Msg("Import batch resolved")
	return report
}

// Register creates a canonical profile for a self-registered operator.
// Its single source record id is the profile itself.
func (r *Resolver) Register(ctx context.Context, p *domain.Profile) error {
	if p.DisplayName == "" {
		return fmt.Errorf("%w: displayName is required", domain.ErrValidation)
	}
	now := r.now()
	p.ID = uuid.New()
	p.Active = true
	if p.ClaimStatus == "" {
		// Self-registration proves an operator identity but not yet the
		// organization; verification still goes through the claim flow.
		p.ClaimStatus = domain.ClaimClaimed
	}
	p.SourceRecordIDs = []string{"self:" + p.ID.String()}
	if len(p.ServiceLocations) == 0 {
		p.ServiceLocations = []domain.Location{p.Headquarters}
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := r.profiles.Create(ctx, p); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	r.publish(ctx, domain.EventProfileCreated, p.ID, map[string]any{"self_registered": true})
	return nil
}

func (r *Resolver) createFrom(ctx context.Context, rec RawRecord) (*domain.Profile, error) {
	now := r.now()
	hq := domain.Location{
		City:        rec.City,
		Country:     rec.Country,
		CountryCode: rec.CountryCode,
		Address:     rec.Address,
	}
	p := &domain.Profile{
		ID:           uuid.New(),
		DisplayName:  rec.BusinessName,
		Headquarters: hq,
		// Headquarters is always a member of the service locations.
		ServiceLocations: []domain.Location{hq},
		Contact: domain.Contact{
			Phone:   rec.Phone,
			Website: rec.Website,
		},
		ClaimStatus:     domain.ClaimUnclaimed,
		Active:          true,
		Rating:          rec.Rating,
		ReviewCount:     rec.ReviewCount,
		SourceRecordIDs: []string{rec.ExternalID},
		LastSyncedAt:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.profiles.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	r.publish(ctx, domain.EventProfileCreated, p.ID, map[string]any{"external_id": rec.ExternalID})
	return p, nil
}

// mergeInto applies the candidate to the target under a CAS retry loop,
// re-reading the profile after every lost race.
func (r *Resolver) mergeInto(ctx context.Context, targetID uuid.UUID, rec RawRecord) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		target, err := r.profiles.GetByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("get merge target: %w", err)
		}
		if target == nil {
			return fmt.Errorf("%w: merge target %s", domain.ErrNotFound, targetID)
		}
		if target.HasSourceRecord(rec.ExternalID) {
			return nil // lost a race to an identical merge; already done
		}
		merged := target.Clone()
		ApplyRecord(merged, rec, r.now())
		err = r.profiles.Update(ctx, merged)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update merge target: %w", err)
		}
		r.publish(ctx, domain.EventProfileMerged, targetID, map[string]any{"external_id": rec.ExternalID})
		return nil
	}
	return fmt.Errorf("%w: merge into %s kept losing races", domain.ErrConflict, targetID)
}

// ApplyRecord folds a raw record into a profile: source ids union,
// service-location dedup by normalized city+country, and gap-filling of
// contact fields. Non-empty target fields are never overwritten, which
// makes the merge idempotent.
func ApplyRecord(p *domain.Profile, rec RawRecord, now time.Time) {
	if !p.HasSourceRecord(rec.ExternalID) {
		p.SourceRecordIDs = append(p.SourceRecordIDs, rec.ExternalID)
	}

	loc := domain.Location{
		City:        rec.City,
		Country:     rec.Country,
		CountryCode: rec.CountryCode,
		Address:     rec.Address,
	}
	AddServiceLocation(p, loc)

	if p.Contact.Phone == "" {
		p.Contact.Phone = rec.Phone
	}
	if p.Contact.Website == "" {
		p.Contact.Website = rec.Website
	}
	if p.Headquarters.Address == "" {
		p.Headquarters.Address = rec.Address
	}
	// Best-value wins for feed quality metrics.
	if rec.Rating > p.Rating {
		p.Rating = rec.Rating
	}
	if rec.ReviewCount > p.ReviewCount {
		p.ReviewCount = rec.ReviewCount
	}

	p.LastSyncedAt = now
	p.UpdatedAt = now
}

// AddServiceLocation appends the location unless an entry with the same
// normalized city+country already exists. Returns true when added.
func AddServiceLocation(p *domain.Profile, loc domain.Location) bool {
	if loc.City == "" && loc.Country == "" {
		return false
	}
	key := LocationKey(loc.City, loc.Country)
	for _, existing := range p.ServiceLocations {
		if LocationKey(existing.City, existing.Country) == key {
			return false
		}
	}
	p.ServiceLocations = append(p.ServiceLocations, loc)
	return true
}

func (r *Resolver) publish(ctx context.Context, typ domain.EventType, profileID uuid.UUID, payload map[string]any) {
	r.bus.Publish(ctx, domain.Event{
		ID:        ids.New(),
		Type:      typ,
		ProfileID: profileID,
		Payload:   payload,
		Timestamp: r.now(),
		Source:    "identity_resolver",
	})
}
