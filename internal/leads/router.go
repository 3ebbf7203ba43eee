package leads

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/ids"
	"StandMatch/internal/matching"
	"StandMatch/internal/notify"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// maxNotify caps how many builders one lead is pushed to.
	maxNotify = 8

	// casRetries bounds the optimistic-update loops.
	casRetries = 5
)

// Scoring weights. Ranking only; eligibility is decided by credits.
const (
	scoreBase      = 60
	scoreCityMatch = 30
	scoreCountry   = 20
	scoreBudgetFit = 10
	scorePremium   = 5
)

// RouteResult reports which profiles a lead reached.
type RouteResult struct {
	LeadID   string
	Matched  []uuid.UUID
	Notified []uuid.UUID
}

// Router finds the qualified profiles for a lead, ranks them, deducts
// credits and dispatches notifications.
type Router struct {
	profiles ports.ProfileRepository
	leads    ports.LeadRepository
	ledger   ports.CreditLedger
	bus      ports.EventBus
	notifier ports.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewRouter creates the lead router.
func NewRouter(
	profiles ports.ProfileRepository,
	leads ports.LeadRepository,
	ledger ports.CreditLedger,
	bus ports.EventBus,
	notifier ports.Notifier,
	baseLogger *zerolog.Logger,
) *Router {
	return &Router{
		profiles: profiles,
		leads:    leads,
		ledger:   ledger,
		bus:      bus,
		notifier: notifier,
		log:      baseLogger.With().Str("component", "lead_router").Logger(),
		now:      time.Now,
	}
}

// SubmitLead validates, persists and routes a new lead. Routing
// shortfalls (few or zero notified profiles) are logged but never fail
// the submission.
func (r *Router) SubmitLead(ctx context.Context, lead *domain.Lead) (*RouteResult, error) {
	if lead.CompanyName == "" || lead.ContactEmail == "" {
		return nil, fmt.Errorf("%w: companyName and contactEmail are required", domain.ErrValidation)
	}
	now := r.now()
	lead.ID = ids.New()
	lead.Status = domain.LeadNew
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if err := r.leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	r.publish(ctx, domain.EventLeadSubmitted, lead.ID, uuid.Nil, nil)

	return r.route(ctx, lead)
}

// Route re-runs routing for an existing lead. Profiles already in the
// matched set are never re-notified.
func (r *Router) Route(ctx context.Context, leadID string) (*RouteResult, error) {
	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	if lead == nil {
		return nil, fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID)
	}
	if lead.ExpiredAt(r.now()) {
		r.expire(ctx, lead)
		return nil, fmt.Errorf("%w: lead expired", domain.ErrConflict)
	}
	return r.route(ctx, lead)
}

func (r *Router) route(ctx context.Context, lead *domain.Lead) (*RouteResult, error) {
	candidates, err := r.profiles.ScanByLocation(ctx, lead.City, lead.Country)
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}

	// 1. Qualification: location served, active, not already matched.
	var qualified []*domain.Profile
	for _, p := range candidates {
		if !p.Active || lead.Matched(p.ID) {
			continue
		}
		if !servesLead(p, lead) {
			continue
		}
		qualified = append(qualified, p)
	}

	// 2. Eligibility: only funded (or unlimited) profiles get notified.
	var eligible []*domain.Profile
	for _, p := range qualified {
		if p.UnlimitedPlan || p.CreditBalance > 0 {
			eligible = append(eligible, p)
		}
	}

	// 3. Ranking. Ties broken by id for determinism.
	sort.Slice(eligible, func(i, j int) bool {
		si, sj := Score(eligible[i], lead), Score(eligible[j], lead)
		if si != sj {
			return si > sj
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})
	if len(eligible) > maxNotify {
		eligible = eligible[:maxNotify]
	}

	// 4. Credit deduction, committed together with the notification.
	var notified []uuid.UUID
	for _, p := range eligible {
		if ok := r.deductAndNotify(ctx, p.ID, lead); ok {
			notified = append(notified, p.ID)
		}
	}

	// 5. The full qualified set is recorded so a later routing pass
	// cannot re-notify anyone.
	matched := make([]uuid.UUID, 0, len(qualified))
	for _, p := range qualified {
		matched = append(matched, p.ID)
	}
	if err := r.markRouted(ctx, lead.ID, matched); err != nil {
		return nil, err
	}

	r.publish(ctx, domain.EventLeadRouted, lead.ID, uuid.Nil, map[string]any{
		"matched":  len(matched),
		"notified": len(notified),
	})
	if len(notified) == 0 {
		// Operational visibility only; never a failure for the submitter.
		r.log.Warn().Str("lead_id", lead.ID).Str("city", lead.City).Str("country", lead.Country).Msg("Lead routed with zero notified profiles")
	} else {
		r.log.Info().Str("lead_id", lead.ID).Int("matched", len(matched)).Int("notified", len(notified)).Msg("Lead routed")
	}

	return &RouteResult{LeadID: lead.ID, Matched: matched, Notified: notified}, nil
}

// deductAndNotify atomically takes one credit from the profile and
// requests the notification. The balance is re-checked after every lost
// race; a concurrently exhausted profile is dropped from the notified
// set rather than pushed negative.
func (r *Router) deductAndNotify(ctx context.Context, profileID uuid.UUID, lead *domain.Lead) bool {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := r.profiles.GetByID(ctx, profileID)
		if err != nil || p == nil || !p.Active {
			return false
		}
		if !p.UnlimitedPlan {
			if p.CreditBalance <= 0 {
				return false // exhausted since qualification
			}
			updated := p.Clone()
			updated.CreditBalance--
			updated.UpdatedAt = r.now()
			err = r.profiles.Update(ctx, updated)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			if err != nil {
				r.log.Error().Err(err).Str("profile_id", profileID.String()).Msg("Credit deduction failed")
				return false
			}
			r.appendLedger(ctx, profileID, lead.ID, -1, "lead_notification")
		}
		r.dispatch(ctx, p, lead)
		return true
	}
	r.log.Warn().Str("profile_id", profileID.String()).Str("lead_id", lead.ID).Msg("Credit deduction kept losing races, dropping from notified set")
	return false
}

// dispatch requests out-of-band delivery, fire-and-forget.
func (r *Router) dispatch(ctx context.Context, p *domain.Profile, lead *domain.Lead) {
	destination := p.Contact.Email
	channel := domain.ChannelEmail
	if destination == "" {
		destination = p.Contact.Phone
		channel = domain.ChannelPhone
	}
	if destination == "" {
		r.log.Warn().Str("profile_id", p.ID.String()).Msg("Matched profile has no reachable contact")
		return
	}
	message := notify.LeadMessage(lead)
	go func() {
		if err := r.notifier.Send(context.Background(), channel, destination, message); err != nil {
			r.log.Error().Err(err).Str("profile_id", p.ID.String()).Str("lead_id", lead.ID).Msg("Lead notification dispatch failed")
		}
	}()
}

func (r *Router) markRouted(ctx context.Context, leadID string, matched []uuid.UUID) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		lead, err := r.leads.GetByID(ctx, leadID)
		if err != nil {
			return fmt.Errorf("get lead: %w", err)
		}
		if lead == nil {
			return fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID)
		}
		updated := lead.Clone()
		for _, id := range matched {
			if !updated.Matched(id) {
				updated.MatchedProfileIDs = append(updated.MatchedProfileIDs, id)
			}
		}
		if updated.Status == domain.LeadNew {
			updated.Status = domain.LeadRouted
		}
		updated.RoutedAt = r.now()
		updated.UpdatedAt = r.now()
		err = r.leads.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update lead: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: routing update on %s kept losing races", domain.ErrConflict, leadID)
}

// servesLead implements the qualification rule: with a requested city,
// the profile must serve that city (case/diacritic-insensitive); a
// country-only request falls back to country presence. Country presence
// alone never qualifies for a city-specific request.
func servesLead(p *domain.Profile, lead *domain.Lead) bool {
	if lead.City != "" {
		return servesCity(p, lead.City)
	}
	if lead.Country != "" {
		return servesCountry(p, lead.Country)
	}
	return false
}

func servesCity(p *domain.Profile, city string) bool {
	key := matching.FoldLocation(city)
	if matching.FoldLocation(p.Headquarters.City) == key {
		return true
	}
	for _, loc := range p.ServiceLocations {
		if matching.FoldLocation(loc.City) == key {
			return true
		}
	}
	return false
}

func servesCountry(p *domain.Profile, country string) bool {
	key := matching.FoldLocation(country)
	if matching.FoldLocation(p.Headquarters.Country) == key {
		return true
	}
	for _, loc := range p.ServiceLocations {
		if matching.FoldLocation(loc.Country) == key {
			return true
		}
	}
	return false
}

// Score ranks a qualified profile for a lead. Display ordering only.
func Score(p *domain.Profile, lead *domain.Lead) int {
	score := scoreBase
	if lead.City != "" && servesCity(p, lead.City) {
		score += scoreCityMatch
	} else if lead.Country != "" && servesCountry(p, lead.Country) {
		score += scoreCountry
	}
	if lead.Budget > 0 && p.ValueBand.Max > 0 &&
		lead.Budget >= p.ValueBand.Min && lead.Budget <= p.ValueBand.Max {
		score += scoreBudgetFit
	}
	if p.Premium {
		score += scorePremium
	}
	return score
}

func (r *Router) expire(ctx context.Context, lead *domain.Lead) {
	for attempt := 0; attempt < casRetries; attempt++ {
		fresh, err := r.leads.GetByID(ctx, lead.ID)
		if err != nil || fresh == nil {
			return
		}
		if fresh.Status == domain.LeadExpired {
			return
		}
		updated := fresh.Clone()
		updated.Status = domain.LeadExpired
		updated.UpdatedAt = r.now()
		err = r.leads.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			r.log.Error().Err(err).Str("lead_id", lead.ID).Msg("Failed to expire lead")
		}
		return
	}
}

func (r *Router) appendLedger(ctx context.Context, profileID uuid.UUID, leadID string, delta int, reason string) {
	entry := ports.CreditEntry{
		ID:        ids.New(),
		ProfileID: profileID.String(),
		LeadID:    leadID,
		Delta:     delta,
		Reason:    reason,
		At:        r.now().Format(time.RFC3339Nano),
	}
	if err := r.ledger.Append(ctx, entry); err != nil {
		r.log.Error().Err(err).Str("profile_id", profileID.String()).Msg("Credit ledger append failed")
	}
}

func (r *Router) publish(ctx context.Context, typ domain.EventType, leadID string, profileID uuid.UUID, payload map[string]any) {
	r.bus.Publish(ctx, domain.Event{
		ID:        ids.New(),
		Type:      typ,
		ProfileID: profileID,
		LeadID:    leadID,
		Payload:   payload,
		Timestamp: r.now(),
		Source:    "lead_router",
	})
}
