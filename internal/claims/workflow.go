package claims

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/ids"
	"StandMatch/internal/matching"
	"StandMatch/internal/notify"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// casRetries bounds the optimistic-update loops during verification.
const casRetries = 5

// VerifyResult is what a successful VerifyClaim returns to the caller.
type VerifyResult struct {
	ProfileID       uuid.UUID
	ClaimStatus     domain.ClaimStatus
	LocationsLinked int
}

// Workflow drives a profile from Unclaimed through PendingVerification
// to Verified via a one-time-code challenge over a channel the resolver
// already bound to the business.
type Workflow struct {
	profiles   ports.ProfileRepository
	challenges ports.ChallengeRepository
	audit      ports.ClaimAuditLog
	bus        ports.EventBus
	notifier   ports.Notifier
	log        zerolog.Logger
	now        func() time.Time
	ttl        time.Duration
	newCode    func() string
}

// NewWorkflow creates the claim workflow.
func NewWorkflow(
	profiles ports.ProfileRepository,
	challenges ports.ChallengeRepository,
	audit ports.ClaimAuditLog,
	bus ports.EventBus,
	notifier ports.Notifier,
	baseLogger *zerolog.Logger,
) *Workflow {
	return &Workflow{
		profiles:   profiles,
		challenges: challenges,
		audit:      audit,
		bus:        bus,
		notifier:   notifier,
		log:        baseLogger.With().Str("component", "claim_workflow").Logger(),
		now:        time.Now,
		ttl:        domain.ChallengeTTL,
		newCode:    randomCode,
	}
}

// StartClaim validates that the destination corresponds to the profile,
// supersedes any prior Pending challenge, creates a fresh one and
// dispatches the code out-of-band. Dispatch is fire-and-forget; its
// latency or failure never blocks the state transition.
func (w *Workflow) StartClaim(ctx context.Context, profileID uuid.UUID, channel domain.ClaimChannel, destination string) (*domain.ClaimChallenge, error) {
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", domain.ErrValidation)
	}
	if channel != domain.ChannelEmail && channel != domain.ChannelPhone {
		return nil, fmt.Errorf("%w: unknown channel %q", domain.ErrValidation, channel)
	}

	profile, err := w.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, profileID)
	}
	if profile.ClaimStatus == domain.ClaimVerified {
		return nil, fmt.Errorf("%w: profile already verified", domain.ErrConflict)
	}

	if !destinationMatchesProfile(profile, channel, destination) {
		return nil, fmt.Errorf("%w: %s destination does not correspond to this profile", domain.ErrClaimChannelMismatch, channel)
	}

	// Supersede: at most one Pending challenge per profile.
	if prev, err := w.challenges.GetPendingByProfile(ctx, profileID); err != nil {
		return nil, fmt.Errorf("get pending challenge: %w", err)
	} else if prev != nil {
		prev.Status = domain.ChallengeExpired
		if err := w.challenges.Update(ctx, prev); err != nil {
			return nil, fmt.Errorf("supersede pending challenge: %w", err)
		}
		w.log.Info().Str("profile_id", profileID.String()).Str("superseded", prev.ID.String()).Msg("Superseded pending challenge")
	}

	now := w.now()
	challenge := &domain.ClaimChallenge{
		ID:          uuid.New(),
		ProfileID:   profileID,
		Channel:     channel,
		Destination: destination,
		Code:        w.newCode(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(w.ttl),
		Status:      domain.ChallengePending,
	}
	if err := w.challenges.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	if err := w.setClaimStatus(ctx, profileID, domain.ClaimPendingVerification); err != nil {
		return nil, err
	}
	w.appendAudit(ctx, profileID, "claim.started", channel, destination)

	// Out-of-band dispatch. Detached context: the notifier must not be
	// cancelled with the request, and must not block it either.
	message := notify.ClaimCodeMessage(profile.DisplayName, challenge.Code, w.ttl)
	go func() {
		if err := w.notifier.Send(context.Background(), channel, destination, message); err != nil {
			w.log.Error().Err(err).Str("profile_id", profileID.String()).Msg("Claim code dispatch failed")
		}
	}()

	w.log.Info().Str("profile_id", profileID.String()).Str("challenge_id", challenge.ID.String()).Str("channel", string(channel)).Msg("Claim started")
	return challenge, nil
}

// VerifyClaim checks the supplied code against the challenge, and on
// success verifies the profile and absorbs any remaining duplicates of
// the same business (permissive rule set), unioning their service
// locations. Expiry is evaluated here, lazily; expired challenges are
// never resurrected.
func (w *Workflow) VerifyClaim(ctx context.Context, challengeID uuid.UUID, code string) (*VerifyResult, error) {
	challenge, err := w.challenges.GetByID(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if challenge == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, challengeID)
	}
	if challenge.Status != domain.ChallengePending {
		return nil, fmt.Errorf("%w: challenge is %s", domain.ErrChallengeExpired, challenge.Status)
	}

	if challenge.ExpiredAt(w.now()) {
		w.failChallenge(ctx, challenge, domain.ChallengeExpired)
		return nil, fmt.Errorf("%w: expired at %s", domain.ErrChallengeExpired, challenge.ExpiresAt.Format(time.RFC3339))
	}
	if code != challenge.Code {
		w.failChallenge(ctx, challenge, domain.ChallengeFailed)
		return nil, domain.ErrChallengeCodeMismatch
	}

	challenge.Status = domain.ChallengeVerified
	if err := w.challenges.Update(ctx, challenge); err != nil {
		return nil, fmt.Errorf("mark challenge verified: %w", err)
	}

	linked, err := w.verifyProfile(ctx, challenge)
	if err != nil {
		return nil, err
	}

	w.appendAudit(ctx, challenge.ProfileID, "claim.verified", challenge.Channel, challenge.Destination)
	w.bus.Publish(ctx, domain.Event{
		ID:        ids.New(),
		Type:      domain.EventProfileClaimed,
		ProfileID: challenge.ProfileID,
		Payload:   map[string]any{"locations_linked": linked},
		Timestamp: w.now(),
		Source:    "claim_workflow",
	})
	w.log.Info().Str("profile_id", challenge.ProfileID.String()).Int("locations_linked", linked).Msg("Claim verified")

	return &VerifyResult{
		ProfileID:       challenge.ProfileID,
		ClaimStatus:     domain.ClaimVerified,
		LocationsLinked: linked,
	}, nil
}

// verifyProfile marks the profile Verified, binds the verified
// destination into any contact gap, and absorbs duplicates found by the
// permissive rule set. Duplicates are processed in ascending id order
// so concurrent verifications serialize the same way.
func (w *Workflow) verifyProfile(ctx context.Context, challenge *domain.ClaimChallenge) (int, error) {
	winner, err := w.profiles.GetByID(ctx, challenge.ProfileID)
	if err != nil {
		return 0, fmt.Errorf("get profile: %w", err)
	}
	if winner == nil {
		return 0, fmt.Errorf("%w: profile %s", domain.ErrNotFound, challenge.ProfileID)
	}

	all, err := w.profiles.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}
	winnerSignals := matching.ProfileSignals(winner)

	var duplicates []*domain.Profile
	for _, p := range all {
		if p.ID == winner.ID || !p.Active {
			continue
		}
		if matching.SameBusiness(winnerSignals, matching.ProfileSignals(p), true) {
			duplicates = append(duplicates, p)
		}
	}
	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].ID.String() < duplicates[j].ID.String()
	})

	// Drain each duplicate first, then fold everything into the winner.
	var absorbedIDs []string
	var absorbedLocations []domain.Location
	for _, dup := range duplicates {
		drainedIDs, drainedLocs, err := w.drainDuplicate(ctx, dup.ID, winner.ID)
		if err != nil {
			return 0, err
		}
		absorbedIDs = append(absorbedIDs, drainedIDs...)
		absorbedLocations = append(absorbedLocations, drainedLocs...)
	}

	linked := 0
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := w.profiles.GetByID(ctx, winner.ID)
		if err != nil {
			return 0, fmt.Errorf("get profile: %w", err)
		}
		if p == nil {
			return 0, fmt.Errorf("%w: profile %s", domain.ErrNotFound, winner.ID)
		}
		updated := p.Clone()
		updated.ClaimStatus = domain.ClaimVerified
		if challenge.Channel == domain.ChannelEmail && updated.Contact.Email == "" {
			updated.Contact.Email = challenge.Destination
		}
		if challenge.Channel == domain.ChannelPhone && updated.Contact.Phone == "" {
			updated.Contact.Phone = challenge.Destination
		}
		for _, id := range absorbedIDs {
			if !updated.HasSourceRecord(id) {
				updated.SourceRecordIDs = append(updated.SourceRecordIDs, id)
			}
		}
		linked = 0
		for _, loc := range absorbedLocations {
			if matching.AddServiceLocation(updated, loc) {
				linked++
			}
		}
		updated.UpdatedAt = w.now()
		err = w.profiles.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("update profile: %w", err)
		}
		return linked, nil
	}
	return 0, fmt.Errorf("%w: verifying %s kept losing races", domain.ErrConflict, winner.ID)
}

// drainDuplicate deactivates the duplicate and hands its source records
// and service locations to the caller. Source ids are moved, never
// copied, so the disjointness invariant holds at every step.
func (w *Workflow) drainDuplicate(ctx context.Context, dupID, winnerID uuid.UUID) ([]string, []domain.Location, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		dup, err := w.profiles.GetByID(ctx, dupID)
		if err != nil {
			return nil, nil, fmt.Errorf("get duplicate: %w", err)
		}
		if dup == nil || !dup.Active {
			return nil, nil, nil // already absorbed elsewhere
		}
		drained := dup.Clone()
		movedIDs := drained.SourceRecordIDs
		movedLocs := drained.ServiceLocations
		drained.SourceRecordIDs = nil
		drained.Active = false
		drained.MergedInto = winnerID
		drained.UpdatedAt = w.now()
		err = w.profiles.Update(ctx, drained)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("deactivate duplicate: %w", err)
		}
		w.bus.Publish(ctx, domain.Event{
			ID:        ids.New(),
			Type:      domain.EventProfileMerged,
			ProfileID: winnerID,
			Payload:   map[string]any{"absorbed": dupID.String()},
			Timestamp: w.now(),
			Source:    "claim_workflow",
		})
		return movedIDs, movedLocs, nil
	}
	return nil, nil, fmt.Errorf("%w: draining %s kept losing races", domain.ErrConflict, dupID)
}

// failChallenge terminates the challenge and returns the profile to
// Unclaimed, but only when no other challenge already succeeded.
func (w *Workflow) failChallenge(ctx context.Context, challenge *domain.ClaimChallenge, status domain.ChallengeStatus) {
	challenge.Status = status
	if err := w.challenges.Update(ctx, challenge); err != nil {
		w.log.Error().Err(err).Str("challenge_id", challenge.ID.String()).Msg("Failed to terminate challenge")
	}

	profile, err := w.profiles.GetByID(ctx, challenge.ProfileID)
	if err != nil || profile == nil {
		return
	}
	if profile.ClaimStatus == domain.ClaimPendingVerification {
		if err := w.setClaimStatus(ctx, challenge.ProfileID, domain.ClaimUnclaimed); err != nil {
			w.log.Error().Err(err).Str("profile_id", challenge.ProfileID.String()).Msg("Failed to revert claim status")
		}
	}
	w.appendAudit(ctx, challenge.ProfileID, "claim."+string(status), challenge.Channel, challenge.Destination)
}

func (w *Workflow) setClaimStatus(ctx context.Context, profileID uuid.UUID, status domain.ClaimStatus) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := w.profiles.GetByID(ctx, profileID)
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		if p == nil {
			return fmt.Errorf("%w: profile %s", domain.ErrNotFound, profileID)
		}
		// Claim monotonicity: Verified never regresses.
		if p.ClaimStatus == domain.ClaimVerified {
			return nil
		}
		updated := p.Clone()
		updated.ClaimStatus = status
		updated.UpdatedAt = w.now()
		err = w.profiles.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: claim status update on %s kept losing races", domain.ErrConflict, profileID)
}

// appendAudit writes one append-only trail entry with the destination
// redacted. Audit failures are logged, never surfaced: the trail is for
// dispute resolution, not a precondition of the transition.
func (w *Workflow) appendAudit(ctx context.Context, profileID uuid.UUID, event string, channel domain.ClaimChannel, destination string) {
	entry := domain.ClaimAuditEntry{
		ID:          ids.New(),
		ProfileID:   profileID,
		Event:       event,
		Channel:     channel,
		Destination: notify.MaskDestination(channel, destination),
		At:          w.now(),
	}
	if err := w.audit.Append(ctx, entry); err != nil {
		w.log.Error().Err(err).Str("profile_id", profileID.String()).Str("event", event).Msg("Audit append failed")
	}
}

// destinationMatchesProfile enforces the claim precondition: an email
// destination must share a domain with the profile's website, a phone
// destination must satisfy the phone-match rule against the profile's
// known phone.
func destinationMatchesProfile(p *domain.Profile, channel domain.ClaimChannel, destination string) bool {
	switch channel {
	case domain.ChannelEmail:
		at := strings.LastIndex(destination, "@")
		if at < 0 {
			return false
		}
		return matching.MatchDomain(destination[at+1:], p.Contact.Website)
	case domain.ChannelPhone:
		return matching.MatchPhone(destination, p.Contact.Phone)
	}
	return false
}

// randomCode draws a 6-digit one-time code from crypto/rand.
func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		// crypto/rand failing means the process is in serious trouble.
		panic(fmt.Sprintf("claims: rand.Int: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}
