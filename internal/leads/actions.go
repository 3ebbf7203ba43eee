package leads

import (
	"StandMatch/internal/core/domain"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ProfileAction applies a profile-initiated transition to an already
// routed lead. Any error aborts the whole action: no partial state
// change is observable. Unlock deducts one credit (unless the profile
// is on an unlimited plan) and is idempotent per profile.
func (r *Router) ProfileAction(ctx context.Context, leadID string, profileID uuid.UUID, action domain.LeadAction) (domain.LeadStatus, error) {
	lead, err := r.leads.GetByID(ctx, leadID)
	if err != nil {
		return "", fmt.Errorf("get lead: %w", err)
	}
	if lead == nil {
		return "", fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID)
	}
	if !lead.Matched(profileID) {
		return "", fmt.Errorf("%w: profile %s was not routed this lead", domain.ErrValidation, profileID)
	}

	// Expiry is lazy: the first action past the window expires the lead.
	if lead.ExpiredAt(r.now()) && lead.Status != domain.LeadExpired {
		r.expire(ctx, lead)
		return domain.LeadExpired, fmt.Errorf("%w: lead expired", domain.ErrConflict)
	}
	if lead.Status == domain.LeadExpired {
		return domain.LeadExpired, fmt.Errorf("%w: lead expired", domain.ErrConflict)
	}

	switch action {
	case domain.ActionUnlock:
		return r.unlock(ctx, lead, profileID)
	case domain.ActionQuote:
		return r.transition(ctx, leadID, profileID, action, domain.LeadQuoted)
	case domain.ActionAccept:
		return r.transition(ctx, leadID, profileID, action, domain.LeadAccepted)
	case domain.ActionReject:
		return r.transition(ctx, leadID, profileID, action, domain.LeadRejected)
	}
	return "", fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
}

// unlock charges the acting profile and opens the lead's contact
// details to it. Re-unlocking is a no-op with no further charge.
func (r *Router) unlock(ctx context.Context, lead *domain.Lead, profileID uuid.UUID) (domain.LeadStatus, error) {
	if lead.Unlocked(profileID) {
		return lead.Status, nil
	}

	charged, err := r.chargeUnlock(ctx, profileID)
	if err != nil {
		return "", err
	}

	status, err := r.applyUnlock(ctx, lead.ID, profileID)
	if err != nil {
		// The charge and the unlock commit together; refund on failure.
		if charged {
			r.refundUnlock(ctx, profileID, lead.ID)
		}
		return "", err
	}
	if charged {
		r.appendLedger(ctx, profileID, lead.ID, -1, "lead_unlock")
	}
	r.publish(ctx, domain.EventLeadAction, lead.ID, profileID, map[string]any{"action": string(domain.ActionUnlock)})
	return status, nil
}

// chargeUnlock deducts one credit under CAS. Returns whether a credit
// was actually taken (unlimited plans are never charged).
func (r *Router) chargeUnlock(ctx context.Context, profileID uuid.UUID) (bool, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := r.profiles.GetByID(ctx, profileID)
		if err != nil {
			return false, fmt.Errorf("get profile: %w", err)
		}
		if p == nil {
			return false, fmt.Errorf("%w: profile %s", domain.ErrNotFound, profileID)
		}
		if p.UnlimitedPlan {
			return false, nil
		}
		if p.CreditBalance <= 0 {
			return false, fmt.Errorf("%w: no credits left", domain.ErrConflict)
		}
		updated := p.Clone()
		updated.CreditBalance--
		updated.UpdatedAt = r.now()
		err = r.profiles.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("deduct credit: %w", err)
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: unlock charge on %s kept losing races", domain.ErrConflict, profileID)
}

func (r *Router) refundUnlock(ctx context.Context, profileID uuid.UUID, leadID string) {
	for attempt := 0; attempt < casRetries; attempt++ {
		p, err := r.profiles.GetByID(ctx, profileID)
		if err != nil || p == nil {
			break
		}
		updated := p.Clone()
		updated.CreditBalance++
		updated.UpdatedAt = r.now()
		err = r.profiles.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err == nil {
			r.appendLedger(ctx, profileID, leadID, 1, "unlock_refund")
			return
		}
		break
	}
	r.log.Error().Str("profile_id", profileID.String()).Str("lead_id", leadID).Msg("Unlock refund failed, ledger and balance disagree")
}

func (r *Router) applyUnlock(ctx context.Context, leadID string, profileID uuid.UUID) (domain.LeadStatus, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		lead, err := r.leads.GetByID(ctx, leadID)
		if err != nil {
			return "", fmt.Errorf("get lead: %w", err)
		}
		if lead == nil {
			return "", fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID)
		}
		if lead.Unlocked(profileID) {
			return lead.Status, nil // raced with ourselves, already done
		}
		updated := lead.Clone()
		updated.UnlockedBy = append(updated.UnlockedBy, profileID)
		if updated.Status == domain.LeadRouted {
			updated.Status = domain.LeadUnlocked
		}
		updated.UpdatedAt = r.now()
		err = r.leads.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("update lead: %w", err)
		}
		return updated.Status, nil
	}
	return "", fmt.Errorf("%w: unlock on %s kept losing races", domain.ErrConflict, leadID)
}

func (r *Router) transition(ctx context.Context, leadID string, profileID uuid.UUID, action domain.LeadAction, target domain.LeadStatus) (domain.LeadStatus, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		lead, err := r.leads.GetByID(ctx, leadID)
		if err != nil {
			return "", fmt.Errorf("get lead: %w", err)
		}
		if lead == nil {
			return "", fmt.Errorf("%w: lead %s", domain.ErrNotFound, leadID)
		}
		updated := lead.Clone()
		updated.Status = target
		updated.UpdatedAt = r.now()
		err = r.leads.Update(ctx, updated)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("update lead: %w", err)
		}
		r.publish(ctx, domain.EventLeadAction, leadID, profileID, map[string]any{"action": string(action)})
		return target, nil
	}
	return "", fmt.Errorf("%w: %s on %s kept losing races", domain.ErrConflict, action, leadID)
}
