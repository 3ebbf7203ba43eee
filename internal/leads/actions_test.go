package leads

import (
	"StandMatch/internal/core/domain"
	"errors"
	"sync"
	"testing"
	"time"
)

func (f *fixture) routedLead(t *testing.T) (*domain.Lead, *domain.Profile) {
	t.Helper()
	builder := f.addBuilder(t, builderOpts{name: "Berlin Stands", city: "Berlin", country: "Germany", credits: 3})
	result, err := f.router.SubmitLead(t.Context(), berlinLead())
	if err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}
	lead, err := f.leads.GetByID(t.Context(), result.LeadID)
	if err != nil || lead == nil {
		t.Fatalf("lead not found after submit: %v", err)
	}
	return lead, builder
}

func TestProfileAction_UnlockChargesOnce(t *testing.T) {
	f := newFixture(t)
	lead, builder := f.routedLead(t)
	// Submit already cost one credit.
	before, _ := f.profiles.GetByID(t.Context(), builder.ID)

	status, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionUnlock)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if status != domain.LeadUnlocked {
		t.Errorf("status = %s, want unlocked", status)
	}

	// Re-unlock is free.
	if _, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionUnlock); err != nil {
		t.Fatalf("re-unlock failed: %v", err)
	}

	after, _ := f.profiles.GetByID(t.Context(), builder.ID)
	if after.CreditBalance != before.CreditBalance-1 {
		t.Errorf("balance = %d, want exactly one charge from %d", after.CreditBalance, before.CreditBalance)
	}

	entries, _ := f.ledger.ListByProfile(t.Context(), builder.ID.String())
	unlocks := 0
	for _, e := range entries {
		if e.Reason == "lead_unlock" {
			unlocks++
		}
	}
	if unlocks != 1 {
		t.Errorf("ledger has %d unlock entries, want 1", unlocks)
	}
}

func TestProfileAction_ConcurrentUnlocksNeverOverdraw(t *testing.T) {
	f := newFixture(t)

	// One credit left after the submit deduction: route two leads, then
	// race the two unlocks against the single remaining credit.
	builder := f.addBuilder(t, builderOpts{name: "Berlin Stands", city: "Berlin", country: "Germany", credits: 3})

	first, err := f.router.SubmitLead(t.Context(), berlinLead())
	if err != nil {
		t.Fatalf("first SubmitLead failed: %v", err)
	}
	second, err := f.router.SubmitLead(t.Context(), berlinLead())
	if err != nil {
		t.Fatalf("second SubmitLead failed: %v", err)
	}

	// Force the balance down to exactly one credit.
	for {
		p, _ := f.profiles.GetByID(t.Context(), builder.ID)
		if p.CreditBalance <= 1 {
			break
		}
		updated := p.Clone()
		updated.CreditBalance = 1
		if err := f.profiles.Update(t.Context(), updated); err == nil {
			break
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, leadID := range []string{first.LeadID, second.LeadID} {
		wg.Add(1)
		go func(i int, leadID string) {
			defer wg.Done()
			_, errs[i] = f.router.ProfileAction(t.Context(), leadID, builder.ID, domain.ActionUnlock)
		}(i, leadID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d unlocks succeeded, want exactly 1", succeeded)
	}

	p, _ := f.profiles.GetByID(t.Context(), builder.ID)
	if p.CreditBalance != 0 {
		t.Errorf("balance = %d, want 0 and never negative", p.CreditBalance)
	}
}

func TestProfileAction_UnmatchedProfileRejected(t *testing.T) {
	f := newFixture(t)
	lead, _ := f.routedLead(t)
	stranger := f.addBuilder(t, builderOpts{name: "Paris Stands", city: "Paris", country: "France", credits: 5})

	_, err := f.router.ProfileAction(t.Context(), lead.ID, stranger.ID, domain.ActionUnlock)
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestProfileAction_UnlimitedPlanUnlocksFree(t *testing.T) {
	f := newFixture(t)
	unlimited := f.addBuilder(t, builderOpts{name: "Unlimited", city: "Berlin", country: "Germany", unlimited: true})

	result, err := f.router.SubmitLead(t.Context(), berlinLead())
	if err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}
	if _, err := f.router.ProfileAction(t.Context(), result.LeadID, unlimited.ID, domain.ActionUnlock); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	entries, _ := f.ledger.ListByProfile(t.Context(), unlimited.ID.String())
	if len(entries) != 0 {
		t.Errorf("unlimited plan hit the ledger: %+v", entries)
	}
}

func TestProfileAction_Lifecycle(t *testing.T) {
	f := newFixture(t)
	lead, builder := f.routedLead(t)

	if _, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionUnlock); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	status, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionQuote)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if status != domain.LeadQuoted {
		t.Errorf("status = %s, want quoted", status)
	}
	status, err = f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionAccept)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if status != domain.LeadAccepted {
		t.Errorf("status = %s, want accepted", status)
	}
}

func TestProfileAction_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	lead, builder := f.routedLead(t)

	f.clock = f.clock.Add(domain.LeadTTL + time.Hour)

	_, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionUnlock)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	got, _ := f.leads.GetByID(t.Context(), lead.ID)
	if got.Status != domain.LeadExpired {
		t.Errorf("Status = %s, want expired", got.Status)
	}
	// Expiry does not charge anyone.
	p, _ := f.profiles.GetByID(t.Context(), builder.ID)
	if p.CreditBalance != 2 {
		t.Errorf("balance = %d, want untouched after expiry", p.CreditBalance)
	}

	_, err = f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.ActionQuote)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("action on expired lead error = %v, want ErrConflict", err)
	}
}

func TestProfileAction_UnknownAction(t *testing.T) {
	f := newFixture(t)
	lead, builder := f.routedLead(t)

	_, err := f.router.ProfileAction(t.Context(), lead.ID, builder.ID, domain.LeadAction("steal"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
