package claims

import (
	"StandMatch/internal/adapters/memory"
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type captureBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *captureBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) Subscribe(handler ports.EventHandler) func() { return func() {} }

func (b *captureBus) byType(typ domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, e := range b.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type captureNotifier struct {
	sent chan string
}

func (n *captureNotifier) Send(ctx context.Context, channel domain.ClaimChannel, destination, message string) error {
	select {
	case n.sent <- destination:
	default:
	}
	return nil
}

type fixture struct {
	workflow *Workflow
	profiles ports.ProfileRepository
	audit    ports.ClaimAuditLog
	bus      *captureBus
	notifier *captureNotifier
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	nopLogger := zerolog.Nop()
	f := &fixture{
		profiles: memory.NewProfileRepository(&nopLogger),
		audit:    memory.NewClaimAuditLog(&nopLogger),
		bus:      &captureBus{},
		notifier: &captureNotifier{sent: make(chan string, 8)},
		clock:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.workflow = NewWorkflow(
		f.profiles,
		memory.NewChallengeRepository(&nopLogger),
		f.audit,
		f.bus,
		f.notifier,
		&nopLogger,
	)
	f.workflow.now = func() time.Time { return f.clock }
	f.workflow.newCode = func() string { return "424242" }
	return f
}

func (f *fixture) addProfile(t *testing.T, p *domain.Profile) *domain.Profile {
	t.Helper()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Active = true
	if p.ClaimStatus == "" {
		p.ClaimStatus = domain.ClaimUnclaimed
	}
	if err := f.profiles.Create(t.Context(), p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func standsBay() *domain.Profile {
	return &domain.Profile{
		DisplayName:  "Stands Bay",
		Headquarters: domain.Location{City: "Dubai", Country: "United Arab Emirates"},
		ServiceLocations: []domain.Location{
			{City: "Dubai", Country: "United Arab Emirates"},
		},
		Contact: domain.Contact{
			Phone:   "+971501234567",
			Website: "https://www.standsbay.com",
		},
		SourceRecordIDs: []string{"gmaps:1"},
	}
}

func TestStartClaim_EmailHappyPath(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, standsBay())

	challenge, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("StartClaim failed: %v", err)
	}
	if challenge.Status != domain.ChallengePending {
		t.Errorf("Status = %s, want pending", challenge.Status)
	}
	if challenge.Code != "424242" {
		t.Errorf("Code = %q", challenge.Code)
	}
	if want := f.clock.Add(domain.ChallengeTTL); !challenge.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %s, want %s", challenge.ExpiresAt, want)
	}

	got, _ := f.profiles.GetByID(t.Context(), p.ID)
	if got.ClaimStatus != domain.ClaimPendingVerification {
		t.Errorf("ClaimStatus = %s, want pending_verification", got.ClaimStatus)
	}

	select {
	case dest := <-f.notifier.sent:
		if dest != "owner@standsbay.com" {
			t.Errorf("dispatched to %q", dest)
		}
	case <-time.After(time.Second):
		t.Error("claim code was never dispatched")
	}

	entries, _ := f.audit.ListByProfile(t.Context(), p.ID)
	if len(entries) != 1 || entries[0].Event != "claim.started" {
		t.Fatalf("audit = %+v, want one claim.started entry", entries)
	}
	if entries[0].Destination == "owner@standsbay.com" {
		t.Error("audit trail stored the destination unredacted")
	}
}

func TestStartClaim_DestinationMustMatchProfile(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, standsBay())

	_, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "someone@gmail.com")
	if !errors.Is(err, domain.ErrClaimChannelMismatch) {
		t.Errorf("foreign email error = %v, want ErrClaimChannelMismatch", err)
	}

	_, err = f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelPhone, "+971509999999")
	if !errors.Is(err, domain.ErrClaimChannelMismatch) {
		t.Errorf("foreign phone error = %v, want ErrClaimChannelMismatch", err)
	}

	// A matching phone in a different format passes.
	if _, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelPhone, "050 123 4567"); err != nil {
		t.Errorf("matching phone rejected: %v", err)
	}
}

func TestStartClaim_SupersedesPendingChallenge(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, standsBay())

	first, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("first StartClaim failed: %v", err)
	}
	second, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("second StartClaim failed: %v", err)
	}

	// The first challenge is dead; verifying it must fail.
	if _, err := f.workflow.VerifyClaim(t.Context(), first.ID, "424242"); !errors.Is(err, domain.ErrChallengeExpired) {
		t.Errorf("superseded challenge verify error = %v, want ErrChallengeExpired", err)
	}

	// The second one still works.
	if _, err := f.workflow.VerifyClaim(t.Context(), second.ID, "424242"); err != nil {
		t.Errorf("active challenge verify failed: %v", err)
	}
}

func TestVerifyClaim_WrongCodeFailsAndReverts(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, standsBay())

	challenge, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("StartClaim failed: %v", err)
	}

	_, err = f.workflow.VerifyClaim(t.Context(), challenge.ID, "000000")
	if !errors.Is(err, domain.ErrChallengeCodeMismatch) {
		t.Fatalf("error = %v, want ErrChallengeCodeMismatch", err)
	}

	got, _ := f.profiles.GetByID(t.Context(), p.ID)
	if got.ClaimStatus != domain.ClaimUnclaimed {
		t.Errorf("ClaimStatus = %s, want unclaimed after failure", got.ClaimStatus)
	}

	// The challenge is spent; the right code is now useless.
	if _, err := f.workflow.VerifyClaim(t.Context(), challenge.ID, "424242"); !errors.Is(err, domain.ErrChallengeExpired) {
		t.Errorf("spent challenge error = %v, want ErrChallengeExpired", err)
	}

	// A fresh claim can still succeed.
	fresh, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if _, err := f.workflow.VerifyClaim(t.Context(), fresh.ID, "424242"); err != nil {
		t.Errorf("fresh verify failed: %v", err)
	}
}

func TestVerifyClaim_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	p := f.addProfile(t, standsBay())

	challenge, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("StartClaim failed: %v", err)
	}

	f.clock = f.clock.Add(domain.ChallengeTTL + time.Minute)

	_, err = f.workflow.VerifyClaim(t.Context(), challenge.ID, "424242")
	if !errors.Is(err, domain.ErrChallengeExpired) {
		t.Fatalf("error = %v, want ErrChallengeExpired", err)
	}

	got, _ := f.profiles.GetByID(t.Context(), p.ID)
	if got.ClaimStatus != domain.ClaimUnclaimed {
		t.Errorf("ClaimStatus = %s, want unclaimed after expiry", got.ClaimStatus)
	}
}

func TestVerifyClaim_AbsorbsDuplicatesPermissively(t *testing.T) {
	f := newFixture(t)
	winner := f.addProfile(t, standsBay())

	// Same business imported under a longer name with a different city.
	// Strict import dedup missed it; the claim-context containment rule
	// catches it.
	dup := f.addProfile(t, &domain.Profile{
		DisplayName:  "Stands Bay Exhibitions LLC",
		Headquarters: domain.Location{City: "Abu Dhabi", Country: "United Arab Emirates"},
		ServiceLocations: []domain.Location{
			{City: "Abu Dhabi", Country: "United Arab Emirates"},
		},
		SourceRecordIDs: []string{"expolist:9"},
	})

	challenge, err := f.workflow.StartClaim(t.Context(), winner.ID, domain.ChannelEmail, "owner@standsbay.com")
	if err != nil {
		t.Fatalf("StartClaim failed: %v", err)
	}
	result, err := f.workflow.VerifyClaim(t.Context(), challenge.ID, "424242")
	if err != nil {
		t.Fatalf("VerifyClaim failed: %v", err)
	}
	if result.ClaimStatus != domain.ClaimVerified {
		t.Errorf("ClaimStatus = %s, want verified", result.ClaimStatus)
	}
	if result.LocationsLinked != 1 {
		t.Errorf("LocationsLinked = %d, want the Abu Dhabi entry", result.LocationsLinked)
	}

	gotWinner, _ := f.profiles.GetByID(t.Context(), winner.ID)
	if gotWinner.ClaimStatus != domain.ClaimVerified {
		t.Errorf("winner ClaimStatus = %s", gotWinner.ClaimStatus)
	}
	if !gotWinner.HasSourceRecord("expolist:9") {
		t.Error("winner did not absorb the duplicate's source record")
	}
	if len(gotWinner.ServiceLocations) != 2 {
		t.Errorf("winner ServiceLocations = %+v, want Dubai and Abu Dhabi", gotWinner.ServiceLocations)
	}
	// Email destination fills the contact gap.
	if gotWinner.Contact.Email != "owner@standsbay.com" {
		t.Errorf("Contact.Email = %q", gotWinner.Contact.Email)
	}

	gotDup, _ := f.profiles.GetByID(t.Context(), dup.ID)
	if gotDup.Active {
		t.Error("duplicate should be deactivated")
	}
	if gotDup.MergedInto != winner.ID {
		t.Errorf("duplicate MergedInto = %s, want %s", gotDup.MergedInto, winner.ID)
	}
	if len(gotDup.SourceRecordIDs) != 0 {
		t.Errorf("duplicate kept source records %v; ids must move, not copy", gotDup.SourceRecordIDs)
	}

	if merged := f.bus.byType(domain.EventProfileMerged); len(merged) != 1 {
		t.Errorf("got %d merge events, want 1", len(merged))
	}
	if claimed := f.bus.byType(domain.EventProfileClaimed); len(claimed) != 1 {
		t.Errorf("got %d claim events, want 1", len(claimed))
	}
}

func TestStartClaim_VerifiedProfileConflicts(t *testing.T) {
	f := newFixture(t)
	p := standsBay()
	p.ClaimStatus = domain.ClaimVerified
	f.addProfile(t, p)

	_, err := f.workflow.StartClaim(t.Context(), p.ID, domain.ChannelEmail, "owner@standsbay.com")
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestVerifyClaim_UnknownChallenge(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.VerifyClaim(t.Context(), uuid.New(), "424242")
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Errorf("error = %v, want ErrChallengeNotFound", err)
	}
}
