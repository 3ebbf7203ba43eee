package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is a custom type for the profile claim ENUM
type ClaimStatus string

const (
	ClaimUnclaimed           ClaimStatus = "unclaimed"
	ClaimPendingVerification ClaimStatus = "pending_verification"
	ClaimClaimed             ClaimStatus = "claimed"
	ClaimVerified            ClaimStatus = "verified"
)

// Location is a single place a profile is anchored to or serves.
type Location struct {
	City        string
	Country     string
	CountryCode string
	Address     string
	Latitude    float64
	Longitude   float64
}

// Contact holds the fields whose visibility is gated by claim status.
type Contact struct {
	Email         string
	Phone         string
	Website       string
	ContactPerson string
}

// ProjectValueBand is the typical project-value range of a builder,
// used only for ranking leads, never for eligibility.
type ProjectValueBand struct {
	Min int
	Max int
}

// Profile is the canonical representation of one real-world business,
// regardless of how many raw import records describe it.
type Profile struct {
	ID               uuid.UUID
	DisplayName      string
	Description      string
	Headquarters     Location
	ServiceLocations []Location
	Contact          Contact
	ClaimStatus      ClaimStatus
	CreditBalance    int
	UnlimitedPlan    bool
	Premium          bool
	Active           bool
	Rating           float64
	ReviewCount      int
	ValueBand        ProjectValueBand

	// SourceRecordIDs is the set of raw import-record ids merged into
	// this profile. Disjoint across profiles at all times.
	SourceRecordIDs []string

	// MergedInto is set when this profile was absorbed by another one
	// during claim verification. The profile stays around, deactivated.
	MergedInto uuid.UUID

	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Version is bumped by the store on every successful Update and is
	// the compare-and-swap token for concurrent mutations.
	Version int64
}

// ContactVisible reports whether the contact fields may appear on a
// public read path.
func (p *Profile) ContactVisible() bool {
	return p.ClaimStatus == ClaimClaimed || p.ClaimStatus == ClaimVerified
}

// HasSourceRecord reports whether the raw record id was already merged in.
func (p *Profile) HasSourceRecord(externalID string) bool {
	for _, id := range p.SourceRecordIDs {
		if id == externalID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate freely before a
// compare-and-swap Update.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.ServiceLocations = append([]Location(nil), p.ServiceLocations...)
	cp.SourceRecordIDs = append([]string(nil), p.SourceRecordIDs...)
	return &cp
}
