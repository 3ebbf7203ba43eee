package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is a custom type for the lead lifecycle ENUM
type LeadStatus string

const (
	LeadNew      LeadStatus = "new"
	LeadRouted   LeadStatus = "routed"
	LeadUnlocked LeadStatus = "unlocked"
	LeadQuoted   LeadStatus = "quoted"
	LeadAccepted LeadStatus = "accepted"
	LeadRejected LeadStatus = "rejected"
	LeadExpired  LeadStatus = "expired"
)

// LeadAction is a profile-initiated transition on an already-routed lead.
type LeadAction string

const (
	ActionUnlock LeadAction = "unlock"
	ActionQuote  LeadAction = "quote"
	ActionAccept LeadAction = "accept"
	ActionReject LeadAction = "reject"
)

// LeadTTL is how long a lead stays actionable before it lazily expires.
const LeadTTL = 30 * 24 * time.Hour

// Lead is one inbound customer request to be matched against profiles.
type Lead struct {
	ID           string
	CompanyName  string
	ContactEmail string
	City         string
	Country      string
	StandSize    string
	Budget       int
	Status       LeadStatus

	// MatchedProfileIDs is the full qualified set from routing, not just
	// the notified subset. A profile in here is never re-notified.
	MatchedProfileIDs []uuid.UUID

	// UnlockedBy makes Unlock idempotent per profile.
	UnlockedBy []uuid.UUID

	CreatedAt time.Time
	RoutedAt  time.Time
	UpdatedAt time.Time

	// Version is the compare-and-swap token, same scheme as Profile.
	Version int64
}

// Matched reports whether the profile is already in the matched set.
func (l *Lead) Matched(profileID uuid.UUID) bool {
	for _, id := range l.MatchedProfileIDs {
		if id == profileID {
			return true
		}
	}
	return false
}

// Unlocked reports whether the profile already unlocked this lead.
func (l *Lead) Unlocked(profileID uuid.UUID) bool {
	for _, id := range l.UnlockedBy {
		if id == profileID {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the lead is past its actionable window.
func (l *Lead) ExpiredAt(now time.Time) bool {
	return now.After(l.CreatedAt.Add(LeadTTL))
}

// Clone returns a deep copy for compare-and-swap updates.
func (l *Lead) Clone() *Lead {
	cp := *l
	cp.MatchedProfileIDs = append([]uuid.UUID(nil), l.MatchedProfileIDs...)
	cp.UnlockedBy = append([]uuid.UUID(nil), l.UnlockedBy...)
	return &cp
}
