package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClaimChannel is the communication channel a claim challenge goes out on.
type ClaimChannel string

const (
	ChannelEmail ClaimChannel = "email"
	ChannelPhone ClaimChannel = "phone"
)

// ChallengeStatus is a custom type for the challenge state ENUM
type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeVerified ChallengeStatus = "verified"
	ChallengeExpired  ChallengeStatus = "expired"
	ChallengeFailed   ChallengeStatus = "failed"
)

// ChallengeTTL is the fixed expiry window for a claim challenge.
const ChallengeTTL = 15 * time.Minute

// ClaimChallenge is one ephemeral verification attempt against a profile.
// At most one Pending challenge exists per profile; a new StartClaim
// supersedes the previous one.
type ClaimChallenge struct {
	ID          uuid.UUID
	ProfileID   uuid.UUID
	Channel     ClaimChannel
	Destination string
	Code        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Status      ChallengeStatus
}

// ExpiredAt reports whether the challenge is past its expiry window.
// Expiry is evaluated lazily at verification time, never by a sweeper.
func (c *ClaimChallenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ClaimAuditEntry is one append-only record of a claim-status change.
// Destination is stored redacted; entries are never mutated after write.
type ClaimAuditEntry struct {
	ID          string
	ProfileID   uuid.UUID
	Event       string
	Channel     ClaimChannel
	Destination string
	At          time.Time
}
