package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event on the in-process bus.
type EventType string

const (
	EventProfileCreated EventType = "profile.created"
	EventProfileMerged  EventType = "profile.merged"
	EventProfileClaimed EventType = "profile.claimed"
	EventLeadSubmitted  EventType = "lead.submitted"
	EventLeadRouted     EventType = "lead.routed"
	EventLeadAction     EventType = "lead.action"
)

// Event is an immutable change notification. Subscribers that join after
// an event was published never see it; there is no replay.
type Event struct {
	ID        string
	Type      EventType
	ProfileID uuid.UUID
	LeadID    string
	Payload   map[string]any
	Timestamp time.Time
	Source    string
}
