package ports

import (
	"StandMatch/internal/core/domain"
	"context"
)

// Notifier is the out-of-band delivery collaborator for claim codes and
// lead notifications. The engine only requests delivery; it does not
// know or care how (or whether) the message arrives. Callers invoke it
// fire-and-forget so its latency never blocks a state transition.
type Notifier interface {
	Send(ctx context.Context, channel domain.ClaimChannel, destination, message string) error
}
