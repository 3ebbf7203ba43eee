package notify

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"

	"github.com/rs/zerolog"

	msg "StandMatch/internal/notify"
)

// logNotifier implements ports.Notifier by logging the delivery request.
// Real delivery (email/SMS gateway) is an external collaborator; this
// adapter stands in for it in development and tests.
type logNotifier struct {
	log zerolog.Logger
}

var _ ports.Notifier = (*logNotifier)(nil)

// NewLogNotifier creates a notifier that records requests in the log.
func NewLogNotifier(baseLogger *zerolog.Logger) ports.Notifier {
	return &logNotifier{
		log: baseLogger.With().Str("component", "log_notifier").Logger(),
	}
}

// Send logs the request with the destination redacted.
func (n *logNotifier) Send(ctx context.Context, channel domain.ClaimChannel, destination, message string) error {
	n.log.Info().
		Str("channel", string(channel)).
		Str("destination", msg.MaskDestination(channel, destination)).
		Int("message_len", len(message)).
		Msg("Out-of-band delivery requested")
	return nil
}
