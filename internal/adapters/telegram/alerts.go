package telegram

import (
	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Alerter mirrors selected domain events into an ops Telegram chat so
// operators see claims and routing outcomes without tailing logs.
// Event payloads carry no contact details, so nothing sensitive leaves
// the process here.
type Alerter struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewAlerter creates an Alerter posting into the given chat.
func NewAlerter(api *tgbotapi.BotAPI, chatID int64, baseLogger *zerolog.Logger) *Alerter {
	return &Alerter{
		api:    api,
		chatID: chatID,
		log:    baseLogger.With().Str("component", "tg_alerter").Logger(),
	}
}

// Attach subscribes the alerter to the bus and returns the unsubscribe
// function.
func (a *Alerter) Attach(bus ports.EventBus) func() {
	return bus.Subscribe(a.handle)
}

func (a *Alerter) handle(ctx context.Context, evt domain.Event) error {
	text := a.format(evt)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, err := a.api.Send(msg); err != nil {
		a.log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("Failed to send ops alert")
		return err
	}
	return nil
}

func (a *Alerter) format(evt domain.Event) string {
	switch evt.Type {
	case domain.EventProfileClaimed:
		return fmt.Sprintf("Profile %s verified ownership (%v locations linked)",
			evt.ProfileID, evt.Payload["locations_linked"])
	case domain.EventProfileMerged:
		if absorbed, ok := evt.Payload["absorbed"]; ok {
			return fmt.Sprintf("Profile %s absorbed duplicate %v", evt.ProfileID, absorbed)
		}
		return fmt.Sprintf("Record %v merged into profile %s", evt.Payload["external_id"], evt.ProfileID)
	case domain.EventLeadRouted:
		return fmt.Sprintf("Lead %s routed: %v matched, %v notified",
			evt.LeadID, evt.Payload["matched"], evt.Payload["notified"])
	default:
		return ""
	}
}
