package notify

import (
	"fmt"
	"strings"

	"fieldbook/internal/domain"
	"fieldbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends reservation and membership events to manager chats.
type TelegramNotifier struct {
	sender domain.TelegramSender
	chats  []int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, chats []int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{sender: sender, chats: chats, logger: logger}
}

// NewBotSender connects to the Bot API with token.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Subscribe registers the notifier on every event it formats.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventReservationCreated, n.handleReservation)
	bus.Subscribe(events.EventReservationCancelled, n.handleReservation)
	bus.Subscribe(events.EventSeriesCreated, n.handleSeries)
	bus.Subscribe(events.EventSeriesCancelled, n.handleSeries)
}

func (n *TelegramNotifier) handleReservation(e *events.Event) error {
	var p events.ReservationEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	return n.broadcast(FormatReservation(e.Type, p))
}

func (n *TelegramNotifier) handleSeries(e *events.Event) error {
	var p events.SeriesEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	return n.broadcast(FormatSeries(e.Type, p))
}

func (n *TelegramNotifier) broadcast(text string) error {
	var failed int
	for _, chatID := range n.chats {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			failed++
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to notify manager")
		}
	}
	if failed > 0 {
		return fmt.Errorf("telegram: %d of %d messages failed", failed, len(n.chats))
	}
	return nil
}

func FormatReservation(eventType string, p events.ReservationEventPayload) string {
	var b strings.Builder
	switch eventType {
	case events.EventReservationCancelled:
		b.WriteString("❌ Reservation cancelled\n\n")
	default:
		b.WriteString("🆕 New reservation\n\n")
	}
	fmt.Fprintf(&b, "🏟 Field: %s\n", p.FieldID)
	fmt.Fprintf(&b, "📅 Date: %s %s-%s\n", p.Date, p.StartTime, p.EndTime)
	fmt.Fprintf(&b, "👤 Customer: %s\n", p.UserID)
	fmt.Fprintf(&b, "💰 Total: %s\n", money(p.Total, p.Currency))
	if p.RefundAmount != nil {
		fmt.Fprintf(&b, "↩️ Refund: %s (%s)\n", money(*p.RefundAmount, p.Currency), p.RefundStatus)
	}
	if p.ChangedBy != "" && p.ChangedBy != p.UserID {
		fmt.Fprintf(&b, "✏️ By: %s (%s)\n", p.ChangedBy, p.ChangedByRole)
	}
	fmt.Fprintf(&b, "🆔 %s", p.ReservationID)
	return b.String()
}

func FormatSeries(eventType string, p events.SeriesEventPayload) string {
	var b strings.Builder
	if eventType == events.EventSeriesCancelled {
		b.WriteString("❌ Membership cancelled\n\n")
		fmt.Fprintf(&b, "🏟 Field: %s\n", p.FieldID)
		fmt.Fprintf(&b, "👤 Customer: %s\n", p.UserID)
		fmt.Fprintf(&b, "📅 From: %s, %d occurrences cancelled\n", p.EffectiveOn, p.Cancelled)
	} else {
		b.WriteString("🔁 New membership\n\n")
		fmt.Fprintf(&b, "🏟 Field: %s\n", p.FieldID)
		fmt.Fprintf(&b, "👤 Customer: %s\n", p.UserID)
		fmt.Fprintf(&b, "🕒 %s %s-%s\n", p.Pattern, p.StartTime, p.EndTime)
		fmt.Fprintf(&b, "✅ Created: %d, skipped: %d\n", p.Created, p.Skipped)
		if len(p.Dates) > 0 {
			fmt.Fprintf(&b, "📅 First: %s, last: %s\n", p.Dates[0], p.Dates[len(p.Dates)-1])
		}
	}
	fmt.Fprintf(&b, "🆔 %s", p.SeriesID)
	return b.String()
}

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
