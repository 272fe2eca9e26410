package notify

import (
	"errors"
	"strings"
	"testing"

	"fieldbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func messageTo(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func TestNotifierReservationCreated(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", messageTo(100, "New reservation")).Return(tgbotapi.Message{}, nil).Once()
	sender.On("Send", messageTo(200, "New reservation")).Return(tgbotapi.Message{}, nil).Once()

	bus := events.NewEventBus()
	NewTelegramNotifier(sender, []int64{100, 200}, nil).Subscribe(bus)

	err := bus.PublishJSON(events.EventReservationCreated, events.ReservationEventPayload{
		ReservationID: "res-1",
		FieldID:       "field-1",
		UserID:        "user-1",
		Date:          "2026-03-09",
		StartTime:     "10:00",
		EndTime:       "12:00",
		Total:         20000,
		Currency:      "LAK",
	})
	require.NoError(t, err)

	sender.AssertExpectations(t)
	assert.Equal(t, int64(0), bus.Failures())
}

func TestNotifierSendFailureCounted(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found"))

	bus := events.NewEventBus()
	NewTelegramNotifier(sender, []int64{1}, nil).Subscribe(bus)

	require.NoError(t, bus.PublishJSON(events.EventSeriesCancelled, events.SeriesEventPayload{SeriesID: "s-1"}))
	assert.Equal(t, int64(1), bus.Failures())
}

func TestFormatReservationCancelled(t *testing.T) {
	refund := 10000.0
	text := FormatReservation(events.EventReservationCancelled, events.ReservationEventPayload{
		ReservationID: "res-1",
		UserID:        "user-1",
		Total:         20000,
		Currency:      "LAK",
		RefundAmount:  &refund,
		RefundStatus:  "pending",
		ChangedBy:     "owner-1",
		ChangedByRole: "stadium_owner",
	})

	assert.Contains(t, text, "Reservation cancelled")
	assert.Contains(t, text, "Refund: 10000.00 LAK (pending)")
	assert.Contains(t, text, "By: owner-1 (stadium_owner)")
}

func TestFormatSeries(t *testing.T) {
	text := FormatSeries(events.EventSeriesCreated, events.SeriesEventPayload{
		SeriesID: "s-1",
		Pattern:  "weekly",
		Created:  3,
		Skipped:  1,
		Dates:    []string{"2026-03-09", "2026-03-23", "2026-03-30"},
	})
	assert.Contains(t, text, "Created: 3, skipped: 1")
	assert.Contains(t, text, "First: 2026-03-09, last: 2026-03-30")

	text = FormatSeries(events.EventSeriesCancelled, events.SeriesEventPayload{SeriesID: "s-1", Cancelled: 4, EffectiveOn: "2026-03-10"})
	assert.Contains(t, text, "From: 2026-03-10, 4 occurrences cancelled")
}
