// Package notify delivers booking-confirmed events to the staff chats,
// best-effort: a delivery failure is logged and swallowed, it never
// turns a successful booking into a failure.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quadra/internal/events"
)

// Sender pushes one outbound text to a chat.
type Sender interface {
	SendText(chatID int64, text string) error
}

// Config holds notifier settings.
type Config struct {
	// Targets are the staff chat ids that receive confirmations.
	Targets []int64
	// MessagesPerSecond caps outbound sends. Default 20.
	MessagesPerSecond float64
	// Burst is the limiter burst. Default 5.
	Burst int
	// SendTimeout bounds one delivery attempt. Default 10s.
	SendTimeout time.Duration
}

// Service formats and sends booking confirmations.
type Service struct {
	cfg     Config
	sender  Sender
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

// NewService creates the notifier and applies defaults.
func NewService(cfg Config, sender Sender, logger *zerolog.Logger) *Service {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// Attach subscribes the service to the event bus.
func (s *Service) Attach(bus *events.Bus) {
	bus.Subscribe(events.BookingConfirmed, s.onBookingConfirmed)
}

func (s *Service) onBookingConfirmed(event events.Event) {
	payload, ok := event.Payload.(events.BookingConfirmedPayload)
	if !ok {
		s.logger.Warn().Str("event", event.ID).Msg("unexpected payload type")
		return
	}

	text := FormatConfirmation(payload)
	for _, chatID := range s.cfg.Targets {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
		err := s.limiter.Wait(ctx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat", chatID).Msg("notification rate wait aborted")
			continue
		}
		if err := s.sender.SendText(chatID, text); err != nil {
			s.logger.Warn().Err(err).Int64("chat", chatID).Str("event", event.ID).
				Msg("notification delivery failed")
		}
	}
}

// FormatConfirmation renders the staff notification text.
func FormatConfirmation(p events.BookingConfirmedPayload) string {
	text := fmt.Sprintf("Nova aula experimental\n%s\n%s às %s\nAluno: %s",
		p.UnitName, p.Date, p.Time, p.Name)
	if p.Companion != "" {
		text += fmt.Sprintf("\nAcompanhante: %s", p.Companion)
	}
	return text
}
