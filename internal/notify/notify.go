// Package notify delivers typed kameti messages to members and operators.
// Delivery itself (push, email) lives behind the Sink interface.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kind is the message type.
type Kind string

const (
	KindPaymentReceived Kind = "payment.received"
	KindPayoutDisbursed Kind = "payout.disbursed"
	KindRoundAdvanced   Kind = "round.advanced"
	KindKametiClosed    Kind = "kameti.closed"
)

// Message is one typed notification.
type Message struct {
	Kind      Kind              `json:"kind"`
	GroupID   string            `json:"group_id"`
	UserID    string            `json:"user_id,omitempty"`
	Round     int               `json:"round,omitempty"`
	Amount    int64             `json:"amount,omitempty"`
	Text      string            `json:"text"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sink accepts messages for delivery.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes messages to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs msg at info level.
func (s LogSink) Notify(ctx context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Notification",
		"kind", msg.Kind,
		"group_id", msg.GroupID,
		"user_id", msg.UserID,
		"round", msg.Round,
		"text", msg.Text,
	)
	return nil
}

// Multi fans a message out to every sink and joins their errors.
type Multi []Sink

// Notify delivers msg to all sinks.
func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
