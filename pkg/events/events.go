package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("cafe-bookings"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

// NopBus drops every event. Used when NATS is disabled.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, any) error { return nil }

func (NopBus) QueueSubscribe(string, string, func(*Message)) error { return nil }

func (NopBus) Close() error { return nil }

const (
	BookingCreated       = "booking.created"
	BookingDemoFallback  = "booking.demo_fallback"
	BookingStatusChanged = "booking.status_changed"
)

// BookingEvent is published for every booking the site accepted, remote or demo.
type BookingEvent struct {
	BookingID     string    `json:"booking_id"`
	Type          string    `json:"type"`
	Demo          bool      `json:"demo"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	Date          string    `json:"date,omitempty"`
	Time          string    `json:"time,omitempty"`
	Guests        string    `json:"guests,omitempty"`
	EventTitle    string    `json:"event_title,omitempty"`
	Tickets       int       `json:"tickets,omitempty"`
	TotalAmount   int       `json:"total_amount,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type BookingStatusChangedEvent struct {
	BookingID string    `json:"booking_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
