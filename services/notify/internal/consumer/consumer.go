// Package consumer turns booking events into confirmation emails.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/diagnosis/cafe-bookings/pkg/events"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/services/notify/internal/mailer"
)

const QueueGroup = "notify"

// Subjects are the booking events that trigger a confirmation.
var Subjects = []string{events.BookingCreated, events.BookingDemoFallback}

type Consumer struct {
	mailer mailer.Service
}

func New(m mailer.Service) *Consumer {
	return &Consumer{mailer: m}
}

// Subscribe registers the consumer on every booking subject.
func (c *Consumer) Subscribe(sub events.Subscriber) error {
	for _, subject := range Subjects {
		if err := sub.QueueSubscribe(subject, QueueGroup, c.handleMessage); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}
	return nil
}

func (c *Consumer) handleMessage(msg *events.Message) {
	if err := c.Handle(context.Background(), msg); err != nil {
		logger.Error("Failed to handle booking event", "subject", msg.Subject, "error", err)
	}
}

// Handle sends the confirmation for one event. Bookings without an email are
// skipped.
func (c *Consumer) Handle(ctx context.Context, msg *events.Message) error {
	var ev events.BookingEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return fmt.Errorf("failed to decode booking event: %w", err)
	}
	if strings.TrimSpace(ev.Email) == "" {
		logger.DebugContext(ctx, "Booking has no email, skipping", "booking_id", ev.BookingID)
		return nil
	}

	if err := c.mailer.Send(ctx, Confirmation(ev)); err != nil {
		return fmt.Errorf("failed to send confirmation for %s: %w", ev.BookingID, err)
	}
	logger.InfoContext(ctx, "Booking confirmation sent", "booking_id", ev.BookingID, "demo", ev.Demo)
	return nil
}

// Confirmation renders the email for a booking event.
func Confirmation(ev events.BookingEvent) mailer.Message {
	var lines []string
	var subject string

	switch ev.Type {
	case "event":
		subject = fmt.Sprintf("Бронирование на «%s» принято", ev.EventTitle)
		lines = append(lines,
			fmt.Sprintf("Мероприятие: %s", ev.EventTitle),
			fmt.Sprintf("Билетов: %d", ev.Tickets),
			fmt.Sprintf("Сумма: %d ₽", ev.TotalAmount),
		)
		if ev.PaymentStatus == "requires_payment" {
			lines = append(lines, "Оплата: ожидает оплаты картой")
		}
	default:
		subject = "Ваша заявка на бронирование столика принята"
		lines = append(lines,
			fmt.Sprintf("Дата: %s", ev.Date),
			fmt.Sprintf("Время: %s", ev.Time),
			fmt.Sprintf("Гостей: %s", ev.Guests),
		)
	}
	lines = append(lines, fmt.Sprintf("Номер заявки: %s", ev.BookingID))
	lines = append(lines, "Мы свяжемся с вами для подтверждения.")

	greeting := fmt.Sprintf("Здравствуйте, %s!", ev.Name)
	text := greeting + "\n\n" + strings.Join(lines, "\n")

	var body strings.Builder
	fmt.Fprintf(&body, "<p>%s</p>\n<ul>\n", html.EscapeString(greeting))
	for _, line := range lines {
		fmt.Fprintf(&body, "<li>%s</li>\n", html.EscapeString(line))
	}
	body.WriteString("</ul>\n")

	return mailer.Message{
		ToEmail: ev.Email,
		ToName:  ev.Name,
		Subject: subject,
		Text:    text,
		HTML:    body.String(),
	}
}
