package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
)

// ReservationPayload is the body of POST /reservations.
type ReservationPayload struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email,omitempty"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Guests          string `json:"guests"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

func NewReservationPayload(r domain.ReservationRequest) ReservationPayload {
	return ReservationPayload{
		Name:            r.Name,
		Phone:           r.Phone,
		Email:           r.Email,
		Date:            r.DateString(),
		Time:            r.Time,
		Guests:          r.Guests,
		SpecialRequests: r.SpecialRequests,
	}
}

// EventBookingPayload is the body of POST /event-bookings. The backend prices
// the order from its own event record.
type EventBookingPayload struct {
	EventID       string `json:"eventId"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email,omitempty"`
	Tickets       int    `json:"tickets"`
	PaymentMethod string `json:"paymentMethod"`
}

func NewEventBookingPayload(r domain.EventBookingRequest) EventBookingPayload {
	return EventBookingPayload{
		EventID:       r.EventID,
		Name:          r.Name,
		Phone:         r.Phone,
		Email:         r.Email,
		Tickets:       r.Tickets,
		PaymentMethod: string(r.PaymentMethod),
	}
}

// LooseString accepts a JSON string or number. The backend returns numeric
// IDs for some tables and string IDs for others.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = LooseString(num.String())
	return nil
}

type ReservationDTO struct {
	ID              LooseString `json:"id"`
	Name            string      `json:"name"`
	Phone           string      `json:"phone"`
	Email           string      `json:"email"`
	Date            string      `json:"date"`
	Time            string      `json:"time"`
	Guests          LooseString `json:"guests"`
	SpecialRequests string      `json:"special_requests"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       *time.Time  `json:"updated_at"`
}

func (d ReservationDTO) ToRecord() domain.BookingRecord {
	return domain.BookingRecord{
		ID:        string(d.ID),
		Type:      domain.BookingTable,
		Status:    parseStatus(string(d.ID), d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Name:      d.Name,
		Phone:     d.Phone,
		Email:     d.Email,
		TableDetails: &domain.TableDetails{
			Date:            d.Date,
			Time:            d.Time,
			GuestCount:      string(d.Guests),
			SpecialRequests: d.SpecialRequests,
		},
	}
}

type EventBookingDTO struct {
	ID            LooseString `json:"id"`
	EventID       LooseString `json:"event_id"`
	EventTitle    string      `json:"event_title"`
	Name          string      `json:"name"`
	Phone         string      `json:"phone"`
	Email         string      `json:"email"`
	Tickets       int         `json:"tickets"`
	TotalPrice    int         `json:"total_price"`
	PaymentStatus string      `json:"payment_status"`
	PaymentMethod string      `json:"payment_method"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     *time.Time  `json:"updated_at"`
}

func (d EventBookingDTO) ToRecord() domain.BookingRecord {
	payment, _ := domain.ParsePaymentStatus(d.PaymentStatus)
	return domain.BookingRecord{
		ID:        string(d.ID),
		Type:      domain.BookingEvent,
		Status:    parseStatus(string(d.ID), d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Name:      d.Name,
		Phone:     d.Phone,
		Email:     d.Email,
		EventDetails: &domain.EventDetails{
			EventID:       string(d.EventID),
			EventTitle:    d.EventTitle,
			TicketCount:   d.Tickets,
			TotalAmount:   d.TotalPrice,
			PaymentStatus: payment,
			PaymentMethod: domain.PaymentMethod(strings.ToLower(d.PaymentMethod)),
		},
	}
}

type NotificationDTO struct {
	ID        LooseString `json:"id"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	Read      bool        `json:"read"`
	BookingID LooseString `json:"booking_id"`
}

func (d NotificationDTO) ToRecord() domain.NotificationRecord {
	return domain.NotificationRecord{
		ID:        string(d.ID),
		Type:      d.Type,
		Message:   d.Message,
		CreatedAt: d.CreatedAt,
		Read:      d.Read,
		BookingID: string(d.BookingID),
	}
}

// createdReply is the 2xx body of a create call. Either key may be present,
// and an empty body is tolerated.
type createdReply struct {
	Reservation *struct {
		ID LooseString `json:"id"`
	} `json:"reservation"`
	Booking *struct {
		ID LooseString `json:"id"`
	} `json:"booking"`
	ID LooseString `json:"id"`
}

// CreatedID extracts the new record's ID from a successful create reply.
func CreatedID(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}
	var reply createdReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("failed to decode create reply: %w", err)
	}
	switch {
	case reply.Reservation != nil && reply.Reservation.ID != "":
		return string(reply.Reservation.ID), nil
	case reply.Booking != nil && reply.Booking.ID != "":
		return string(reply.Booking.ID), nil
	default:
		return string(reply.ID), nil
	}
}

func parseStatus(id, raw string) domain.BookingStatus {
	if status, ok := domain.ParseBookingStatus(strings.ToLower(raw)); ok {
		return status
	}
	logger.Warn("Unknown booking status from backend", "booking_id", id, "status", raw)
	return domain.BookingPending
}
