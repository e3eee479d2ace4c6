package domain

import (
	"errors"
	"strings"
	"time"
)

type BookingType string

const (
	BookingTable BookingType = "table"
	BookingEvent BookingType = "event"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// BookingStatuses lists every lifecycle state in display order.
var BookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentPaid            PaymentStatus = "paid"
	PaymentPending         PaymentStatus = "pending"
	PaymentRequiresPayment PaymentStatus = "requires_payment"
)

var PaymentStatuses = []PaymentStatus{PaymentPaid, PaymentPending, PaymentRequiresPayment}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentPaid, PaymentPending, PaymentRequiresPayment:
		return PaymentStatus(s), true
	default:
		return "", false
	}
}

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCard, PaymentCash:
		return PaymentMethod(s), true
	default:
		return "", false
	}
}

// DemoIDPrefix marks records synthesized locally while the backend was unavailable.
const DemoIDPrefix = "demo-"

type TableDetails struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	GuestCount      string `json:"guestCount"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

type EventDetails struct {
	EventID       string        `json:"eventId"`
	EventTitle    string        `json:"eventTitle"`
	TicketCount   int           `json:"ticketCount"`
	TotalAmount   int           `json:"totalAmount"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// BookingRecord is a reservation or event booking, remote or demo. Exactly one
// of the detail groups is set and it matches Type.
type BookingRecord struct {
	ID        string        `json:"id"`
	Type      BookingType   `json:"type"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone"`
	Email     string        `json:"email,omitempty"`

	*TableDetails
	*EventDetails
}

var (
	ErrDetailsMismatch = errors.New("booking details do not match booking type")
	ErrUnknownType     = errors.New("unknown booking type")
)

// Validate checks that exactly the detail block matching Type is set.
func (b *BookingRecord) Validate() error {
	switch b.Type {
	case BookingTable:
		if b.TableDetails == nil || b.EventDetails != nil {
			return ErrDetailsMismatch
		}
	case BookingEvent:
		if b.EventDetails == nil || b.TableDetails != nil {
			return ErrDetailsMismatch
		}
	default:
		return ErrUnknownType
	}
	if _, ok := ParseBookingStatus(string(b.Status)); !ok {
		return errors.New("invalid booking status")
	}
	return nil
}

func (b *BookingRecord) IsDemo() bool {
	return IsDemoID(b.ID)
}

func IsDemoID(id string) bool {
	return strings.HasPrefix(id, DemoIDPrefix)
}

// EffectivePaymentStatus treats an unset payment status as requires_payment.
// The record itself is left untouched.
func (b *BookingRecord) EffectivePaymentStatus() PaymentStatus {
	if b.EventDetails == nil || b.EventDetails.PaymentStatus == "" {
		return PaymentRequiresPayment
	}
	return b.EventDetails.PaymentStatus
}

// SetStatus moves the record to status and stamps UpdatedAt.
func (b *BookingRecord) SetStatus(status BookingStatus, now time.Time) {
	b.Status = status
	b.UpdatedAt = &now
}

// MarkPaid settles an event booking and confirms it.
func (b *BookingRecord) MarkPaid(now time.Time) {
	if b.EventDetails != nil {
		b.EventDetails.PaymentStatus = PaymentPaid
	}
	b.SetStatus(BookingConfirmed, now)
}

// Clone returns a deep copy so callers can hand records out without sharing
// the detail pointers.
func (b BookingRecord) Clone() BookingRecord {
	if b.UpdatedAt != nil {
		t := *b.UpdatedAt
		b.UpdatedAt = &t
	}
	if b.TableDetails != nil {
		d := *b.TableDetails
		b.TableDetails = &d
	}
	if b.EventDetails != nil {
		d := *b.EventDetails
		b.EventDetails = &d
	}
	return b
}

// InitialPaymentStatus decides how a new event booking starts out: free events
// are paid, card bookings wait for online payment, cash is settled on arrival.
func InitialPaymentStatus(totalAmount int, method PaymentMethod) PaymentStatus {
	switch {
	case totalAmount == 0:
		return PaymentPaid
	case method == PaymentCard:
		return PaymentRequiresPayment
	default:
		return PaymentPending
	}
}
