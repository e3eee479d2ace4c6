package domain

import "time"

// ReservationRequest is a validated table reservation draft.
type ReservationRequest struct {
	Name            string
	Phone           string
	Email           string
	Date            time.Time
	Time            string
	Guests          string
	SpecialRequests string
}

// DateString renders the reservation date the way the backend stores it.
func (r ReservationRequest) DateString() string {
	return r.Date.Format(DateLayout)
}

const DateLayout = "2006-01-02"

// EventBookingRequest is a ticket order for a listed event. Price is per ticket.
type EventBookingRequest struct {
	EventID       string        `json:"eventId" validate:"required"`
	EventTitle    string        `json:"eventTitle" validate:"required"`
	Price         int           `json:"price" validate:"gte=0"`
	Name          string        `json:"name" validate:"required,min=2"`
	Phone         string        `json:"phone" validate:"required,phone"`
	Email         string        `json:"email" validate:"omitempty,email"`
	Tickets       int           `json:"tickets" validate:"required,min=1,max=20"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=card cash"`
}

func (r EventBookingRequest) TotalAmount() int {
	return r.Price * r.Tickets
}

// StatusPatch is the admin payload for a status change.
type StatusPatch struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed completed cancelled"`
}
