// Package admin derives the back-office booking views: per-status and
// per-payment counters and the filtered lists they describe.
package admin

import (
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
)

// FilterAll imposes no constraint on its axis.
const FilterAll = "all"

type StatusCounts struct {
	All       int `json:"all"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// Get returns the counter shown for a status filter value.
func (c StatusCounts) Get(filter string) int {
	switch domain.BookingStatus(filter) {
	case domain.BookingPending:
		return c.Pending
	case domain.BookingConfirmed:
		return c.Confirmed
	case domain.BookingCompleted:
		return c.Completed
	case domain.BookingCancelled:
		return c.Cancelled
	default:
		return c.All
	}
}

type PaymentCounts struct {
	All             int `json:"all"`
	Paid            int `json:"paid"`
	Pending         int `json:"pending"`
	RequiresPayment int `json:"requiresPayment"`
}

func (c PaymentCounts) Get(filter string) int {
	switch domain.PaymentStatus(filter) {
	case domain.PaymentPaid:
		return c.Paid
	case domain.PaymentPending:
		return c.Pending
	case domain.PaymentRequiresPayment:
		return c.RequiresPayment
	default:
		return c.All
	}
}

// Partition splits records into table reservations and event bookings,
// keeping their order.
func Partition(records []domain.BookingRecord) (tables, eventBookings []domain.BookingRecord) {
	tables = []domain.BookingRecord{}
	eventBookings = []domain.BookingRecord{}
	for _, r := range records {
		switch r.Type {
		case domain.BookingTable:
			tables = append(tables, r)
		case domain.BookingEvent:
			eventBookings = append(eventBookings, r)
		}
	}
	return tables, eventBookings
}

func countStatuses(records []domain.BookingRecord) StatusCounts {
	var c StatusCounts
	for _, r := range records {
		switch r.Status {
		case domain.BookingPending:
			c.Pending++
		case domain.BookingConfirmed:
			c.Confirmed++
		case domain.BookingCompleted:
			c.Completed++
		case domain.BookingCancelled:
			c.Cancelled++
		default:
			continue
		}
		c.All++
	}
	return c
}

// CountTables tallies reservations by status. All is always the sum of the
// four status counters.
func CountTables(records []domain.BookingRecord) StatusCounts {
	return countStatuses(records)
}

// FilterTables keeps the records with the given status. "all", "" or an
// unknown value keeps every countable record.
func FilterTables(records []domain.BookingRecord, status string) []domain.BookingRecord {
	status = statusFilter(status)
	out := []domain.BookingRecord{}
	for _, r := range records {
		if countable(r) && matchesStatus(r, status) {
			out = append(out, r)
		}
	}
	return out
}

// EventView is the event-bookings panel for one filter combination.
type EventView struct {
	StatusFilter  string                 `json:"statusFilter"`
	PaymentFilter string                 `json:"paymentFilter"`
	StatusCounts  StatusCounts           `json:"statusCounts"`
	PaymentCounts PaymentCounts          `json:"paymentCounts"`
	Bookings      []domain.BookingRecord `json:"bookings"`
}

// BuildEventView counts each axis over the records that pass the other axis's
// filter, so both counter panels agree with the rendered list.
func BuildEventView(records []domain.BookingRecord, status, payment string) EventView {
	view := EventView{
		StatusFilter:  statusFilter(status),
		PaymentFilter: paymentFilter(payment),
		Bookings:      []domain.BookingRecord{},
	}

	var byPayment []domain.BookingRecord
	for _, r := range records {
		if !countable(r) {
			continue
		}
		if matchesPayment(r, view.PaymentFilter) {
			byPayment = append(byPayment, r)
		}
		if !matchesStatus(r, view.StatusFilter) {
			continue
		}
		view.PaymentCounts.All++
		switch r.EffectivePaymentStatus() {
		case domain.PaymentPaid:
			view.PaymentCounts.Paid++
		case domain.PaymentPending:
			view.PaymentCounts.Pending++
		case domain.PaymentRequiresPayment:
			view.PaymentCounts.RequiresPayment++
		}
	}
	view.StatusCounts = countStatuses(byPayment)

	for _, r := range byPayment {
		if matchesStatus(r, view.StatusFilter) {
			view.Bookings = append(view.Bookings, r)
		}
	}
	return view
}

// ActiveCount is the counter shown for the selected filter combination. It
// always equals len(v.Bookings).
func (v EventView) ActiveCount() int {
	return v.StatusCounts.Get(v.StatusFilter)
}

// countable drops records whose status or payment status no counter covers,
// so they cannot appear in a list without being counted.
func countable(r domain.BookingRecord) bool {
	if _, ok := domain.ParseBookingStatus(string(r.Status)); !ok {
		return false
	}
	_, ok := domain.ParsePaymentStatus(string(r.EffectivePaymentStatus()))
	return ok
}

func matchesStatus(r domain.BookingRecord, filter string) bool {
	return filter == FilterAll || string(r.Status) == filter
}

func matchesPayment(r domain.BookingRecord, filter string) bool {
	return filter == FilterAll || string(r.EffectivePaymentStatus()) == filter
}

func statusFilter(f string) string {
	if s, ok := domain.ParseBookingStatus(f); ok {
		return string(s)
	}
	return FilterAll
}

func paymentFilter(f string) string {
	if p, ok := domain.ParsePaymentStatus(f); ok {
		return string(p)
	}
	return FilterAll
}
