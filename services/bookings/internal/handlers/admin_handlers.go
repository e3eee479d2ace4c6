package handlers

import (
	"net/http"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/pkg/response"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/admin"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/go-chi/chi/v5"
)

type tableBookingsResponse struct {
	Filter   string                 `json:"filter"`
	Counts   admin.StatusCounts     `json:"counts"`
	Bookings []domain.BookingRecord `json:"bookings"`
	Degraded bool                   `json:"degraded"`
	LoadedAt time.Time              `json:"loadedAt"`
}

type eventBookingsResponse struct {
	admin.EventView
	ActiveCount int       `json:"activeCount"`
	Degraded    bool      `json:"degraded"`
	LoadedAt    time.Time `json:"loadedAt"`
}

// ListTableBookings refreshes the board and returns reservations with their
// status counters.
func (h *Handlers) ListTableBookings(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if !validFilter(status, domain.ParseBookingStatus) {
		response.BadRequest(w, "Invalid status parameter")
		return
	}

	snap, err := h.board.Load(r.Context())
	if err != nil {
		writeBackendError(w, r, err)
		return
	}

	tables, _ := admin.Partition(snap.Records)
	filtered := admin.FilterTables(tables, status)
	filter := admin.FilterAll
	if status != "" {
		filter = status
	}

	response.WriteJSON(w, http.StatusOK, tableBookingsResponse{
		Filter:   filter,
		Counts:   admin.CountTables(tables),
		Bookings: filtered,
		Degraded: snap.Degraded,
		LoadedAt: snap.LoadedAt,
	})
}

// ListEventBookings refreshes the board and returns event bookings filtered on
// both axes.
func (h *Handlers) ListEventBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, payment := q.Get("status"), q.Get("payment")
	if !validFilter(status, domain.ParseBookingStatus) {
		response.BadRequest(w, "Invalid status parameter")
		return
	}
	if !validFilter(payment, domain.ParsePaymentStatus) {
		response.BadRequest(w, "Invalid payment parameter")
		return
	}

	snap, err := h.board.Load(r.Context())
	if err != nil {
		writeBackendError(w, r, err)
		return
	}

	_, events := admin.Partition(snap.Records)
	view := admin.BuildEventView(events, status, payment)

	response.WriteJSON(w, http.StatusOK, eventBookingsResponse{
		EventView:   view,
		ActiveCount: view.ActiveCount(),
		Degraded:    snap.Degraded,
		LoadedAt:    snap.LoadedAt,
	})
}

// ResetDemoBookings clears the demo store and the cached board.
func (h *Handlers) ResetDemoBookings(w http.ResponseWriter, r *http.Request) {
	h.demoRepo.Reset(r.Context())
	h.board.Reset()
	logger.InfoContext(r.Context(), "Demo bookings reset")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, domain.BookingTable)
}

func (h *Handlers) UpdateEventBookingStatus(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, domain.BookingEvent)
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request, bookingType domain.BookingType) {
	id := chi.URLParam(r, "id")

	var patch domain.StatusPatch
	if err := decodeJSON(r, &patch); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	fields, err := h.validator.Validate(patch)
	if err != nil {
		response.InternalError(w, "Failed to validate request")
		return
	}
	if len(fields) > 0 {
		response.WriteValidation(w, fields)
		return
	}

	status := domain.BookingStatus(patch.Status)
	if err := h.bookingService.UpdateStatus(r.Context(), bookingType, id, status); err != nil {
		writeBackendError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.bookingService.ListNotifications(r.Context())
	if err != nil {
		writeBackendError(w, r, err)
		return
	}

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unread":        unread,
	})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.bookingService.MarkNotificationRead(r.Context(), id); err != nil {
		writeBackendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.bookingService.MarkAllNotificationsRead(r.Context())
	if err != nil {
		writeBackendError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// validFilter accepts "", "all" or a value parse understands.
func validFilter[T any](raw string, parse func(string) (T, bool)) bool {
	if raw == "" || raw == admin.FilterAll {
		return true
	}
	_, ok := parse(raw)
	return ok
}
