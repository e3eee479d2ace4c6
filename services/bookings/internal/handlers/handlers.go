package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	mw "github.com/diagnosis/cafe-bookings/pkg/middleware"
	"github.com/diagnosis/cafe-bookings/pkg/response"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/admin"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/form"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	bookingService service.BookingService
	board          *admin.Board
	demoRepo       repository.DemoRepository
	formOpts       form.Options
	validator      *structValidator
	submitLimiter  *mw.RateLimiter
}

func New(bookingService service.BookingService, board *admin.Board, demoRepo repository.DemoRepository, formOpts form.Options) *Handlers {
	return &Handlers{
		bookingService: bookingService,
		board:          board,
		demoRepo:       demoRepo,
		formOpts:       formOpts,
		validator:      newStructValidator(),
	}
}

// WithSubmitLimiter throttles the public submission endpoints.
func (h *Handlers) WithSubmitLimiter(rl *mw.RateLimiter) *Handlers {
	h.submitLimiter = rl
	return h
}

// Routes mounts the public booking endpoints and the admin panel API.
func (h *Handlers) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.submitLimiter != nil {
			r.Use(h.submitLimiter.Middleware)
		}
		r.Post("/reservations", h.CreateReservation)
		r.Post("/events/{eventID}/bookings", h.CreateEventBooking)
	})
	r.Post("/demo/bookings/{id}/pay", h.PayDemoBooking)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/bookings/tables", h.ListTableBookings)
		r.Get("/bookings/events", h.ListEventBookings)
		r.Delete("/demo/bookings", h.ResetDemoBookings)
		r.Patch("/reservations/{id}", h.UpdateReservationStatus)
		r.Patch("/event-bookings/{id}", h.UpdateEventBookingStatus)
		r.Get("/notifications", h.ListNotifications)
		r.Patch("/notifications/read", h.MarkAllNotificationsRead)
		r.Patch("/notifications/{id}/read", h.MarkNotificationRead)
	})
}

type submissionResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Demo   bool   `json:"demo"`
}

// writeOutcome renders a submission result. Demo fallbacks look like
// successes to the visitor.
func writeOutcome(w http.ResponseWriter, out service.Outcome) {
	switch out.Kind {
	case service.OutcomeRejected:
		response.WriteError(w, http.StatusBadRequest, out.Message, response.CodeRejected)
	default:
		response.WriteJSON(w, http.StatusCreated, submissionResponse{
			Status: string(out.Kind),
			ID:     out.BookingID,
			Demo:   out.Kind == service.OutcomeDemo,
		})
	}
}

// writeBackendError maps admin-side backend failures onto HTTP statuses.
func writeBackendError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *remote.RejectionError
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(w, "Бронирование не найдено")
	case errors.Is(err, remote.ErrBackendPaused), errors.Is(err, remote.ErrBackendUnreachable):
		logger.WarnContext(r.Context(), "Backend unavailable", "error", err)
		response.ServiceUnavailable(w, "Сервис временно недоступен")
	case errors.As(err, &rejection):
		status := rejection.Status
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		response.WriteError(w, status, rejection.Message, response.CodeRejected)
	default:
		logger.ErrorContext(r.Context(), "Backend request failed", "error", err)
		response.BadGateway(w, "Не удалось связаться с сервером бронирований")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
