package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/cafe-bookings/internal/utils"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/pkg/response"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/form"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
)

// CreateReservation validates the table form and submits it.
func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var draft form.Draft
	if err := decodeJSON(r, &draft); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	f := form.New(h.formOpts)
	f.Fill(draft)
	if !f.Validate() {
		fields := make(map[string]string)
		for field, msg := range f.Errors() {
			fields[string(field)] = msg
		}
		response.WriteValidation(w, fields)
		return
	}

	req, err := f.Request()
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	out, err := h.bookingService.SubmitReservation(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "Reservation submission failed", "error", err)
		response.BadGateway(w, "Не удалось отправить заявку. Попробуйте позже или позвоните нам")
		return
	}

	writeOutcome(w, out)
}

// CreateEventBooking books tickets for the event in the path.
func (h *Handlers) CreateEventBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.EventBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	req.EventID = chi.URLParam(r, "eventID")
	req.Name = utils.NormalizeString(req.Name)
	req.Phone = utils.NormalizePhone(req.Phone)
	req.Email = utils.NormalizeEmail(req.Email)
	if method, ok := domain.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod)))); ok {
		req.PaymentMethod = method
	}

	fields, err := h.validator.Validate(req)
	if err != nil {
		response.InternalError(w, "Failed to validate request")
		return
	}
	if len(fields) > 0 {
		response.WriteValidation(w, fields)
		return
	}

	out, err := h.bookingService.SubmitEventBooking(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "Event booking submission failed", "error", err, "event_id", req.EventID)
		response.BadGateway(w, "Не удалось отправить заявку. Попробуйте позже или позвоните нам")
		return
	}

	writeOutcome(w, out)
}

// PayDemoBooking completes the simulated card payment of a demo event booking.
func (h *Handlers) PayDemoBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.bookingService.MarkDemoPaid(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrBookingNotFound) {
			response.NotFound(w, "Бронирование не найдено")
			return
		}
		response.InternalError(w, "Failed to record payment")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"id":            id,
		"status":        string(domain.BookingConfirmed),
		"paymentStatus": string(domain.PaymentPaid),
	})
}
