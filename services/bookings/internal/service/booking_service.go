package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/events"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
)

var ErrBookingNotFound = errors.New("booking not found")

type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeDemo     OutcomeKind = "demo"
	OutcomeRejected OutcomeKind = "rejected"
)

// Outcome is the result of one submission. BookingID is set for accepted and
// demo outcomes, Message only for rejections.
type Outcome struct {
	Kind      OutcomeKind
	BookingID string
	Message   string
}

func Accepted(id string) Outcome     { return Outcome{Kind: OutcomeAccepted, BookingID: id} }
func DemoFallback(id string) Outcome { return Outcome{Kind: OutcomeDemo, BookingID: id} }
func Rejected(msg string) Outcome    { return Outcome{Kind: OutcomeRejected, Message: msg} }

// Backend is the part of the hosted backend the submission flow talks to.
type Backend interface {
	CreateReservation(ctx context.Context, p remote.ReservationPayload) (remote.Reply, error)
	CreateEventBooking(ctx context.Context, p remote.EventBookingPayload) (remote.Reply, error)
	UpdateReservationStatus(ctx context.Context, id, status string) error
	UpdateEventBooking(ctx context.Context, id string, patch remote.EventBookingPatch) error
	ListNotifications(ctx context.Context) ([]remote.NotificationDTO, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

type BookingService interface {
	SubmitReservation(ctx context.Context, req domain.ReservationRequest) (Outcome, error)
	SubmitEventBooking(ctx context.Context, req domain.EventBookingRequest) (Outcome, error)
	UpdateStatus(ctx context.Context, bookingType domain.BookingType, id string, status domain.BookingStatus) error
	MarkDemoPaid(ctx context.Context, id string) error
	ListNotifications(ctx context.Context) ([]domain.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

type bookingService struct {
	backend  Backend
	demoRepo repository.DemoRepository
	eventBus events.Publisher
	now      func() time.Time
	seq      atomic.Uint64
}

func NewBookingService(backend Backend, demoRepo repository.DemoRepository, eventBus events.Publisher) BookingService {
	return &bookingService{
		backend:  backend,
		demoRepo: demoRepo,
		eventBus: eventBus,
		now:      time.Now,
	}
}

func (s *bookingService) SubmitReservation(ctx context.Context, req domain.ReservationRequest) (Outcome, error) {
	reply, err := s.backend.CreateReservation(ctx, remote.NewReservationPayload(req))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to submit reservation: %w", err)
	}

	return s.settle(ctx, reply, func(id string, now time.Time) domain.BookingRecord {
		return domain.BookingRecord{
			ID:        id,
			Type:      domain.BookingTable,
			Status:    domain.BookingPending,
			CreatedAt: now,
			Name:      req.Name,
			Phone:     req.Phone,
			Email:     req.Email,
			TableDetails: &domain.TableDetails{
				Date:            req.DateString(),
				Time:            req.Time,
				GuestCount:      req.Guests,
				SpecialRequests: req.SpecialRequests,
			},
		}
	})
}

func (s *bookingService) SubmitEventBooking(ctx context.Context, req domain.EventBookingRequest) (Outcome, error) {
	reply, err := s.backend.CreateEventBooking(ctx, remote.NewEventBookingPayload(req))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to submit event booking: %w", err)
	}

	return s.settle(ctx, reply, func(id string, now time.Time) domain.BookingRecord {
		total := req.TotalAmount()
		return domain.BookingRecord{
			ID:        id,
			Type:      domain.BookingEvent,
			Status:    domain.BookingPending,
			CreatedAt: now,
			Name:      req.Name,
			Phone:     req.Phone,
			Email:     req.Email,
			EventDetails: &domain.EventDetails{
				EventID:       req.EventID,
				EventTitle:    req.EventTitle,
				TicketCount:   req.Tickets,
				TotalAmount:   total,
				PaymentStatus: domain.InitialPaymentStatus(total, req.PaymentMethod),
				PaymentMethod: req.PaymentMethod,
			},
		}
	})
}

// settle turns an interpreted reply into an Outcome. Paused and unreachable
// backends fall back to a locally stored demo record built by synth.
func (s *bookingService) settle(ctx context.Context, reply remote.Reply, synth func(id string, now time.Time) domain.BookingRecord) (Outcome, error) {
	switch reply.Verdict {
	case remote.VerdictPaused, remote.VerdictUnreachable:
		logger.WarnContext(ctx, "Backend unavailable, storing demo booking",
			"verdict", reply.Verdict.String(), "status", reply.Status, "detail", reply.Message)

		now := s.now()
		record := synth(s.nextDemoID(now), now)
		s.demoRepo.Append(ctx, record)
		s.publish(ctx, events.BookingDemoFallback, record)
		return DemoFallback(record.ID), nil

	case remote.VerdictRejected:
		logger.InfoContext(ctx, "Booking rejected by backend", "status", reply.Status, "message", reply.Message)
		return Rejected(reply.Message), nil

	default:
		id, err := remote.CreatedID(reply.Body)
		if err != nil {
			return Outcome{}, fmt.Errorf("backend accepted booking with unreadable reply: %w", err)
		}
		record := synth(id, s.now())
		s.publish(ctx, events.BookingCreated, record)
		return Accepted(id), nil
	}
}

// nextDemoID is unique within the process even for two calls in the same
// millisecond.
func (s *bookingService) nextDemoID(now time.Time) string {
	return fmt.Sprintf("%s%d-%d", domain.DemoIDPrefix, now.UnixMilli(), s.seq.Add(1))
}

func (s *bookingService) publish(ctx context.Context, subject string, b domain.BookingRecord) {
	event := events.BookingEvent{
		BookingID: b.ID,
		Type:      string(b.Type),
		Demo:      b.IsDemo(),
		Name:      b.Name,
		Phone:     b.Phone,
		Email:     b.Email,
		CreatedAt: b.CreatedAt,
	}
	if b.TableDetails != nil {
		event.Date = b.Date
		event.Time = b.Time
		event.Guests = b.GuestCount
	}
	if b.EventDetails != nil {
		event.EventTitle = b.EventTitle
		event.Tickets = b.TicketCount
		event.TotalAmount = b.TotalAmount
		event.PaymentStatus = string(b.EffectivePaymentStatus())
	}

	if err := s.eventBus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking event", "error", err, "subject", subject, "booking_id", b.ID)
	}
}

// UpdateStatus routes demo records to the local store and everything else to
// the backend.
func (s *bookingService) UpdateStatus(ctx context.Context, bookingType domain.BookingType, id string, status domain.BookingStatus) error {
	if domain.IsDemoID(id) {
		if !s.demoRepo.UpdateStatus(ctx, id, status) {
			return ErrBookingNotFound
		}
	} else {
		var err error
		switch bookingType {
		case domain.BookingTable:
			err = s.backend.UpdateReservationStatus(ctx, id, string(status))
		case domain.BookingEvent:
			err = s.backend.UpdateEventBooking(ctx, id, remote.EventBookingPatch{Status: string(status)})
		default:
			return domain.ErrUnknownType
		}
		if err != nil {
			return fmt.Errorf("failed to update booking %s: %w", id, err)
		}
	}

	change := events.BookingStatusChangedEvent{
		BookingID: id,
		Type:      string(bookingType),
		Status:    string(status),
		ChangedAt: s.now(),
	}
	if err := s.eventBus.Publish(ctx, events.BookingStatusChanged, change); err != nil {
		logger.ErrorContext(ctx, "Failed to publish status change", "error", err, "booking_id", id)
	}
	return nil
}

// MarkDemoPaid completes the simulated card payment of a demo event booking.
func (s *bookingService) MarkDemoPaid(ctx context.Context, id string) error {
	if !domain.IsDemoID(id) {
		return ErrBookingNotFound
	}
	record, ok := s.demoRepo.Get(ctx, id)
	if !ok || record.Type != domain.BookingEvent {
		return ErrBookingNotFound
	}
	if !s.demoRepo.MarkPaid(ctx, id) {
		return ErrBookingNotFound
	}
	logger.InfoContext(ctx, "Demo booking marked paid", "booking_id", id)
	return nil
}

func (s *bookingService) ListNotifications(ctx context.Context) ([]domain.NotificationRecord, error) {
	dtos, err := s.backend.ListNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]domain.NotificationRecord, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ToRecord())
	}
	return out, nil
}

func (s *bookingService) MarkNotificationRead(ctx context.Context, id string) error {
	if err := s.backend.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead patches every unread notification and reports how
// many were changed. Already read notifications are not touched.
func (s *bookingService) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	notifications, err := s.ListNotifications(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range notifications {
		if !notifications[i].MarkRead() {
			continue
		}
		if err := s.MarkNotificationRead(ctx, notifications[i].ID); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}
