package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/events"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    any
}

type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) Publish(_ context.Context, subject string, data any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{subject: subject, data: data})
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.subject)
	}
	return out
}

type failingDoer struct{ msg string }

func (d failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New(d.msg)
}

// unreadableBody fails the test if the paused response body is parsed.
type unreadableBody struct {
	t *testing.T
}

func (p unreadableBody) Read([]byte) (int, error) {
	p.t.Error("paused response body must not be read")
	return 0, errors.New("read")
}

func (p unreadableBody) Close() error { return nil }

type pausedDoer struct{ t *testing.T }

func (d pausedDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: 540, Body: unreadableBody{t: d.t}, Header: http.Header{}}, nil
}

var fixedNow = time.Date(2026, 10, 19, 15, 10, 0, 0, time.UTC)

type fixture struct {
	svc  *bookingService
	demo repository.DemoRepository
	bus  *recordingBus
}

func newFixture(t *testing.T, baseURL string, opts ...remote.Option) fixture {
	t.Helper()
	client := remote.NewClient(config.BackendConfig{
		BaseURL:      baseURL,
		AnonKey:      "anon",
		PausedStatus: 540,
		Timeout:      2 * time.Second,
	}, opts...)
	demo := repository.NewDemoRepository(repository.NewMemoryKV(), "cafe_demo_bookings")
	bus := &recordingBus{}
	svc := NewBookingService(client, demo, bus).(*bookingService)
	svc.now = func() time.Time { return fixedNow }
	return fixture{svc: svc, demo: demo, bus: bus}
}

func backendAnswering(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reservation() domain.ReservationRequest {
	return domain.ReservationRequest{
		Name:   "Анна",
		Phone:  "+7 (999) 123-45-67",
		Email:  "anna@example.ru",
		Date:   time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
		Time:   "19:00",
		Guests: "2",
	}
}

func eventBooking(price int, method domain.PaymentMethod) domain.EventBookingRequest {
	return domain.EventBookingRequest{
		EventID:       "jazz-night",
		EventTitle:    "Джазовый вечер",
		Price:         price,
		Name:          "Иван",
		Phone:         "+7 (999) 000-00-00",
		Tickets:       2,
		PaymentMethod: method,
	}
}

func TestFailedToFetchFallsBackToDemo(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "TypeError: Failed to fetch"}))
	ctx := context.Background()

	out, err := f.svc.SubmitReservation(ctx, reservation())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDemo, out.Kind)
	assert.True(t, strings.HasPrefix(out.BookingID, "demo-"))

	all := f.demo.ReadAll(ctx)
	require.Len(t, all, 1)
	rec := all[0]
	assert.Equal(t, out.BookingID, rec.ID)
	assert.Equal(t, domain.BookingPending, rec.Status)
	assert.Equal(t, domain.BookingTable, rec.Type)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))
	assert.Equal(t, "2026-10-20", rec.Date)
	assert.Equal(t, "2", rec.GuestCount)
	require.NoError(t, rec.Validate())

	assert.Equal(t, []string{events.BookingDemoFallback}, f.bus.subjects())
}

func TestPausedStatusFallsBackWithoutParsingBody(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(pausedDoer{t: t}))

	out, err := f.svc.SubmitEventBooking(context.Background(), eventBooking(1500, domain.PaymentCard))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDemo, out.Kind)
	assert.Len(t, f.demo.ReadAll(context.Background()), 1)
}

func TestPausedTextFallsBack(t *testing.T) {
	srv := backendAnswering(t, http.StatusServiceUnavailable, `{"message":"Project paused"}`)
	f := newFixture(t, srv.URL)

	out, err := f.svc.SubmitReservation(context.Background(), reservation())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDemo, out.Kind)
}

func TestRejectionLeavesStoreUntouched(t *testing.T) {
	srv := backendAnswering(t, http.StatusBadRequest, `{"error":"Заполните все обязательные поля"}`)
	f := newFixture(t, srv.URL)

	out, err := f.svc.SubmitReservation(context.Background(), reservation())

	require.NoError(t, err)
	assert.Equal(t, Rejected("Заполните все обязательные поля"), out)
	assert.Empty(t, f.demo.ReadAll(context.Background()))
	assert.Empty(t, f.bus.subjects())
}

func TestAcceptedReturnsRemoteID(t *testing.T) {
	srv := backendAnswering(t, http.StatusCreated, `{"reservation":{"id":"r-77"}}`)
	f := newFixture(t, srv.URL)

	out, err := f.svc.SubmitReservation(context.Background(), reservation())

	require.NoError(t, err)
	assert.Equal(t, Accepted("r-77"), out)
	assert.Empty(t, f.demo.ReadAll(context.Background()))
	assert.Equal(t, []string{events.BookingCreated}, f.bus.subjects())
}

func TestAcceptedToleratesEmptyBody(t *testing.T) {
	srv := backendAnswering(t, http.StatusNoContent, ``)
	f := newFixture(t, srv.URL)

	out, err := f.svc.SubmitEventBooking(context.Background(), eventBooking(0, domain.PaymentCash))

	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, out.Kind)
	assert.Empty(t, out.BookingID)
}

func TestMalformedSuccessBodyIsHardError(t *testing.T) {
	srv := backendAnswering(t, http.StatusCreated, `<html>ok</html>`)
	f := newFixture(t, srv.URL)

	out, err := f.svc.SubmitReservation(context.Background(), reservation())

	require.Error(t, err)
	assert.Equal(t, Outcome{}, out)
	assert.Empty(t, f.demo.ReadAll(context.Background()))
	assert.Empty(t, f.bus.subjects())
}

func TestUnknownTransportErrorIsHardError(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "x509: certificate signed by unknown authority"}))

	_, err := f.svc.SubmitReservation(context.Background(), reservation())

	assert.Error(t, err)
	assert.Empty(t, f.demo.ReadAll(context.Background()))
}

func TestDemoEventPaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		price  int
		method domain.PaymentMethod
		want   domain.PaymentStatus
	}{
		{"free", 0, domain.PaymentCard, domain.PaymentPaid},
		{"card", 1500, domain.PaymentCard, domain.PaymentRequiresPayment},
		{"cash", 1500, domain.PaymentCash, domain.PaymentPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "Load failed"}))

			_, err := f.svc.SubmitEventBooking(context.Background(), eventBooking(tt.price, tt.method))
			require.NoError(t, err)

			all := f.demo.ReadAll(context.Background())
			require.Len(t, all, 1)
			assert.Equal(t, tt.want, all[0].PaymentStatus)
			assert.Equal(t, tt.price*2, all[0].TotalAmount)
		})
	}
}

func TestDemoIDsUniqueWithinSameMillisecond(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "Failed to fetch"}))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		out, err := f.svc.SubmitReservation(context.Background(), reservation())
		require.NoError(t, err)
		assert.False(t, seen[out.BookingID], "duplicate id %s", out.BookingID)
		seen[out.BookingID] = true
	}
	assert.Len(t, f.demo.ReadAll(context.Background()), 50)
}

func TestStorageFailureStillReportsDemo(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "Failed to fetch"}))
	f.svc.demoRepo = repository.NewDemoRepository(unwritableKV{}, "k")

	out, err := f.svc.SubmitReservation(context.Background(), reservation())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDemo, out.Kind)
	assert.Empty(t, f.svc.demoRepo.ReadAll(context.Background()))
}

type unwritableKV struct{}

func (unwritableKV) Get(context.Context, string) (string, error) { return "", repository.ErrNotFound }

func (unwritableKV) Set(context.Context, string, string) error { return errors.New("quota exceeded") }

func (unwritableKV) Delete(context.Context, string) error { return nil }

func TestUpdateStatusRoutesDemoIDsLocally(t *testing.T) {
	var remoteCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	f.demo.Append(ctx, domain.BookingRecord{
		ID: "demo-1-1", Type: domain.BookingTable, Status: domain.BookingPending,
		TableDetails: &domain.TableDetails{Date: "2026-10-20", Time: "19:00", GuestCount: "2"},
	})

	require.NoError(t, f.svc.UpdateStatus(ctx, domain.BookingTable, "demo-1-1", domain.BookingConfirmed))
	assert.Equal(t, int32(0), remoteCalls.Load())
	got, ok := f.demo.Get(ctx, "demo-1-1")
	require.True(t, ok)
	assert.Equal(t, domain.BookingConfirmed, got.Status)

	require.NoError(t, f.svc.UpdateStatus(ctx, domain.BookingEvent, "42", domain.BookingCancelled))
	assert.Equal(t, int32(1), remoteCalls.Load())

	assert.ErrorIs(t, f.svc.UpdateStatus(ctx, domain.BookingTable, "demo-missing", domain.BookingConfirmed), ErrBookingNotFound)
	assert.Equal(t, []string{events.BookingStatusChanged, events.BookingStatusChanged}, f.bus.subjects())
}

func TestUpdateStatusSurfacesPausedBackend(t *testing.T) {
	srv := backendAnswering(t, 540, ``)
	f := newFixture(t, srv.URL)

	err := f.svc.UpdateStatus(context.Background(), domain.BookingTable, "7", domain.BookingConfirmed)

	assert.ErrorIs(t, err, remote.ErrBackendPaused)
}

func TestMarkDemoPaid(t *testing.T) {
	f := newFixture(t, "http://backend.invalid", remote.WithDoer(failingDoer{msg: "Failed to fetch"}))
	ctx := context.Background()

	out, err := f.svc.SubmitEventBooking(ctx, eventBooking(1500, domain.PaymentCard))
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkDemoPaid(ctx, out.BookingID))
	got, ok := f.demo.Get(ctx, out.BookingID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, domain.BookingConfirmed, got.Status)

	assert.ErrorIs(t, f.svc.MarkDemoPaid(ctx, "42"), ErrBookingNotFound)
	assert.ErrorIs(t, f.svc.MarkDemoPaid(ctx, "demo-0-0"), ErrBookingNotFound)
}
