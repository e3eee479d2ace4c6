package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/events"
	mw "github.com/diagnosis/cafe-bookings/pkg/middleware"
	"github.com/diagnosis/cafe-bookings/pkg/response"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/admin"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/form"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/remote"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/repository"
	"github.com/diagnosis/cafe-bookings/services/bookings/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 15, 10, 0, 0, time.UTC)

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("TypeError: Failed to fetch")
}

type testServer struct {
	router http.Handler
	demo   repository.DemoRepository
}

func newTestServer(t *testing.T, backend http.Handler, limiter ...*mw.RateLimiter) testServer {
	t.Helper()

	cfg := config.BackendConfig{AnonKey: "anon", PausedStatus: 540, Timeout: 2 * time.Second}
	var opts []remote.Option
	if backend == nil {
		cfg.BaseURL = "http://backend.invalid"
		opts = append(opts, remote.WithDoer(failingDoer{}))
	} else {
		srv := httptest.NewServer(backend)
		t.Cleanup(srv.Close)
		cfg.BaseURL = srv.URL
	}
	client := remote.NewClient(cfg, opts...)

	demo := repository.NewDemoRepository(repository.NewMemoryKV(), "cafe_demo_bookings")
	svc := service.NewBookingService(client, demo, events.NopBus{})
	board := admin.NewBoard(client, demo, 100)

	formOpts := form.DefaultOptions()
	formOpts.Location = time.UTC
	formOpts.Now = func() time.Time { return fixedNow }

	h := New(svc, board, demo, formOpts)
	if len(limiter) > 0 {
		h.WithSubmitLimiter(limiter[0])
	}

	r := chi.NewRouter()
	r.Route("/v1", h.Routes)
	return testServer{router: r, demo: demo}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func validReservation() map[string]string {
	return map[string]string{
		"name":   "Анна",
		"phone":  "8 999 123 45 67",
		"email":  "anna@example.ru",
		"date":   "2026-10-20",
		"time":   "19:00",
		"guests": "2",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateReservationValidation(t *testing.T) {
	s := newTestServer(t, nil)
	body := validReservation()
	body["name"] = "А"
	body["phone"] = "999"

	rec := s.do(t, http.MethodPost, "/v1/reservations", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	got := decode[response.ErrorResponse](t, rec)
	assert.Equal(t, response.CodeValidation, got.Code)
	assert.Equal(t, map[string]string{"name": form.MsgName, "phone": form.MsgPhone}, got.Fields)
	assert.Empty(t, s.demo.ReadAll(context.Background()))
}

func TestCreateReservationFallsBackToDemo(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/reservations", validReservation())

	require.Equal(t, http.StatusCreated, rec.Code)
	got := decode[submissionResponse](t, rec)
	assert.True(t, got.Demo)
	assert.Equal(t, "demo", got.Status)

	all := s.demo.ReadAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "+7 (999) 123-45-67", all[0].Phone)
}

func TestCreateReservationRejected(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Заполните все обязательные поля"}`))
	}))

	rec := s.do(t, http.MethodPost, "/v1/reservations", validReservation())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode[response.ErrorResponse](t, rec)
	assert.Equal(t, "Заполните все обязательные поля", got.Error)
	assert.Equal(t, response.CodeRejected, got.Code)
	assert.Empty(t, s.demo.ReadAll(context.Background()))
}

func TestCreateReservationAccepted(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reservation":{"id":"r-1"}}`))
	}))

	rec := s.do(t, http.MethodPost, "/v1/reservations", validReservation())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, submissionResponse{Status: "accepted", ID: "r-1"}, decode[submissionResponse](t, rec))
}

func TestCreateEventBookingValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/events/jazz/bookings", map[string]any{
		"eventTitle":    "Джаз",
		"price":         1500,
		"name":          "Иван",
		"phone":         "12",
		"tickets":       0,
		"paymentMethod": "crypto",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	got := decode[response.ErrorResponse](t, rec)
	assert.Contains(t, got.Fields, "phone")
	assert.Contains(t, got.Fields, "tickets")
	assert.Contains(t, got.Fields, "paymentMethod")
	assert.NotContains(t, got.Fields, "eventId")
}

func TestEventDemoBookingPayAndAdminView(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/events/jazz/bookings", map[string]any{
		"eventTitle":    "Джазовый вечер",
		"price":         1500,
		"name":          "Иван",
		"phone":         "9990000000",
		"tickets":       2,
		"paymentMethod": "card",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[submissionResponse](t, rec)
	require.True(t, created.Demo)

	view := decode[eventBookingsResponse](t, s.do(t, http.MethodGet, "/v1/admin/bookings/events?payment=requires_payment", nil))
	assert.True(t, view.Degraded)
	assert.Equal(t, 1, view.ActiveCount)
	require.Len(t, view.Bookings, 1)
	assert.Equal(t, 3000, view.Bookings[0].TotalAmount)

	rec = s.do(t, http.MethodPost, "/v1/demo/bookings/"+created.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view = decode[eventBookingsResponse](t, s.do(t, http.MethodGet, "/v1/admin/bookings/events?status=confirmed&payment=paid", nil))
	assert.Equal(t, 1, view.ActiveCount)
	assert.Len(t, view.Bookings, 1)

	rec = s.do(t, http.MethodPost, "/v1/demo/bookings/demo-404-1/pay", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminTablesFilterAndStatusPatch(t *testing.T) {
	s := newTestServer(t, nil)

	first := decode[submissionResponse](t, s.do(t, http.MethodPost, "/v1/reservations", validReservation()))
	second := validReservation()
	second["name"] = "Пётр"
	s.do(t, http.MethodPost, "/v1/reservations", second)

	rec := s.do(t, http.MethodPatch, "/v1/admin/reservations/"+first.ID, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[tableBookingsResponse](t, s.do(t, http.MethodGet, "/v1/admin/bookings/tables?status=confirmed", nil))
	assert.Equal(t, admin.StatusCounts{All: 2, Pending: 1, Confirmed: 1}, list.Counts)
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, first.ID, list.Bookings[0].ID)
	assert.Equal(t, list.Counts.All, list.Counts.Pending+list.Counts.Confirmed+list.Counts.Completed+list.Counts.Cancelled)
}

func TestAdminRejectsUnknownFilterAndStatus(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/v1/admin/bookings/tables?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/bookings/events?payment=refunded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/admin/reservations/demo-1-1", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPatch, "/v1/admin/reservations/demo-1-1", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsWhileBackendPaused(t *testing.T) {
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(540)
	}))

	rec := s.do(t, http.MethodGet, "/v1/admin/notifications", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, response.CodeUpstream, decode[response.ErrorResponse](t, rec).Code)
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	patched := make(chan string, 1)
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"notifications":[
				{"id":1,"type":"reservation","message":"Новая бронь","read":false,"created_at":"2026-10-19T10:00:00Z"},
				{"id":2,"type":"event_booking","message":"Оплата","read":true,"created_at":"2026-10-19T11:00:00Z"}
			]}`))
		case http.MethodPatch:
			patched <- r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	rec := s.do(t, http.MethodGet, "/v1/admin/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Unread int `json:"unread"`
	}](t, rec)
	assert.Equal(t, 1, got.Unread)

	rec = s.do(t, http.MethodPatch, "/v1/admin/notifications/1/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/notifications/1", <-patched)
}

func TestResetDemoBookings(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/v1/reservations", validReservation())
	require.Len(t, s.demo.ReadAll(context.Background()), 1)

	rec := s.do(t, http.MethodDelete, "/v1/admin/demo/bookings", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.demo.ReadAll(context.Background()))
}

func TestSubmissionsAreRateLimited(t *testing.T) {
	limiter := mw.NewRateLimiter(repository.NewMemoryRateLimitRepository(), mw.RateLimitConfig{Requests: 2, Window: time.Minute})
	s := newTestServer(t, nil, limiter)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/reservations", validReservation()).Code)
	}

	rec := s.do(t, http.MethodPost, "/v1/reservations", validReservation())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Len(t, s.demo.ReadAll(context.Background()), 2)

	rec = s.do(t, http.MethodGet, "/v1/admin/bookings/tables", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMarkAllNotificationsReadSkipsReadOnes(t *testing.T) {
	patched := make(chan string, 4)
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"notifications":[
				{"id":1,"type":"reservation","message":"Новая бронь","read":false,"created_at":"2026-10-19T10:00:00Z"},
				{"id":2,"type":"event_booking","message":"Оплата","read":true,"created_at":"2026-10-19T11:00:00Z"},
				{"id":3,"type":"reservation","message":"Отмена","read":false,"created_at":"2026-10-19T12:00:00Z"}
			]}`))
		case http.MethodPatch:
			patched <- r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	rec := s.do(t, http.MethodPatch, "/v1/admin/notifications/read", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"marked": 2}, decode[map[string]int](t, rec))
	close(patched)
	var paths []string
	for p := range patched {
		paths = append(paths, p)
	}
	assert.Equal(t, []string{"/notifications/1", "/notifications/3"}, paths)
}

func TestEventBookingAcceptsLooselyCasedPaymentMethod(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/v1/events/jazz/bookings", map[string]any{
		"eventTitle":    "Джазовый вечер",
		"price":         0,
		"name":          "Иван",
		"phone":         "9990000000",
		"tickets":       1,
		"paymentMethod": " Cash ",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	all := s.demo.ReadAll(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, domain.PaymentCash, all[0].PaymentMethod)
	assert.Equal(t, domain.PaymentPaid, all[0].EffectivePaymentStatus())
}
