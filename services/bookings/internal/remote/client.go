package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/diagnosis/cafe-bookings/pkg/config"
	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"
	"github.com/google/go-querystring/query"
)

var (
	ErrBackendPaused      = errors.New("backend is paused")
	ErrBackendUnreachable = errors.New("backend is unreachable")
)

// RejectionError is a definitive answer from a reachable backend.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.Status, e.Message)
}

// Reply is the interpreted outcome of one create call.
type Reply struct {
	Verdict Verdict
	Status  int
	Body    []byte
	Message string
}

type Client struct {
	baseURL      string
	anonKey      string
	pausedStatus int
	http         *httpclient.Client
}

type Option func(*[]httpclient.Option)

// WithDoer replaces the underlying transport, e.g. with a test double.
func WithDoer(d heimdall.Doer) Option {
	return func(opts *[]httpclient.Option) {
		*opts = append(*opts, httpclient.WithHTTPClient(d))
	}
}

// NewClient builds a backend client that makes exactly one attempt per call.
func NewClient(cfg config.BackendConfig, opts ...Option) *Client {
	httpOpts := []httpclient.Option{
		httpclient.WithHTTPTimeout(cfg.Timeout),
		httpclient.WithRetryCount(0),
	}
	for _, opt := range opts {
		opt(&httpOpts)
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		anonKey:      cfg.AnonKey,
		pausedStatus: cfg.PausedStatus,
		http:         httpclient.NewClient(httpOpts...),
	}
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, payload any) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
		req.Header.Set("apikey", c.anonKey)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		req.Header.Set("X-Request-ID", requestID)
	}

	logger.DebugContext(ctx, "Calling backend", "method", method, "path", path)

	return c.http.Do(req)
}

// exchange performs a create call and interprets it. Only transport errors
// that match no network signature are returned as errors.
func (c *Client) exchange(ctx context.Context, path string, payload any) (Reply, error) {
	resp, err := c.send(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		if IsNetworkError(err) {
			return Reply{Verdict: VerdictUnreachable, Message: err.Error()}, nil
		}
		return Reply{}, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	paused, body, err := c.ClassifyPausedSignal(resp)
	if err != nil {
		if IsNetworkError(err) {
			return Reply{Verdict: VerdictUnreachable, Status: resp.StatusCode, Message: err.Error()}, nil
		}
		return Reply{}, fmt.Errorf("failed to read backend response: %w", err)
	}
	if paused {
		return Reply{Verdict: VerdictPaused, Status: resp.StatusCode, Body: body}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Reply{
			Verdict: VerdictRejected,
			Status:  resp.StatusCode,
			Body:    body,
			Message: RejectionMessage(resp.StatusCode, body),
		}, nil
	}
	return Reply{Verdict: VerdictOK, Status: resp.StatusCode, Body: body}, nil
}

// call is used by the admin reads and writes, which surface degraded backend
// states as sentinel errors instead of verdicts.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, payload, out any) error {
	resp, err := c.send(ctx, method, path, params, payload)
	if err != nil {
		if IsNetworkError(err) {
			return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
		}
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	paused, body, err := c.ClassifyPausedSignal(resp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	if paused {
		return ErrBackendPaused
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RejectionError{Status: resp.StatusCode, Message: RejectionMessage(resp.StatusCode, body)}
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

func (c *Client) CreateReservation(ctx context.Context, p ReservationPayload) (Reply, error) {
	return c.exchange(ctx, "/reservations", p)
}

func (c *Client) CreateEventBooking(ctx context.Context, p EventBookingPayload) (Reply, error) {
	return c.exchange(ctx, "/event-bookings", p)
}

type ListOptions struct {
	Status string `url:"status,omitempty"`
	Limit  int    `url:"limit,omitempty"`
	Order  string `url:"order,omitempty"`
}

func (c *Client) ListReservations(ctx context.Context, opts ListOptions) ([]ReservationDTO, error) {
	params, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var out struct {
		Reservations []ReservationDTO `json:"reservations"`
	}
	if err := c.call(ctx, http.MethodGet, "/reservations", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Reservations, nil
}

func (c *Client) ListEventBookings(ctx context.Context, opts ListOptions) ([]EventBookingDTO, error) {
	params, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	var out struct {
		Bookings []EventBookingDTO `json:"bookings"`
	}
	if err := c.call(ctx, http.MethodGet, "/event-bookings", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Bookings, nil
}

func (c *Client) UpdateReservationStatus(ctx context.Context, id, status string) error {
	payload := map[string]string{"status": status}
	return c.call(ctx, http.MethodPatch, "/reservations/"+url.PathEscape(id), nil, payload, nil)
}

type EventBookingPatch struct {
	Status        string `json:"status,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

func (c *Client) UpdateEventBooking(ctx context.Context, id string, patch EventBookingPatch) error {
	return c.call(ctx, http.MethodPatch, "/event-bookings/"+url.PathEscape(id), nil, patch, nil)
}

func (c *Client) ListNotifications(ctx context.Context) ([]NotificationDTO, error) {
	var out struct {
		Notifications []NotificationDTO `json:"notifications"`
	}
	if err := c.call(ctx, http.MethodGet, "/notifications", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	payload := map[string]bool{"read": true}
	return c.call(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id), nil, payload, nil)
}
