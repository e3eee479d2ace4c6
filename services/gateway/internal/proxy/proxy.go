package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"
)

// ServiceProxy forwards requests to one downstream service.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *httpclient.Client
}

func NewServiceProxy(name, baseURL string, timeout time.Duration, doer ...heimdall.Doer) *ServiceProxy {
	opts := []httpclient.Option{
		httpclient.WithHTTPTimeout(timeout),
		// booking submissions are not idempotent without a key
		httpclient.WithRetryCount(0),
	}
	if len(doer) > 0 {
		opts = append(opts, httpclient.WithHTTPClient(doer[0]))
	}
	return &ServiceProxy{
		name:    name,
		baseURL: baseURL,
		client:  httpclient.NewClient(opts...),
	}
}

func (p *ServiceProxy) Name() string { return p.name }

func (p *ServiceProxy) ProxyRequest(ctx context.Context, method, path string, body []byte, headers http.Header) (*http.Response, error) {
	url := p.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Gateway-Forwarded", "true")

	logger.DebugContext(ctx, "Proxying request",
		"service", p.name,
		"method", method,
		"url", url,
	)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}

	return resp, nil
}

func (p *ServiceProxy) Get(ctx context.Context, path string) (*http.Response, error) {
	return p.ProxyRequest(ctx, http.MethodGet, path, nil, nil)
}
