package handlers

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/cafe-bookings/pkg/logger"
	"github.com/diagnosis/cafe-bookings/pkg/response"
	"github.com/diagnosis/cafe-bookings/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type Handlers struct {
	bookingsProxy *proxy.ServiceProxy
	notifyProxy   *proxy.ServiceProxy
}

func New(bookingsProxy, notifyProxy *proxy.ServiceProxy) *Handlers {
	return &Handlers{
		bookingsProxy: bookingsProxy,
		notifyProxy:   notifyProxy,
	}
}

// Routes forwards the site and admin API to the bookings service.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/status", h.Status)

	forward := h.forward(h.bookingsProxy)
	r.Post("/reservations", forward)
	r.Post("/events/{eventID}/bookings", forward)
	r.Post("/demo/bookings/{id}/pay", forward)
	r.Handle("/admin/*", forward)
}

func (h *Handlers) forward(p *proxy.ServiceProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}
		h.proxyRequest(w, r, p, path)
	}
}

func (h *Handlers) proxyRequest(w http.ResponseWriter, r *http.Request, serviceProxy *proxy.ServiceProxy, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	headers := http.Header{}
	for key, values := range r.Header {
		if shouldCopyHeader(key) {
			headers[key] = values
		}
	}

	if ip := peerIP(r.RemoteAddr); ip != "" {
		if prior := headers.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		headers.Set("X-Forwarded-For", ip)
	}

	resp, err := serviceProxy.ProxyRequest(r.Context(), r.Method, path, body, headers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Service proxy error", "service", serviceProxy.Name(), "error", err, "path", path)
		response.ServiceUnavailable(w, "Сервис временно недоступен")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if !shouldCopyHeader(key) {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
	}
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

var hopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"upgrade":             true,
	"proxy-connection":    true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"host":                true,
	"content-length":      true,
}

func shouldCopyHeader(key string) bool {
	return !hopHeaders[strings.ToLower(key)]
}

type statusResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Status reports the health of every downstream service.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	proxies := []*proxy.ServiceProxy{h.bookingsProxy, h.notifyProxy}
	results := make([]string, len(proxies))

	var g errgroup.Group
	for i, p := range proxies {
		i, p := i, p
		g.Go(func() error {
			results[i] = checkHealth(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	out := statusResponse{Status: "ok", Services: map[string]string{}}
	for i, p := range proxies {
		out.Services[p.Name()] = results[i]
		if results[i] != "ok" {
			out.Status = "degraded"
		}
	}

	code := http.StatusOK
	if out.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.WriteJSON(w, code, out)
}

func checkHealth(ctx context.Context, p *proxy.ServiceProxy) string {
	resp, err := p.Get(ctx, "/healthz")
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "unhealthy"
	}
	return "ok"
}
