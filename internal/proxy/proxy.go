// Package proxy relays API traffic to a fixed upstream origin.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	applog "landledger/internal/log"
	"landledger/internal/middleware/trace"
)

const maxBodyBytes = 10 << 20

// hop-by-hop headers are meaningful for one connection only
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// Proxy forwards every request to upstream and relays the reply unchanged.
type Proxy struct {
	upstream *url.URL
	client   *resty.Client
	logger   *applog.Logger
}

// New returns a proxy for the absolute origin upstream.
func New(upstream string, timeout time.Duration, logger *applog.Logger) (*Proxy, error) {
	u, err := url.Parse(upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: must be an absolute URL", upstream)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))

	return &Proxy{
		upstream: u,
		client:   client,
		logger:   logger,
	}, nil
}

// Handler wraps the proxy with its context logger. Requests arriving without
// an X-Request-ID get one, and the id travels upstream.
func (p *Proxy) Handler() http.Handler {
	var h http.Handler = p
	h = applog.RequestIDMiddleware(requestID)(h)
	h = applog.ComponentMiddleware(applog.ComponentProxy)(h)
	return applog.Middleware(p.logger)(h)
}

func requestID(r *http.Request) string {
	id := r.Header.Get(trace.HeaderRequestID)
	if id == "" {
		id = trace.GenerateRequestID()
		r.Header.Set(trace.HeaderRequestID, id)
	}
	return id
}

// target joins the upstream origin with the inbound path and query.
func (p *Proxy) target(r *http.Request) string {
	base := strings.TrimRight(p.upstream.String(), "/")
	return base + r.URL.RequestURI()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		p.fail(w, r, fmt.Errorf("read request body: %w", err))
		return
	}

	req := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaderMultiValues(forwardHeaders(r))
	if len(body) > 0 {
		req.SetBody(body)
	}

	resp, err := req.Execute(r.Method, p.target(r))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	raw := resp.RawBody()
	defer raw.Close()

	for name, values := range resp.Header() {
		if hopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode())
	n, err := io.Copy(w, raw)
	if err != nil {
		logger.WarnContext(ctx, "Relaying upstream body failed", applog.FieldError, err)
	}

	logger.DebugContext(ctx, "Request proxied",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldStatusCode, resp.StatusCode(),
		applog.FieldDuration, time.Since(start).Milliseconds(),
		"bytes", n)
}

// fail writes the proxy error envelope.
func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Proxy error",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "Proxy error",
		"message": err.Error(),
	})
}

// forwardHeaders copies the inbound headers minus Host, hop-by-hop headers and
// Content-Length, and appends the caller to X-Forwarded-For.
func forwardHeaders(r *http.Request) map[string][]string {
	out := make(map[string][]string, len(r.Header)+1)
	for name, values := range r.Header {
		canonical := http.CanonicalHeaderKey(name)
		if canonical == "Host" || canonical == "Content-Length" || hopHeaders[canonical] {
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := out["X-Forwarded-For"]; len(prior) > 0 {
			ip = strings.Join(prior, ", ") + ", " + ip
		}
		out["X-Forwarded-For"] = []string{ip}
	}
	return out
}
