package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "landledger/internal/log"
)

type seenRequest struct {
	method    string
	uri       string
	host      string
	auth      string
	requestID string
	forwarded string
	body      string
}

func newUpstream(t *testing.T, seen *seenRequest) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*seen = seenRequest{
			method:    r.Method,
			uri:       r.URL.RequestURI(),
			host:      r.Host,
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get("X-Request-ID"),
			forwarded: r.Header.Get("X-Forwarded-For"),
			body:      string(body),
		}
		switch r.URL.Path {
		case "/api/agreements":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Upstream", "yes")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"a1"}`)
		case "/api/moved":
			http.Redirect(w, r, "/api/elsewhere", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
		}
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func TestProxy_RelaysRequestAndResponse(t *testing.T) {
	var seen seenRequest
	upstream := newUpstream(t, &seen)

	p, err := New(upstream.URL, time.Second, applog.Discard())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "http://proxy.local/api/agreements?x=1", strings.NewReader(`{"survey_no":"12"}`))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Connection", "keep-alive")
	req.RemoteAddr = "203.0.113.7:5000"
	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.MethodPost, seen.method)
	assert.Equal(t, "/api/agreements?x=1", seen.uri)
	assert.NotEqual(t, "proxy.local", seen.host)
	assert.Equal(t, "Bearer tok", seen.auth)
	assert.Equal(t, `{"survey_no":"12"}`, seen.body)
	assert.Equal(t, "203.0.113.7", seen.forwarded)
	assert.NotEmpty(t, seen.requestID)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Upstream"))
	assert.JSONEq(t, `{"id":"a1"}`, w.Body.String())
}

func TestProxy_RelaysErrorStatusAndRedirects(t *testing.T) {
	var seen seenRequest
	upstream := newUpstream(t, &seen)
	p, err := New(upstream.URL+"/", time.Second, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, w.Body.String())
	assert.Equal(t, "/api/unknown", seen.uri)

	w = httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moved", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/api/elsewhere", w.Header().Get("Location"))
}

func TestProxy_KeepsIncomingRequestID(t *testing.T) {
	var seen seenRequest
	upstream := newUpstream(t, &seen)
	p, err := New(upstream.URL, time.Second, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/agreements", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	p.Handler().ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "abc-123", seen.requestID)
}

func TestProxy_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	p, err := New(addr, time.Second, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agreements", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Proxy error", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestNew_RejectsRelativeUpstream(t *testing.T) {
	for _, upstream := range []string{"", "localhost:8001", "/api"} {
		_, err := New(upstream, 0, nil)
		assert.Error(t, err, "upstream %q", upstream)
	}
}
