package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Component: component, Level: slog.LevelDebug, Output: &buf}), &buf
}

func TestLogger_ComponentEmittedOnce(t *testing.T) {
	logger, buf := newBufferLogger(ComponentHTTP)

	logger.With(FieldRequestID, "req_1").WithComponent(ComponentProxy).Info("relayed")

	out := buf.String()
	if n := strings.Count(out, "component="); n != 1 {
		t.Errorf("component attribute appears %d times:\n%s", n, out)
	}
	for _, want := range []string{"component=proxy", "request_id=req_1", "msg=relayed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != "" {
		t.Fatalf("FromContext(empty) = %+v, want untagged default logger", got)
	}

	logger, _ := newBufferLogger(ComponentWorker)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
}

func TestMiddlewareChain(t *testing.T) {
	logger, buf := newBufferLogger(ComponentApp)

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})
	h = RequestIDMiddleware(func(*http.Request) string { return "req_42" })(h)
	h = ComponentMiddleware(ComponentProxy)(h)
	h = Middleware(logger)(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	for _, want := range []string{"component=proxy", "request_id=req_42", "msg=handled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStructuredLogger_HTTPEndLevel(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		logger, buf := newBufferLogger(ComponentHTTP)
		sl := NewStructuredLogger(logger)
		req := httptest.NewRequest(http.MethodGet, "/api/agreements?limit=5", nil)

		sl.LogHTTPEnd(context.Background(), req, tt.status, 12, "10.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d logged as %q, want %s", tt.status, out, tt.level)
		}
		if !strings.Contains(out, "query=\"limit=5\"") && !strings.Contains(out, "query=limit=5") {
			t.Errorf("status %d: query missing from %q", tt.status, out)
		}
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	logger, buf := newBufferLogger(ComponentAgreement)
	sl := NewStructuredLogger(logger)

	sl.LogError(context.Background(), "Failed to publish sync message", errors.New("broker down"),
		ComponentAMQP, OpSync,
		NewFields().WithAgreement("a1", "12/A", "").WithErrorType(ErrorTypeNetwork))

	out := buf.String()
	for _, want := range []string{
		"level=ERROR", "component=amqp", "operation=sync", "agreement_id=a1",
		"survey_no=12/A", "error=\"broker down\"", "error_type=network_error",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, FieldLandOwner) {
		t.Errorf("empty land owner should be omitted:\n%s", out)
	}
}
