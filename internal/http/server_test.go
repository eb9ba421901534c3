package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"landledger/internal/auth"
	"landledger/internal/cache"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/services"
	"landledger/internal/storage/memory"
)

type testEnv struct {
	t      *testing.T
	server *Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	dashboard := cache.NewJSONCache(cache.NewLocal(16, time.Minute))

	agreements := services.NewAgreementService(store, nil, dashboard)
	agreements.SetClock(func() time.Time { return time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC) })
	authSvc := services.NewAuthService(store, auth.NewTokens("test-secret", time.Hour), auth.Hasher{Cost: bcrypt.MinCost})

	opts.Logger = applog.Discard()
	srv := NewServer(":0", Deps{
		Agreements: agreements,
		Auth:       authSvc,
		Dashboard:  dashboard,
		Store:      store,
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{t: t, server: srv}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(w, req)
	return w
}

// login registers a user and returns its bearer token.
func (e *testEnv) login() string {
	e.t.Helper()
	creds := credentials{Username: "asha", Password: "secret123"}
	if w := e.do(http.MethodPost, "/api/auth/register", creds, ""); w.Code != http.StatusOK {
		e.t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w := e.do(http.MethodPost, "/api/auth/login", creds, "")
	if w.Code != http.StatusOK {
		e.t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var token services.Token
	decode(e.t, w, &token)
	return token.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decode(t, w, &body)
	return body.Detail
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, w, &body)
	return body.Message
}

func sampleFields(surveyNo string) core.AgreementFields {
	return core.AgreementFields{
		SurveyNo:          surveyNo,
		FirmName:          "Green Acres",
		LandOwner:         "R. Patil",
		Area:              "1.20.50",
		DocNo1:            "D-1",
		AgreementDate:     "15-01-2024",
		DevelopmentMonths: 3,
		RentPerSqft:       10,
		FreeAreaBU:        1000,
		AgreementValue:    500000,
		StampDuty1:        1500,
	}
}

func TestServer_RootAndHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodGet, "/api/", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", w.Code)
	}
	if got := message(t, w); got != "Land Agreement Management API" {
		t.Errorf("message = %q", got)
	}

	w = env.do(http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}

	w = env.do(http.MethodGet, "/readyz", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("readyz status = %d: %s", w.Code, w.Body.String())
	}
	var ready struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	decode(t, w, &ready)
	if ready.Status != "ready" || ready.Checks["store"] != "ok" {
		t.Errorf("ready = %+v", ready)
	}

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestEnv(t, Options{})

	w := env.do(http.MethodGet, "/nope", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Status code = %d, want 404", w.Code)
	}
	if got := detail(t, w); got != "Not Found" {
		t.Errorf("detail = %q", got)
	}
}

func TestServer_AuthFlow(t *testing.T) {
	env := newTestEnv(t, Options{})
	creds := credentials{Username: "asha", Password: "secret123"}

	w := env.do(http.MethodPost, "/api/auth/register", creds, "")
	if w.Code != http.StatusOK || message(t, w) != "User registered successfully" {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/auth/register", creds, "")
	if w.Code != http.StatusBadRequest || detail(t, w) != "Username already exists" {
		t.Errorf("duplicate register = %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/auth/register", credentials{Username: "ravi", Password: "abc"}, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("weak password status = %d, want 422", w.Code)
	}

	w = env.do(http.MethodPost, "/api/auth/login", credentials{Username: "asha", Password: "wrong-pass"}, "")
	if w.Code != http.StatusUnauthorized || detail(t, w) != "Invalid username or password" {
		t.Errorf("bad login = %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/auth/login", creds, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var token services.Token
	decode(t, w, &token)
	if token.AccessToken == "" || token.TokenType != "bearer" {
		t.Errorf("token = %+v", token)
	}

	w = env.do(http.MethodPost, "/api/auth/forgot-password", credentials{Username: "nobody"}, "")
	if w.Code != http.StatusOK || message(t, w) != services.ResetMessage {
		t.Errorf("forgot-password = %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/auth/login", "{", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed body status = %d, want 422", w.Code)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name       string
		header     string
		wantDetail string
	}{
		{"no header", "", "Missing Authorization header"},
		{"not bearer", "Basic dXNlcg==", "Invalid or expired token"},
		{"garbage token", "Bearer not-a-jwt", "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/agreements", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.server.Handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("Status code = %d, want 401", w.Code)
			}
			if got := detail(t, w); got != tt.wantDetail {
				t.Errorf("detail = %q, want %q", got, tt.wantDetail)
			}
		})
	}

	// a valid token for a user the store no longer knows
	tokens := auth.NewTokens("test-secret", time.Hour)
	raw, _, err := tokens.Issue("ghost")
	if err != nil {
		t.Fatal(err)
	}
	w := env.do(http.MethodGet, "/api/agreements", nil, raw)
	if w.Code != http.StatusUnauthorized || detail(t, w) != "User not found" {
		t.Errorf("unknown user = %d %s", w.Code, w.Body.String())
	}
}

func TestServer_AgreementCRUD(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()

	w := env.do(http.MethodPost, "/api/agreements", sampleFields("12/A"), token)
	if w.Code != http.StatusOK {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created core.Agreement
	decode(t, w, &created)
	if created.ID == "" || created.Version != 1 {
		t.Errorf("created = id %q version %d", created.ID, created.Version)
	}
	if created.AreaInGuntas != 60.5 || created.DevelopmentEndDate != "15-04-2024" {
		t.Errorf("derived = %+v", created.DerivedFields)
	}
	if created.TotalMonths != 6 || created.TotalRent != 60000 {
		t.Errorf("rent = %d months, %v", created.TotalMonths, created.TotalRent)
	}
	if created.PossessionStatus != core.PossessionNotGiven {
		t.Errorf("possession = %q", created.PossessionStatus)
	}

	path := "/api/agreements/" + created.ID
	w = env.do(http.MethodGet, path, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}

	update := sampleFields("12/A")
	update.PossessionStatus = core.PossessionGiven
	w = env.do(http.MethodPut, path, update, token)
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d %s", w.Code, w.Body.String())
	}
	var updated core.Agreement
	decode(t, w, &updated)
	if updated.Version != 2 || updated.TotalMonths != 0 || updated.TotalRent != 0 {
		t.Errorf("updated = version %d months %d rent %v", updated.Version, updated.TotalMonths, updated.TotalRent)
	}

	w = env.do(http.MethodPut, "/api/agreements/fresh-id", sampleFields("7"), token)
	if w.Code != http.StatusOK {
		t.Fatalf("put unknown id = %d %s", w.Code, w.Body.String())
	}
	var upserted core.Agreement
	decode(t, w, &upserted)
	if upserted.ID != "fresh-id" {
		t.Errorf("upsert id = %q", upserted.ID)
	}

	w = env.do(http.MethodGet, "/api/agreements?sort_by=survey_no&sort_order=1", nil, token)
	var list []core.Agreement
	decode(t, w, &list)
	if len(list) != 2 || list[0].SurveyNo != "12/A" {
		t.Errorf("list = %+v", list)
	}

	w = env.do(http.MethodDelete, path, nil, token)
	if w.Code != http.StatusOK || message(t, w) != "Agreement deleted successfully" {
		t.Fatalf("delete = %d %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodGet, path, nil, token)
	if w.Code != http.StatusNotFound || detail(t, w) != "Agreement not found" {
		t.Errorf("get after delete = %d %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodDelete, path, nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestServer_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()

	bad := sampleFields("")
	bad.RentPerSqft = -1
	w := env.do(http.MethodPost, "/api/agreements", bad, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Status code = %d, want 422", w.Code)
	}
	var body struct {
		Detail []FieldDetail `json:"detail"`
	}
	decode(t, w, &body)
	fields := map[string]bool{}
	for _, d := range body.Detail {
		fields[d.Loc[len(d.Loc)-1]] = true
	}
	if !fields["survey_no"] || !fields["rent_per_sqft"] {
		t.Errorf("detail = %+v", body.Detail)
	}

	w = env.do(http.MethodGet, "/api/agreements?limit=lots", nil, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad limit status = %d, want 422", w.Code)
	}
	w = env.do(http.MethodGet, "/api/agreements?sort_by=password", nil, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad sort_by status = %d, want 422", w.Code)
	}
}

func TestServer_Table(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()

	for _, survey := range []string{"10", "20"} {
		if w := env.do(http.MethodPost, "/api/agreements", sampleFields(survey), token); w.Code != http.StatusOK {
			t.Fatalf("create: %d", w.Code)
		}
	}

	w := env.do(http.MethodGet, "/api/agreements/table?search=20&view=poa_only", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("table = %d %s", w.Code, w.Body.String())
	}
	var p core.Projection
	decode(t, w, &p)
	if p.Total != 2 || p.Matched != 1 || p.Rows[0].SurveyNo != "20" || p.View != core.ViewPOAOnly {
		t.Errorf("projection = total %d matched %d view %s", p.Total, p.Matched, p.View)
	}

	w = env.do(http.MethodGet, "/api/agreements/table?view=everything", nil, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad view status = %d, want 422", w.Code)
	}
}

func TestServer_DashboardInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()

	summary := func() core.Summary {
		w := env.do(http.MethodGet, "/api/dashboard/summary", nil, token)
		if w.Code != http.StatusOK {
			t.Fatalf("summary = %d %s", w.Code, w.Body.String())
		}
		var s core.Summary
		decode(t, w, &s)
		return s
	}

	if s := summary(); s.Count != 0 || s.NetProjectCost != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	env.do(http.MethodPost, "/api/agreements", sampleFields("1"), token)
	s := summary()
	if s.Count != 1 || s.TotalAreaGuntas != 60.5 {
		t.Errorf("summary after create = %+v", s)
	}

	w := env.do(http.MethodGet, "/api/dashboard/charts", nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("charts = %d %s", w.Code, w.Body.String())
	}
}

func TestServer_ExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()
	env.do(http.MethodPost, "/api/agreements", sampleFields("12/A"), token)

	w := env.do(http.MethodGet, "/api/export/agreements.xlsx", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "agreements.xlsx") {
		t.Errorf("Content-Disposition = %q", w.Header().Get("Content-Disposition"))
	}
	workbook := w.Body.Bytes()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "agreements.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(workbook)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/agreements", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d %s", w.Code, w.Body.String())
	}
	var res services.ImportResult
	decode(t, w, &res)
	if res.Created != 1 || len(res.Failed) != 0 {
		t.Errorf("import result = %+v", res)
	}

	w = env.do(http.MethodGet, "/api/agreements", nil, token)
	var list []core.Agreement
	decode(t, w, &list)
	if len(list) != 2 || list[0].SurveyNo != list[1].SurveyNo {
		t.Errorf("list after import = %+v", list)
	}
}

func TestServer_ImportRejectsMissingFile(t *testing.T) {
	env := newTestEnv(t, Options{})
	token := env.login()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/agreements", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest || detail(t, w) != "File not found in request" {
		t.Errorf("import without file = %d %s", w.Code, w.Body.String())
	}
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1})
	creds := credentials{Username: "asha", Password: "secret123"}

	if w := env.do(http.MethodPost, "/api/auth/register", creds, ""); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	w := env.do(http.MethodPost, "/api/auth/login", creds, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Status code = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}

	// reads are not limited
	if w := env.do(http.MethodGet, "/api/", nil, ""); w.Code != http.StatusOK {
		t.Errorf("GET after limit = %d", w.Code)
	}
}

func TestServer_RateLimitTrustsForwardedFor(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 1, TrustedProxies: []string{"192.0.2.0/24"}})

	register := func(clientIP, username string) int {
		body, _ := json.Marshal(credentials{Username: username, Password: "secret123"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", clientIP)
		w := httptest.NewRecorder()
		env.server.Handler.ServeHTTP(w, req)
		return w.Code
	}

	if code := register("203.0.113.1", "asha"); code != http.StatusOK {
		t.Fatalf("first client = %d", code)
	}
	if code := register("203.0.113.2", "ravi"); code != http.StatusOK {
		t.Errorf("second client = %d, want its own budget", code)
	}
	if code := register("203.0.113.1", "meera"); code != http.StatusTooManyRequests {
		t.Errorf("first client again = %d, want 429", code)
	}
}

func TestServer_ShutdownTwice(t *testing.T) {
	env := newTestEnv(t, Options{})
	if err := env.server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := env.server.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
