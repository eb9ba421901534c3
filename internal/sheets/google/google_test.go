package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"landledger/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets endpoints the mirror calls,
// backed by an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	grid    [][]any
	reads   int
	deletes int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.reads++
		vals := make([][]any, 0, len(f.grid))
		for _, row := range f.grid {
			if len(row) == 0 {
				vals = append(vals, []any{})
				continue
			}
			vals = append(vals, []any{row[0]})
		}
		_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Values: vals})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		start, err := strconv.Atoi(rng[strings.Index(rng, "!A")+2:])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var body gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i, row := range body.Values {
			idx := start - 1 + i
			for len(f.grid) <= idx {
				f.grid = append(f.grid, nil)
			}
			f.grid[idx] = row
		}
		_ = json.NewEncoder(w).Encode(gsheet.UpdateValuesResponse{UpdatedRange: rng})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var body gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, req := range body.Requests {
			if d := req.DeleteDimension; d != nil {
				f.deletes++
				f.grid = append(f.grid[:d.Range.StartIndex], f.grid[d.Range.EndIndex:]...)
			}
		}
		_, _ = w.Write([]byte(`{}`))

	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(gsheet.Spreadsheet{Sheets: []*gsheet.Sheet{
			{Properties: &gsheet.SheetProperties{SheetId: 7, Title: "Agreements"}},
		}})

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.grid))
	for _, row := range f.grid {
		if len(row) > 0 {
			out = append(out, row[0].(string))
		}
	}
	return out
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return newWithService(svc, "sheet-id", "")
}

func agreement(id, firm string) core.Agreement {
	a := core.Agreement{ID: id, Version: 1}
	a.SurveyNo = "S-" + id
	a.FirmName = firm
	a.PossessionStatus = core.PossessionNotGiven
	return a
}

func TestClient_UpsertWritesHeaderThenRows(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	if err := c.Upsert(ctx, agreement("a1", "North")); err != nil {
		t.Fatalf("Upsert a1: %v", err)
	}
	if err := c.Upsert(ctx, agreement("a2", "South")); err != nil {
		t.Fatalf("Upsert a2: %v", err)
	}

	got := fake.ids()
	want := []string{"ID", "a1", "a2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("column A = %v, want %v", got, want)
	}
	if fake.reads != 1 {
		t.Errorf("row index read %d times, want 1 (cached)", fake.reads)
	}
}

func TestClient_UpsertReplacesExistingRow(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()

	_ = c.Upsert(ctx, agreement("a1", "North"))
	_ = c.Upsert(ctx, agreement("a2", "South"))

	updated := agreement("a1", "Renamed")
	updated.Version = 2
	if err := c.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if n := len(fake.ids()); n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
	// column 2 is Firm Name
	if got := fake.grid[1][2]; got != "Renamed" {
		t.Errorf("firm name = %v, want Renamed", got)
	}
}

func TestClient_FreshClientFindsExistingRows(t *testing.T) {
	fake := &fakeSheets{}
	ctx := context.Background()
	_ = newTestClient(t, fake).Upsert(ctx, agreement("a1", "North"))

	other := newTestClient(t, fake)
	if err := other.Upsert(ctx, agreement("a1", "Again")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n := len(fake.ids()); n != 2 {
		t.Errorf("rows = %d, want header plus one row", n)
	}
}

func TestClient_Delete(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ctx := context.Background()
	_ = c.Upsert(ctx, agreement("a1", "North"))
	_ = c.Upsert(ctx, agreement("a2", "South"))

	if err := c.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := strings.Join(fake.ids(), ","); got != "ID,a2" {
		t.Errorf("column A = %s, want ID,a2", got)
	}

	// row numbers shifted, so the next write must re-read the index
	if err := c.Upsert(ctx, agreement("a2", "Moved")); err != nil {
		t.Fatalf("Upsert after delete: %v", err)
	}
	if got := strings.Join(fake.ids(), ","); got != "ID,a2" {
		t.Errorf("column A = %s after rewrite, want ID,a2", got)
	}

	if err := c.Delete(ctx, "missing"); err != nil {
		t.Errorf("deleting a missing row: %v", err)
	}
	if fake.deletes != 1 {
		t.Errorf("delete requests = %d, want 1", fake.deletes)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if err := c.Upsert(context.Background(), agreement("a", "f")); err == nil {
		t.Error("expected error without a service")
	}
	if err := c.Delete(context.Background(), "a"); err == nil {
		t.Error("expected error without a service")
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"missing spreadsheet", Options{}, "missing GOOGLE_SPREADSHEET_ID"},
		{"missing credentials", Options{SpreadsheetID: "id"}, "missing service account credentials"},
		{"unreadable file", Options{SpreadsheetID: "id", CredentialsFile: "/non/existent.json"}, "read service account file"},
		{"invalid json", Options{SpreadsheetID: "id", CredentialsJSON: "not-json"}, "parse service account credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("New() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestIndexRows(t *testing.T) {
	rows, next := indexRows([][]any{{"ID"}, {"a1"}, {}, {" a3 "}})
	if next != 5 {
		t.Errorf("next = %d, want 5", next)
	}
	if rows["a1"] != 2 || rows["a3"] != 4 {
		t.Errorf("rows = %v", rows)
	}
	if _, ok := rows["ID"]; ok {
		t.Error("header indexed as a record")
	}
}
