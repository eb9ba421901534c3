package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"landledger/internal/core"
	applog "landledger/internal/log"
	ports "landledger/internal/sheets"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultRowCacheTTL = 5 * time.Minute

// Client mirrors agreements into one sheet of a spreadsheet. Column A holds
// the agreement id and row 1 the header.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	mu sync.Mutex
	// id -> 1-based row number, valid until cacheExpiresAt
	rows               map[string]int
	nextRow            int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
	sheetID            *int64
}

var _ ports.Mirror = (*Client)(nil)

// Options select the spreadsheet and the service account used to reach it.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets mirror authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

func newWithService(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Agreements"
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(spreadsheetID),
		sheet:              strings.TrimSpace(sheet),
		cacheValidDuration: defaultRowCacheTTL,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials,
// inline JSON taking precedence over the key file.
func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	credentialsFile = strings.TrimSpace(credentialsFile)

	var raw []byte
	switch {
	case credentialsJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials", applog.FieldComponent, applog.ComponentSheets)
		raw = []byte(credentialsJSON)
	case credentialsFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", credentialsFile)
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	jwtCfg, err := goauth.JWTConfigFromJSON(raw, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// token refreshes and API calls share the pooled transport
	pooled := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(jwtCfg.Client(pooled)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "client_email", jwtCfg.Email)
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and keep-alive.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Upsert rewrites the row holding a.ID, or writes a new row after the last one.
func (c *Client) Upsert(ctx context.Context, a core.Agreement) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadRows(ctx); err != nil {
		return err
	}

	values := [][]any{ports.Row(a)}
	row, exists := c.rows[a.ID]
	if !exists {
		row = c.nextRow
		if row == 1 {
			// empty sheet: write the header first
			values = [][]any{ports.Header(), ports.Row(a)}
		}
	}

	rng := fmt.Sprintf("%s!A%d", c.sheet, row)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache()
		return fmt.Errorf("write %s: %w", rng, err)
	}

	if !exists {
		if row == 1 {
			row = 2
		}
		c.rows[a.ID] = row
		c.nextRow = row + 1
	}
	slog.DebugContext(ctx, "Mirrored agreement row", "id", a.ID, "row", row, "version", a.Version)
	return nil
}

// Delete removes the row holding id and shifts the rows below it up.
func (c *Client) Delete(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadRows(ctx); err != nil {
		return err
	}
	row, ok := c.rows[id]
	if !ok {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row - 1),
			EndIndex:   int64(row),
		}},
	}}}
	// row numbers below the deleted one shift
	c.invalidateRowCache()
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", row, c.sheet, err)
	}
	slog.DebugContext(ctx, "Removed agreement row", "id", id, "row", row)
	return nil
}

// loadRows refreshes the id index from column A when the cache has expired.
// Callers hold c.mu.
func (c *Client) loadRows(ctx context.Context) error {
	if c.rows != nil && time.Now().Before(c.cacheExpiresAt) {
		return nil
	}
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	c.rows, c.nextRow = indexRows(resp.Values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) invalidateRowCache() {
	c.rows = nil
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	if c.sheetID != nil {
		return *c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && strings.EqualFold(s.Properties.Title, c.sheet) {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheet)
}

// indexRows maps ids in column A to their row numbers. Row 1 is the header.
func indexRows(values [][]any) (map[string]int, int) {
	rows := make(map[string]int, len(values))
	for i, v := range values {
		if i == 0 || len(v) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(v[0]))
		if id == "" {
			continue
		}
		rows[id] = i + 1
	}
	return rows, len(values) + 1
}
