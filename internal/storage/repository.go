package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"landledger/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	syncPending = "pending"
	syncSynced  = "synced"
	syncError   = "error"
)

var _ Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type binding struct {
	col string
	ptr any
}

// bindings pairs every persisted column with the field that holds it.
// The same list drives inserts, updates and scans.
func bindings(a *core.Agreement) []binding {
	return []binding{
		{"survey_no", &a.SurveyNo},
		{"firm_name", &a.FirmName},
		{"land_owner", &a.LandOwner},
		{"area", &a.Area},
		{"doc_no_1", &a.DocNo1},
		{"agreement_date", &a.AgreementDate},
		{"development_months", &a.DevelopmentMonths},
		{"possession_status", (*string)(&a.PossessionStatus)},
		{"rent_per_sqft", &a.RentPerSqft},
		{"free_area_bu", &a.FreeAreaBU},
		{"free_area_cp", &a.FreeAreaCP},
		{"agreement_value", &a.AgreementValue},
		{"deposit_da", &a.DepositDA},
		{"stamp_duty_1", &a.StampDuty1},
		{"regi_dd_1", &a.RegiDD1},
		{"handling_charges_1", &a.HandlingCharges1},
		{"adjudication_1", &a.Adjudication1},
		{"legal_expenses_1", &a.LegalExpenses1},
		{"doc_no_2", &a.DocNo2},
		{"date_2", &a.Date2},
		{"stamp_duty_2", &a.StampDuty2},
		{"regi_dd_2", &a.RegiDD2},
		{"handling_charges_2", &a.HandlingCharges2},
		{"legal_expenses_2", &a.LegalExpenses2},
		{"doc_no_3", &a.DocNo3},
		{"stamp_duty_3", &a.StampDuty3},
		{"regi_dd_3", &a.RegiDD3},
		{"handling_charges_3", &a.HandlingCharges3},
		{"area_in_guntas", &a.AreaInGuntas},
		{"development_end_date", &a.DevelopmentEndDate},
		{"total_months", &a.TotalMonths},
		{"total_rent", &a.TotalRent},
		{"agreement_1_expense", &a.Agreement1Expense},
		{"agreement_2_expense", &a.Agreement2Expense},
		{"agreement_3_expense", &a.Agreement3Expense},
		{"total_agreement_expense", &a.TotalAgreementExpense},
		{"real_value_per_acre", &a.RealValuePerAcre},
		{"unparsed", &a.Unparsed},
	}
}

func bindingColumns(bs []binding) []string {
	cols := make([]string, len(bs))
	for i, b := range bs {
		cols[i] = b.col
	}
	return cols
}

func bindingValues(bs []binding) []any {
	vals := make([]any, len(bs))
	for i, b := range bs {
		switch p := b.ptr.(type) {
		case *string:
			vals[i] = *p
		case *float64:
			vals[i] = *p
		case *int:
			vals[i] = *p
		case *bool:
			vals[i] = *p
		default:
			panic(fmt.Sprintf("storage: unsupported binding type %T for %s", b.ptr, b.col))
		}
	}
	return vals
}

var selectColumns = "id, " + strings.Join(bindingColumns(bindings(&core.Agreement{})), ", ") +
	", version, created_at, updated_at, deleted_at IS NOT NULL"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row rowScanner) (core.Agreement, bool, error) {
	var (
		a                core.Agreement
		created, updated string
		deleted          bool
	)
	dest := []any{&a.ID}
	for _, b := range bindings(&a) {
		dest = append(dest, b.ptr)
	}
	dest = append(dest, &a.Version, &created, &updated, &deleted)

	if err := row.Scan(dest...); err != nil {
		return core.Agreement{}, false, err
	}
	a.CreatedAt = parseTimestamp(created)
	a.UpdatedAt = parseTimestamp(updated)
	return a, deleted, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateAgreement inserts a new record at version 1. A tombstone with the same
// id is brought back to life with its version bumped, so versions never go
// backwards for the mirror.
func (r *SQLiteRepository) CreateAgreement(ctx context.Context, a core.Agreement) (core.Agreement, error) {
	now := r.now()
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now

	bs := bindings(&a)
	cols := append([]string{"id"}, bindingColumns(bs)...)
	cols = append(cols, "version", "sync_status", "created_at", "updated_at")
	args := append([]any{a.ID}, bindingValues(bs)...)
	args = append(args, a.Version, syncPending, formatTimestamp(now), formatTimestamp(now))

	sets := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		if c == "version" {
			continue
		}
		sets = append(sets, c+" = excluded."+c)
	}
	sets = append(sets, "version = agreements.version + 1", "deleted_at = NULL")

	query := fmt.Sprintf(`INSERT INTO agreements (%s) VALUES (%s)
		ON CONFLICT(id) DO UPDATE SET %s WHERE agreements.deleted_at IS NOT NULL
		RETURNING version`,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(sets, ", "))

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&a.Version); err != nil {
		// a live row with this id leaves the upsert without a returned row
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return core.Agreement{}, fmt.Errorf("create agreement %s: %w", a.ID, ErrDuplicate)
		}
		return core.Agreement{}, fmt.Errorf("create agreement: %w", err)
	}

	slog.InfoContext(ctx, "Agreement saved to SQLite",
		"id", a.ID,
		"survey_no", a.SurveyNo,
		"version", a.Version)

	return a, nil
}

// UpdateAgreement replaces every field of a live record and bumps its version.
func (r *SQLiteRepository) UpdateAgreement(ctx context.Context, a core.Agreement) (core.Agreement, error) {
	now := r.now()
	bs := bindings(&a)

	sets := make([]string, 0, len(bs)+3)
	for _, c := range bindingColumns(bs) {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "version = version + 1", "sync_status = ?", "updated_at = ?")

	args := bindingValues(bs)
	args = append(args, syncPending, formatTimestamp(now), a.ID)

	query := fmt.Sprintf("UPDATE agreements SET %s WHERE id = ? AND deleted_at IS NULL", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return core.Agreement{}, fmt.Errorf("update agreement: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Agreement{}, fmt.Errorf("update agreement rows: %w", err)
	} else if n == 0 {
		return core.Agreement{}, core.ErrNotFound
	}

	updated, err := r.GetAgreement(ctx, a.ID)
	if err != nil {
		return core.Agreement{}, fmt.Errorf("reload agreement: %w", err)
	}

	slog.InfoContext(ctx, "Agreement updated in SQLite",
		"id", updated.ID,
		"version", updated.Version)

	return updated, nil
}

// GetAgreement returns a live record.
func (r *SQLiteRepository) GetAgreement(ctx context.Context, id string) (core.Agreement, error) {
	a, deleted, err := r.GetAgreementVersion(ctx, id)
	if err != nil {
		return core.Agreement{}, err
	}
	if deleted {
		return core.Agreement{}, core.ErrNotFound
	}
	return a, nil
}

// GetAgreementVersion returns a record whether or not it has been deleted.
func (r *SQLiteRepository) GetAgreementVersion(ctx context.Context, id string) (core.Agreement, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM agreements WHERE id = ?", id)
	a, deleted, err := scanAgreement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Agreement{}, false, core.ErrNotFound
	}
	if err != nil {
		return core.Agreement{}, false, fmt.Errorf("get agreement by id: %w", err)
	}
	return a, deleted, nil
}

// ListAgreements returns every live record, newest first.
func (r *SQLiteRepository) ListAgreements(ctx context.Context) ([]core.Agreement, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM agreements WHERE deleted_at IS NULL ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	list := []core.Agreement{}
	for rows.Next() {
		a, _, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreements: %w", err)
	}
	return list, nil
}

// DeleteAgreement tombstones a live record and returns the tombstone version.
func (r *SQLiteRepository) DeleteAgreement(ctx context.Context, id string) (int64, error) {
	now := formatTimestamp(r.now())
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE agreements
		 SET deleted_at = ?, updated_at = ?, version = version + 1, sync_status = ?
		 WHERE id = ? AND deleted_at IS NULL
		 RETURNING version`,
		now, now, syncPending, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete agreement: %w", err)
	}

	slog.InfoContext(ctx, "Agreement deleted in SQLite", "id", id, "version", version)
	return version, nil
}

// PendingSync returns records whose latest version has not reached the mirror,
// oldest change first. Records that previously failed are retried.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, deleted_at IS NOT NULL FROM agreements
		 WHERE sync_status IN (?, ?)
		 ORDER BY updated_at
		 LIMIT ?`, syncPending, syncError, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync agreements: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.ID, &p.Version, &p.Deleted); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records that version reached the mirror. A newer local version
// keeps the record pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE agreements SET sync_status = ? WHERE id = ? AND version = ?", syncSynced, id, version)
	if err != nil {
		return fmt.Errorf("mark agreement synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.DebugContext(ctx, "Agreement changed since sync, leaving pending", "id", id, "version", version)
		return nil
	}

	slog.InfoContext(ctx, "Agreement marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError flags a record whose mirror update failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE agreements SET sync_status = ? WHERE id = ?", syncError, id); err != nil {
		return fmt.Errorf("mark agreement sync error: %w", err)
	}

	slog.WarnContext(ctx, "Agreement marked with sync error", "id", id)
	return nil
}

// PurgeSyncedDeletions drops tombstones the mirror has already processed.
func (r *SQLiteRepository) PurgeSyncedDeletions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM agreements WHERE deleted_at IS NOT NULL AND sync_status = ?", syncSynced)
	if err != nil {
		return 0, fmt.Errorf("purge deleted agreements: %w", err)
	}
	return res.RowsAffected()
}

// CreateUser inserts an account. A taken username yields ErrDuplicate.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Username, u.PasswordHash, formatTimestamp(u.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("create user %s: %w", u.Username, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, "username", username)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, "id", id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, col, value string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE "+col+" = ?", value).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by %s: %w", col, err)
	}
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}
