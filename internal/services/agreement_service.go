package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"landledger/internal/amqp"
	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/storage"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	DefaultSortKey   = "created_at"
)

// Publisher announces agreement changes on the change feed.
type Publisher interface {
	PublishAgreementSync(ctx context.Context, id string, version int64, op amqp.Op) error
	Close() error
}

// Invalidator drops cached aggregates after a write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// AgreementService orchestrates agreement writes across the store, the
// change feed and the dashboard cache.
type AgreementService struct {
	store     storage.AgreementStore
	publisher Publisher
	cache     Invalidator
	calc      *core.Calculator
	newID     func() string
	log       *applog.StructuredLogger
}

// NewAgreementService wires the service. publisher and cache may be nil.
func NewAgreementService(store storage.AgreementStore, publisher Publisher, cache Invalidator) *AgreementService {
	return &AgreementService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		calc:      core.NewCalculator(),
		newID:     uuid.NewString,
		log:       applog.NewStructuredLogger(applog.New(applog.Config{Component: applog.ComponentAgreement, Handler: slog.Default().Handler()})),
	}
}

// SetClock replaces the clock used for time-dependent fields.
func (s *AgreementService) SetClock(now func() time.Time) {
	s.calc = &core.Calculator{Now: now}
}

// Create stores a new agreement under a fresh id.
func (s *AgreementService) Create(ctx context.Context, f core.AgreementFields) (core.Agreement, error) {
	return s.create(ctx, s.newID(), f)
}

func (s *AgreementService) create(ctx context.Context, id string, f core.AgreementFields) (core.Agreement, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return core.Agreement{}, err
	}
	a := core.Agreement{ID: id, AgreementFields: f}
	s.calc.Apply(&a)

	saved, err := s.store.CreateAgreement(ctx, a)
	if err != nil {
		return core.Agreement{}, fmt.Errorf("save agreement: %w", err)
	}
	s.afterWrite(ctx, applog.OpCreate, saved, amqp.OpUpsert)
	return saved, nil
}

// Update replaces the fields of agreement id. An unknown id is created with
// that id; the boolean reports whether that happened.
func (s *AgreementService) Update(ctx context.Context, id string, f core.AgreementFields) (core.Agreement, bool, error) {
	if id == "" {
		return core.Agreement{}, false, fmt.Errorf("empty agreement id: %w", core.ErrInvalidInput)
	}
	existing, err := s.store.GetAgreement(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		a, err := s.create(ctx, id, f)
		return a, err == nil, err
	}
	if err != nil {
		return core.Agreement{}, false, fmt.Errorf("load agreement: %w", err)
	}

	f.Normalize()
	if err := f.Validate(); err != nil {
		return core.Agreement{}, false, err
	}
	existing.AgreementFields = f
	s.calc.Apply(&existing)

	saved, err := s.store.UpdateAgreement(ctx, existing)
	if err != nil {
		return core.Agreement{}, false, fmt.Errorf("update agreement: %w", err)
	}
	s.afterWrite(ctx, applog.OpUpdate, saved, amqp.OpUpsert)
	return saved, false, nil
}

// Delete removes agreement id.
func (s *AgreementService) Delete(ctx context.Context, id string) error {
	version, err := s.store.DeleteAgreement(ctx, id)
	if err != nil {
		return fmt.Errorf("delete agreement %s: %w", id, err)
	}
	s.afterWrite(ctx, applog.OpDelete, core.Agreement{ID: id, Version: version}, amqp.OpDelete)
	return nil
}

// Get returns agreement id with its derived fields computed as of now.
func (s *AgreementService) Get(ctx context.Context, id string) (core.Agreement, error) {
	a, err := s.store.GetAgreement(ctx, id)
	if err != nil {
		return core.Agreement{}, err
	}
	s.calc.Apply(&a)
	return a, nil
}

// ListOptions pages and orders List results. SortOrder is -1 for descending
// and 1 for ascending.
type ListOptions struct {
	Skip      int
	Limit     int
	SortBy    string
	SortOrder int
}

func (o ListOptions) normalized() (ListOptions, error) {
	if o.Skip < 0 {
		return o, fmt.Errorf("skip must not be negative: %w", core.ErrInvalidInput)
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.SortBy == "" {
		o.SortBy = DefaultSortKey
	}
	if !core.IsSortable(o.SortBy) {
		return o, fmt.Errorf("cannot sort by %q: %w", o.SortBy, core.ErrInvalidInput)
	}
	switch o.SortOrder {
	case 0:
		o.SortOrder = -1
	case -1, 1:
	default:
		return o, fmt.Errorf("sort_order must be 1 or -1: %w", core.ErrInvalidInput)
	}
	return o, nil
}

// List returns one page of agreements.
func (s *AgreementService) List(ctx context.Context, opts ListOptions) ([]core.Agreement, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	dir := core.SortDesc
	if opts.SortOrder == 1 {
		dir = core.SortAsc
	}
	sorted := core.SortAgreements(all, core.SortState{Key: opts.SortBy, Direction: dir})
	if opts.Skip >= len(sorted) {
		return []core.Agreement{}, nil
	}
	end := min(opts.Skip+opts.Limit, len(sorted))
	return sorted[opts.Skip:end], nil
}

// All returns every live agreement with derived fields computed as of now.
func (s *AgreementService) All(ctx context.Context) ([]core.Agreement, error) {
	list, err := s.store.ListAgreements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	s.calc.ApplyAll(list)
	return list, nil
}

// Table returns the grid projection for q.
func (s *AgreementService) Table(ctx context.Context, q core.Query) (core.Projection, error) {
	all, err := s.All(ctx)
	if err != nil {
		return core.Projection{}, err
	}
	return core.Project(all, q), nil
}

func (s *AgreementService) Summary(ctx context.Context) (core.Summary, error) {
	all, err := s.All(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Aggregate(all), nil
}

func (s *AgreementService) Charts(ctx context.Context) (core.Charts, error) {
	all, err := s.All(ctx)
	if err != nil {
		return core.Charts{}, err
	}
	return core.BuildCharts(all), nil
}

// RowError reports why one imported row was rejected. Row is 1-based and
// counts the header.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Created int        `json:"created"`
	Failed  []RowError `json:"failed"`
}

// Import creates one agreement per row. Invalid rows are reported and skipped.
func (s *AgreementService) Import(ctx context.Context, rows []core.AgreementFields) (ImportResult, error) {
	res := ImportResult{Failed: []RowError{}}
	for i, f := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := s.Create(ctx, f); err != nil {
			if errors.Is(err, core.ErrInvalidInput) {
				res.Failed = append(res.Failed, RowError{Row: i + 2, Error: err.Error()})
				continue
			}
			return res, err
		}
		res.Created++
	}
	slog.InfoContext(ctx, "Agreements imported",
		applog.FieldCount, res.Created,
		"failed", len(res.Failed))
	return res, nil
}

func (s *AgreementService) afterWrite(ctx context.Context, op string, a core.Agreement, syncOp amqp.Op) {
	s.log.LogAgreementSaved(ctx, op, a.ID, a.SurveyNo, a.LandOwner, a.Version)

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	if err := s.publishSyncMessage(ctx, a.ID, a.Version, syncOp); err != nil {
		// the record stays pending and the worker's periodic pass picks it up
		s.log.LogError(ctx, "Failed to publish sync message", err,
			applog.ComponentAMQP, applog.OpSync,
			applog.NewFields().
				WithAgreement(a.ID, a.SurveyNo, a.LandOwner).
				WithErrorType(applog.ErrorTypeNetwork))
	}
}

func (s *AgreementService) publishSyncMessage(ctx context.Context, id string, version int64, op amqp.Op) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishAgreementSync(ctx, id, version, op)
}

// Close closes the change feed connection.
func (s *AgreementService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close agreement service: amqp: %w", err)
		}
	}
	return nil
}
