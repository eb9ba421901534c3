package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"landledger/internal/amqp"
	"landledger/internal/core"
	"landledger/internal/sheets"
	"landledger/internal/storage"
)

// SyncWorker mirrors agreements from the database into a spreadsheet.
type SyncWorker struct {
	store     storage.SyncTracker
	mirror    sheets.Mirror
	calc      *core.Calculator
	batchSize int
}

func NewSyncWorker(store storage.SyncTracker, mirror sheets.Mirror, calc *core.Calculator, batchSize int) *SyncWorker {
	if calc == nil {
		calc = core.NewCalculator()
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		calc:      calc,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one change notification from AMQP. The record
// is always re-read so a late message never overwrites newer data.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.AgreementSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version,
		"op", msg.Op)

	a, deleted, err := w.store.GetAgreementVersion(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// tombstone already purged or record never committed
		if msg.Op == amqp.OpDelete {
			if err := w.mirror.Delete(ctx, msg.ID); err != nil {
				return fmt.Errorf("delete mirrored row: %w", err)
			}
		}
		slog.WarnContext(ctx, "Agreement not found for sync message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get agreement from storage: %w", err)
	}

	if a.Version > msg.Version {
		slog.DebugContext(ctx, "Sync message is older than stored record",
			"id", msg.ID,
			"message_version", msg.Version,
			"stored_version", a.Version)
	}

	return w.sync(ctx, a, deleted)
}

// ProcessPending syncs one batch of records whose mirror row is out of date.
// It is the backstop for lost AMQP messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck drains a larger batch of pending records when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced == 0 {
		slog.InfoContext(ctx, "No pending agreements found on startup")
	}
	return nil
}

// PurgeDeleted drops tombstones whose removal already reached the mirror.
func (w *SyncWorker) PurgeDeleted(ctx context.Context) (int64, error) {
	n, err := w.store.PurgeSyncedDeletions(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge synced deletions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged synced deletions", "count", n)
	}
	return n, nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.PendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending agreements: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending agreements", "count", len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		a, deleted, err := w.store.GetAgreementVersion(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get agreement", "id", p.ID, "error", err)
			failed++
			continue
		}
		if err := w.sync(ctx, a, deleted); err != nil {
			slog.ErrorContext(ctx, "Failed to sync agreement", "id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

func (w *SyncWorker) sync(ctx context.Context, a core.Agreement, deleted bool) error {
	var err error
	if deleted {
		err = w.mirror.Delete(ctx, a.ID)
	} else {
		w.calc.Apply(&a)
		err = w.mirror.Upsert(ctx, a)
	}
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, a.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", a.ID, "error", markErr)
		}
		return fmt.Errorf("mirror agreement %s: %w", a.ID, err)
	}

	// a stale version leaves the record pending for the next pass
	if err := w.store.MarkSynced(ctx, a.ID, a.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", a.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced agreement",
		"id", a.ID,
		"version", a.Version,
		"deleted", deleted,
		"survey_no", a.SurveyNo)
	return nil
}
