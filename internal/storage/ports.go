package storage

import (
	"context"
	"errors"

	"landledger/internal/core"
)

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("duplicate key")

// AgreementStore persists agreement records. Deleted records are kept as
// tombstones until the mirror has seen the deletion, but are invisible to
// Get and List.
type AgreementStore interface {
	CreateAgreement(ctx context.Context, a core.Agreement) (core.Agreement, error)
	UpdateAgreement(ctx context.Context, a core.Agreement) (core.Agreement, error)
	GetAgreement(ctx context.Context, id string) (core.Agreement, error)
	ListAgreements(ctx context.Context) ([]core.Agreement, error)
	DeleteAgreement(ctx context.Context, id string) (int64, error)
}

// UserStore persists API accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
}

// PendingSync is a record whose latest version has not reached the mirror.
type PendingSync struct {
	ID      string
	Version int64
	Deleted bool
}

// SyncTracker tracks mirror state per record.
type SyncTracker interface {
	PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
	PurgeSyncedDeletions(ctx context.Context) (int64, error)
	// GetAgreementVersion returns a record even if deleted, with its deletion flag.
	GetAgreementVersion(ctx context.Context, id string) (core.Agreement, bool, error)
}

// Store is everything the backends provide.
type Store interface {
	AgreementStore
	UserStore
	SyncTracker
	Ping(ctx context.Context) error
	Close() error
}
