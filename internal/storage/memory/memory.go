// Package memory is a process-local storage backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"landledger/internal/core"
	"landledger/internal/storage"
)

type record struct {
	agreement core.Agreement
	deleted   bool
	synced    bool
}

type Store struct {
	mu         sync.Mutex
	agreements map[string]*record
	users      map[string]core.User
	now        func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		agreements: map[string]*record{},
		users:      map[string]core.User{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateAgreement(_ context.Context, a core.Agreement) (core.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Version = 1
	if rec, ok := s.agreements[a.ID]; ok {
		if !rec.deleted {
			return core.Agreement{}, fmt.Errorf("create agreement %s: %w", a.ID, storage.ErrDuplicate)
		}
		a.Version = rec.agreement.Version + 1
	}
	now := s.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.agreements[a.ID] = &record{agreement: a}
	return a, nil
}

func (s *Store) UpdateAgreement(_ context.Context, a core.Agreement) (core.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.agreements[a.ID]
	if !ok || rec.deleted {
		return core.Agreement{}, core.ErrNotFound
	}
	a.Version = rec.agreement.Version + 1
	a.CreatedAt = rec.agreement.CreatedAt
	a.UpdatedAt = s.now()
	rec.agreement = a
	rec.synced = false
	return a, nil
}

func (s *Store) GetAgreement(ctx context.Context, id string) (core.Agreement, error) {
	a, deleted, err := s.GetAgreementVersion(ctx, id)
	if err != nil {
		return core.Agreement{}, err
	}
	if deleted {
		return core.Agreement{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAgreementVersion(_ context.Context, id string) (core.Agreement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.agreements[id]
	if !ok {
		return core.Agreement{}, false, core.ErrNotFound
	}
	return rec.agreement, rec.deleted, nil
}

// ListAgreements returns live records newest first, like the SQLite backend.
func (s *Store) ListAgreements(_ context.Context) ([]core.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Agreement{}
	for _, rec := range s.agreements {
		if !rec.deleted {
			out = append(out, rec.agreement)
		}
	}
	slices.SortFunc(out, func(a, b core.Agreement) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) DeleteAgreement(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.agreements[id]
	if !ok || rec.deleted {
		return 0, core.ErrNotFound
	}
	rec.deleted = true
	rec.synced = false
	rec.agreement.Version++
	rec.agreement.UpdatedAt = s.now()
	return rec.agreement.Version, nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]storage.PendingSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*record
	for _, rec := range s.agreements {
		if !rec.synced {
			pending = append(pending, rec)
		}
	}
	slices.SortFunc(pending, func(a, b *record) int {
		return a.agreement.UpdatedAt.Compare(b.agreement.UpdatedAt)
	})
	out := make([]storage.PendingSync, 0, min(limit, len(pending)))
	for _, rec := range pending {
		if len(out) == limit {
			break
		}
		out = append(out, storage.PendingSync{ID: rec.agreement.ID, Version: rec.agreement.Version, Deleted: rec.deleted})
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.agreements[id]; ok && rec.agreement.Version == version {
		rec.synced = true
	}
	return nil
}

// MarkSyncError leaves the record pending so the next pass retries it.
func (s *Store) MarkSyncError(context.Context, string) error {
	return nil
}

func (s *Store) PurgeSyncedDeletions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.agreements {
		if rec.deleted && rec.synced {
			delete(s.agreements, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user %s: %w", u.Username, storage.ErrDuplicate)
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}
