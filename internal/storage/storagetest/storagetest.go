// Package storagetest holds behaviour tests every storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"landledger/internal/core"
	"landledger/internal/storage"
)

// Agreement returns a valid record with the given id and survey number.
func Agreement(id, surveyNo string) core.Agreement {
	a := core.Agreement{ID: id}
	a.SurveyNo = surveyNo
	a.FirmName = "Green Acres"
	a.LandOwner = "R. Patil"
	a.Area = "0.20.00"
	a.DocNo1 = "DOC-" + id
	a.AgreementDate = "01-01-2024"
	a.DevelopmentMonths = 6
	a.PossessionStatus = core.PossessionNotGiven
	a.RentPerSqft = 10
	a.FreeAreaBU = 1000
	a.AgreementValue = 250000
	a.StampDuty1 = 1500
	a.AreaInGuntas = 20
	a.DevelopmentEndDate = "01-07-2024"
	a.TotalAgreementExpense = 1500
	return a
}

// Run exercises a fresh store produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("create get list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateAgreement(ctx, Agreement("a1", "12/A"))
		if err != nil {
			t.Fatalf("CreateAgreement: %v", err)
		}
		if created.Version != 1 || created.CreatedAt.IsZero() {
			t.Errorf("created = version %d created_at %v", created.Version, created.CreatedAt)
		}

		got, err := s.GetAgreement(ctx, "a1")
		if err != nil {
			t.Fatalf("GetAgreement: %v", err)
		}
		if got.SurveyNo != "12/A" || got.AgreementValue != 250000 || got.PossessionStatus != core.PossessionNotGiven {
			t.Errorf("round trip lost fields: %+v", got.AgreementFields)
		}
		if got.AreaInGuntas != 20 || got.DevelopmentEndDate != "01-07-2024" {
			t.Errorf("derived fields not stored: %+v", got.DerivedFields)
		}

		time.Sleep(2 * time.Millisecond)
		if _, err := s.CreateAgreement(ctx, Agreement("a2", "13")); err != nil {
			t.Fatalf("CreateAgreement second: %v", err)
		}
		list, err := s.ListAgreements(ctx)
		if err != nil {
			t.Fatalf("ListAgreements: %v", err)
		}
		if len(list) != 2 || list[0].ID != "a2" {
			t.Errorf("list = %v, want newest first", list)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.CreateAgreement(ctx, Agreement("dup", "1")); err != nil {
			t.Fatal(err)
		}
		if _, err := s.CreateAgreement(ctx, Agreement("dup", "1")); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update bumps version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, _ := s.CreateAgreement(ctx, Agreement("u1", "1"))

		a.FirmName = "Renamed"
		a.PossessionStatus = core.PossessionGiven
		updated, err := s.UpdateAgreement(ctx, a)
		if err != nil {
			t.Fatalf("UpdateAgreement: %v", err)
		}
		if updated.Version != 2 || updated.FirmName != "Renamed" || updated.PossessionStatus != core.PossessionGiven {
			t.Errorf("updated = %+v", updated)
		}
		if !updated.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("created_at changed from %v to %v", a.CreatedAt, updated.CreatedAt)
		}

		if _, err := s.UpdateAgreement(ctx, Agreement("missing", "1")); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("update missing: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete tombstones", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _ = s.CreateAgreement(ctx, Agreement("d1", "1"))

		version, err := s.DeleteAgreement(ctx, "d1")
		if err != nil {
			t.Fatalf("DeleteAgreement: %v", err)
		}
		if version != 2 {
			t.Errorf("tombstone version = %d, want 2", version)
		}
		if _, err := s.GetAgreement(ctx, "d1"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("deleted record still visible: %v", err)
		}
		if _, deleted, err := s.GetAgreementVersion(ctx, "d1"); err != nil || !deleted {
			t.Errorf("GetAgreementVersion = deleted %v err %v", deleted, err)
		}
		if _, err := s.DeleteAgreement(ctx, "d1"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second delete: expected ErrNotFound, got %v", err)
		}
		if list, _ := s.ListAgreements(ctx); len(list) != 0 {
			t.Errorf("list still holds deleted record: %v", list)
		}
	})

	t.Run("create over tombstone", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _ = s.CreateAgreement(ctx, Agreement("r1", "1"))
		if _, err := s.DeleteAgreement(ctx, "r1"); err != nil {
			t.Fatalf("DeleteAgreement: %v", err)
		}

		again, err := s.CreateAgreement(ctx, Agreement("r1", "9"))
		if err != nil {
			t.Fatalf("CreateAgreement over tombstone: %v", err)
		}
		if again.Version != 3 {
			t.Errorf("version = %d, want 3", again.Version)
		}
		got, err := s.GetAgreement(ctx, "r1")
		if err != nil {
			t.Fatalf("GetAgreement: %v", err)
		}
		if got.SurveyNo != "9" || got.Version != 3 {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("sync tracking", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, _ := s.CreateAgreement(ctx, Agreement("s1", "1"))
		_, _ = s.CreateAgreement(ctx, Agreement("s2", "2"))

		pending, err := s.PendingSync(ctx, 10)
		if err != nil {
			t.Fatalf("PendingSync: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("pending = %v, want 2", pending)
		}
		if limited, _ := s.PendingSync(ctx, 1); len(limited) != 1 {
			t.Errorf("limit ignored: %v", limited)
		}

		if err := s.MarkSynced(ctx, "s1", a.Version); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}
		pending, _ = s.PendingSync(ctx, 10)
		if len(pending) != 1 || pending[0].ID != "s2" {
			t.Errorf("after sync pending = %v", pending)
		}

		// a stale version must not clear a newer change
		a.FirmName = "Changed"
		if _, err := s.UpdateAgreement(ctx, a); err != nil {
			t.Fatal(err)
		}
		_ = s.MarkSynced(ctx, "s1", a.Version)
		pending, _ = s.PendingSync(ctx, 10)
		if len(pending) != 2 {
			t.Errorf("stale MarkSynced cleared newer version: %v", pending)
		}

		if err := s.MarkSyncError(ctx, "s2"); err != nil {
			t.Fatalf("MarkSyncError: %v", err)
		}
		pending, _ = s.PendingSync(ctx, 10)
		if len(pending) != 2 {
			t.Errorf("errored record not retried: %v", pending)
		}
	})

	t.Run("purge synced deletions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _ = s.CreateAgreement(ctx, Agreement("p1", "1"))
		version, _ := s.DeleteAgreement(ctx, "p1")

		if n, _ := s.PurgeSyncedDeletions(ctx); n != 0 {
			t.Errorf("purged unsynced tombstone")
		}
		pending, _ := s.PendingSync(ctx, 10)
		if len(pending) != 1 || !pending[0].Deleted {
			t.Fatalf("pending = %v, want deleted p1", pending)
		}
		_ = s.MarkSynced(ctx, "p1", version)
		if n, err := s.PurgeSyncedDeletions(ctx); err != nil || n != 1 {
			t.Errorf("PurgeSyncedDeletions = %d, %v", n, err)
		}
		if _, _, err := s.GetAgreementVersion(ctx, "p1"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("tombstone survived purge: %v", err)
		}
	})

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := core.User{ID: "u1", Username: "alice", PasswordHash: "hash", CreatedAt: time.Now().UTC()}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := s.CreateUser(ctx, core.User{ID: "u2", Username: "alice", PasswordHash: "x"}); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("duplicate username: expected ErrDuplicate, got %v", err)
		}
		got, err := s.GetUserByUsername(ctx, "alice")
		if err != nil || got.ID != "u1" || got.PasswordHash != "hash" {
			t.Errorf("GetUserByUsername = %+v, %v", got, err)
		}
		if _, err := s.GetUser(ctx, "u1"); err != nil {
			t.Errorf("GetUser: %v", err)
		}
		if _, err := s.GetUserByUsername(ctx, "bob"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("unknown user: expected ErrNotFound, got %v", err)
		}
	})
}
