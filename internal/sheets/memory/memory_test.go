package memory

import (
	"context"
	"errors"
	"testing"

	"landledger/internal/core"
	"landledger/internal/sheets"
)

func agreement(id string, version int64) core.Agreement {
	a := core.Agreement{ID: id, Version: version}
	a.SurveyNo = "S-" + id
	a.TotalAgreementExpense = 1500
	return a
}

func TestMirrorUpsertAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()

	_ = m.Upsert(ctx, agreement("a", 1))
	_ = m.Upsert(ctx, agreement("b", 1))
	_ = m.Upsert(ctx, agreement("a", 2))

	rows := m.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][0] != "a" || rows[2][0] != "b" {
		t.Errorf("unexpected order: %v %v %v", rows[0][0], rows[1][0], rows[2][0])
	}

	row, _ := m.Row("a")
	header := sheets.Header()
	if len(row) != len(header) {
		t.Fatalf("row has %d cells, header %d", len(row), len(header))
	}
	if got := row[len(row)-2]; got != int64(2) {
		t.Errorf("version cell = %v, want 2", got)
	}

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
	if _, ok := m.Row("a"); ok {
		t.Error("row a still present")
	}
	if rows := m.Rows(); len(rows) != 2 {
		t.Errorf("rows after delete = %d, want 2", len(rows))
	}
}

func TestMirrorFailWith(t *testing.T) {
	m := New()
	boom := errors.New("quota exceeded")
	m.FailWith(boom)
	if err := m.Upsert(context.Background(), agreement("a", 1)); !errors.Is(err, boom) {
		t.Errorf("Upsert error = %v, want %v", err, boom)
	}
	m.FailWith(nil)
	if err := m.Upsert(context.Background(), agreement("a", 1)); err != nil {
		t.Errorf("Upsert after recovery: %v", err)
	}
}
