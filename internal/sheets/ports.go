package sheets

import (
	"context"
	"time"

	"landledger/internal/core"
)

// Mirror keeps a spreadsheet copy of the agreement table, one row per id.
type Mirror interface {
	// Upsert writes the row for a, replacing any row with the same id.
	Upsert(ctx context.Context, a core.Agreement) error
	// Delete removes the row for id. A missing row is not an error.
	Delete(ctx context.Context, id string) error
}

// trailing columns appended after the grid columns
var trailer = []string{"Agr 1 Expense", "Agr 2 Expense", "Agr 3 Expense", "Total Expense", "Real Value/Acre", "Version", "Updated At"}

// Header returns the mirrored column titles. The first column is always the id.
func Header() []any {
	cols := core.Columns(core.ViewAll)
	out := make([]any, 0, len(cols)+len(trailer)+1)
	out = append(out, "ID")
	for _, c := range cols {
		out = append(out, c.Label)
	}
	for _, t := range trailer {
		out = append(out, t)
	}
	return out
}

// Row renders a as sheet cells in Header order.
func Row(a core.Agreement) []any {
	cols := core.Columns(core.ViewAll)
	out := make([]any, 0, len(cols)+len(trailer)+1)
	out = append(out, a.ID)
	for _, c := range cols {
		v, _ := core.CellValue(a, c.Key)
		out = append(out, v)
	}
	return append(out,
		a.Agreement1Expense,
		a.Agreement2Expense,
		a.Agreement3Expense,
		a.TotalAgreementExpense,
		a.RealValuePerAcre,
		a.Version,
		a.UpdatedAt.UTC().Format(time.RFC3339),
	)
}
