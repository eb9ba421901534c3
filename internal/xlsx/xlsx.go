// Package xlsx converts agreement grids to and from Excel workbooks.
package xlsx

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"landledger/internal/core"
)

const (
	SheetName   = "Agreements"
	TotalHeader = "Total"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export writes the projection as a workbook: the visible columns of its view
// followed by a Total column holding each record's total agreement expense.
func Export(w io.Writer, p core.Projection) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, 0, len(p.Columns)+1)
	for _, c := range p.Columns {
		header = append(header, c.Label)
	}
	header = append(header, TotalHeader)
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, a := range p.Rows {
		row := make([]any, 0, len(header))
		for _, c := range p.Columns {
			v, _ := core.CellValue(a, c.Key)
			row = append(row, v)
		}
		row = append(row, a.TotalAgreementExpense)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Encode is Export into a byte slice.
func Encode(p core.Projection) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setter stores one cell into the editable fields.
type setter func(f *core.AgreementFields, raw string) error

func text(dst func(*core.AgreementFields) *string) setter {
	return func(f *core.AgreementFields, raw string) error {
		*dst(f) = raw
		return nil
	}
}

func date(dst func(*core.AgreementFields) *string) setter {
	return func(f *core.AgreementFields, raw string) error {
		*dst(f) = excelDate(raw)
		return nil
	}
}

func amount(dst func(*core.AgreementFields) *float64) setter {
	return func(f *core.AgreementFields, raw string) error {
		v, err := core.ParseAmount(raw)
		if err != nil {
			return err
		}
		*dst(f) = v
		return nil
	}
}

var setters = map[string]setter{
	"survey_no":      text(func(f *core.AgreementFields) *string { return &f.SurveyNo }),
	"firm_name":      text(func(f *core.AgreementFields) *string { return &f.FirmName }),
	"land_owner":     text(func(f *core.AgreementFields) *string { return &f.LandOwner }),
	"area":           text(func(f *core.AgreementFields) *string { return &f.Area }),
	"doc_no_1":       text(func(f *core.AgreementFields) *string { return &f.DocNo1 }),
	"agreement_date": date(func(f *core.AgreementFields) *string { return &f.AgreementDate }),
	"development_months": func(f *core.AgreementFields, raw string) error {
		v, err := core.ParseAmount(raw)
		if err != nil || v != float64(int(v)) {
			return core.ErrInvalidAmount
		}
		f.DevelopmentMonths = int(v)
		return nil
	},
	"possession_status": func(f *core.AgreementFields, raw string) error {
		f.PossessionStatus = core.PossessionStatus(raw)
		return nil
	},
	"rent_per_sqft":   amount(func(f *core.AgreementFields) *float64 { return &f.RentPerSqft }),
	"free_area_bu":    amount(func(f *core.AgreementFields) *float64 { return &f.FreeAreaBU }),
	"free_area_cp":    amount(func(f *core.AgreementFields) *float64 { return &f.FreeAreaCP }),
	"agreement_value": amount(func(f *core.AgreementFields) *float64 { return &f.AgreementValue }),
	"deposit_da":      amount(func(f *core.AgreementFields) *float64 { return &f.DepositDA }),

	"stamp_duty_1":       amount(func(f *core.AgreementFields) *float64 { return &f.StampDuty1 }),
	"regi_dd_1":          amount(func(f *core.AgreementFields) *float64 { return &f.RegiDD1 }),
	"handling_charges_1": amount(func(f *core.AgreementFields) *float64 { return &f.HandlingCharges1 }),
	"adjudication_1":     amount(func(f *core.AgreementFields) *float64 { return &f.Adjudication1 }),
	"legal_expenses_1":   amount(func(f *core.AgreementFields) *float64 { return &f.LegalExpenses1 }),

	"doc_no_2":           text(func(f *core.AgreementFields) *string { return &f.DocNo2 }),
	"date_2":             date(func(f *core.AgreementFields) *string { return &f.Date2 }),
	"stamp_duty_2":       amount(func(f *core.AgreementFields) *float64 { return &f.StampDuty2 }),
	"regi_dd_2":          amount(func(f *core.AgreementFields) *float64 { return &f.RegiDD2 }),
	"handling_charges_2": amount(func(f *core.AgreementFields) *float64 { return &f.HandlingCharges2 }),
	"legal_expenses_2":   amount(func(f *core.AgreementFields) *float64 { return &f.LegalExpenses2 }),

	"doc_no_3":           text(func(f *core.AgreementFields) *string { return &f.DocNo3 }),
	"stamp_duty_3":       amount(func(f *core.AgreementFields) *float64 { return &f.StampDuty3 }),
	"regi_dd_3":          amount(func(f *core.AgreementFields) *float64 { return &f.RegiDD3 }),
	"handling_charges_3": amount(func(f *core.AgreementFields) *float64 { return &f.HandlingCharges3 }),
}

// headerKeys maps lower-cased column labels and keys onto field keys.
func headerKeys() map[string]string {
	out := make(map[string]string, 2*len(setters))
	for _, c := range core.Columns(core.ViewAll) {
		if _, ok := setters[c.Key]; ok {
			out[strings.ToLower(c.Label)] = c.Key
			out[c.Key] = c.Key
		}
	}
	return out
}

// Import reads the first sheet of a workbook laid out like Export's output.
// Headers match column labels or field keys, case-insensitively; unknown
// columns such as derived values and Total are ignored. Element i of the
// result came from sheet row i+2. A cell that cannot be read as a number
// fails the whole import with core.ErrInvalidInput.
func Import(r io.Reader) ([]core.AgreementFields, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets: %w", core.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return []core.AgreementFields{}, nil
	}

	known := headerKeys()
	cols := make(map[int]string, len(rows[0]))
	for i, h := range rows[0] {
		if key, ok := known[strings.ToLower(strings.TrimSpace(h))]; ok {
			cols[i] = key
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no agreement columns in header: %w", core.ErrInvalidInput)
	}

	out := make([]core.AgreementFields, 0, len(rows)-1)
	for n, row := range rows[1:] {
		var fields core.AgreementFields
		for i, key := range cols {
			raw := ""
			if i < len(row) {
				raw = strings.TrimSpace(row[i])
			}
			if err := setters[key](&fields, raw); err != nil {
				return nil, fmt.Errorf("row %d column %s: value %q is not a number: %w", n+2, key, raw, core.ErrInvalidInput)
			}
		}
		out = append(out, fields)
	}
	return out, nil
}

// excelDate turns a serial date cell into DD-MM-YYYY. Text is returned as is.
func excelDate(raw string) string {
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return raw
	}
	return core.FormatDate(t)
}
