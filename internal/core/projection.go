package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SortDirection is the order of a table sort.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts asc/desc and the numeric 1/-1 forms. Empty is ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "1":
		return SortAsc, nil
	case "desc", "-1":
		return SortDesc, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}

// SortState is the current sort of the grid. An empty Key means unsorted.
type SortState struct {
	Key       string        `json:"key,omitempty"`
	Direction SortDirection `json:"direction"`
}

// Click returns the state after the user clicks the header of key: clicking
// the active ascending column flips it to descending, anything else sorts
// ascending by key.
func (s SortState) Click(key string) SortState {
	if s.Key == key && s.Direction == SortAsc {
		return SortState{Key: key, Direction: SortDesc}
	}
	return SortState{Key: key, Direction: SortAsc}
}

// ViewMode selects which column groups the grid shows.
type ViewMode string

const (
	ViewAll         ViewMode = "all"
	ViewAgr1POA     ViewMode = "agr1_poa"
	ViewAgr1POAWork ViewMode = "agr1_poa_work"
	ViewPOAOnly     ViewMode = "poa_only"
	ViewWorkOnly    ViewMode = "work_only"
)

var viewAliases = map[string]ViewMode{
	"":              ViewAll,
	"all":           ViewAll,
	"agr1_poa":      ViewAgr1POA,
	"agr1+poa":      ViewAgr1POA,
	"agr1_poa_work": ViewAgr1POAWork,
	"agr1+poa+work": ViewAgr1POAWork,
	"poa_only":      ViewPOAOnly,
	"poa-only":      ViewPOAOnly,
	"work_only":     ViewWorkOnly,
	"work-only":     ViewWorkOnly,
}

// ParseViewMode resolves a view name or one of its aliases. Empty means all.
func ParseViewMode(s string) (ViewMode, error) {
	if v, ok := viewAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return "", fmt.Errorf("invalid view mode %q", s)
}

// ColumnGroup is a block of related grid columns.
type ColumnGroup string

const (
	GroupBasic ColumnGroup = "basic"
	GroupAgr1  ColumnGroup = "agr1"
	GroupAgr2  ColumnGroup = "agr2"
	GroupAgr3  ColumnGroup = "agr3"
)

// Groups lists the column groups visible in the view.
func (v ViewMode) Groups() []ColumnGroup {
	switch v {
	case ViewAgr1POA:
		return []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2}
	case ViewPOAOnly:
		return []ColumnGroup{GroupBasic, GroupAgr2}
	case ViewWorkOnly:
		return []ColumnGroup{GroupBasic, GroupAgr3}
	default:
		return []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2, GroupAgr3}
	}
}

// Shows reports whether the group is visible in the view.
func (v ViewMode) Shows(g ColumnGroup) bool {
	return slices.Contains(v.Groups(), g)
}

// Column describes one grid column.
type Column struct {
	Key     string      `json:"key"`
	Label   string      `json:"label"`
	Group   ColumnGroup `json:"group"`
	Numeric bool        `json:"numeric"`
}

type accessor struct {
	num func(Agreement) float64
	str func(Agreement) string
	tm  func(Agreement) time.Time
}

func numField(f func(Agreement) float64) accessor   { return accessor{num: f} }
func strField(f func(Agreement) string) accessor    { return accessor{str: f} }
func timeField(f func(Agreement) time.Time) accessor { return accessor{tm: f} }

func (acc accessor) compare(a, b Agreement) int {
	switch {
	case acc.num != nil:
		return cmp.Compare(acc.num(a), acc.num(b))
	case acc.tm != nil:
		return acc.tm(a).Compare(acc.tm(b))
	default:
		return strings.Compare(acc.str(a), acc.str(b))
	}
}

var allColumns = []Column{
	{"survey_no", "Survey No", GroupBasic, false},
	{"firm_name", "Firm Name", GroupBasic, false},
	{"land_owner", "Land Owner", GroupBasic, false},
	{"area", "Area", GroupBasic, false},
	{"area_in_guntas", "Guntas", GroupBasic, true},
	{"agreement_date", "Agreement Date", GroupBasic, false},
	{"development_months", "Dev Months", GroupBasic, true},
	{"development_end_date", "Dev End Date", GroupBasic, false},
	{"possession_status", "Possession", GroupBasic, false},
	{"rent_per_sqft", "Rent/Sqft", GroupBasic, true},
	{"free_area_bu", "Free BU Area", GroupBasic, true},
	{"free_area_cp", "Free CP Area", GroupBasic, true},
	{"total_months", "Total Months", GroupBasic, true},
	{"total_rent", "Total Rent", GroupBasic, true},
	{"agreement_value", "Agreement Value", GroupBasic, true},
	{"deposit_da", "Deposit DA", GroupBasic, true},

	{"doc_no_1", "Agr 1 Doc No", GroupAgr1, false},
	{"stamp_duty_1", "Agr 1 Stamp Duty", GroupAgr1, true},
	{"regi_dd_1", "Agr 1 Regi DD", GroupAgr1, true},
	{"handling_charges_1", "Agr 1 Handling", GroupAgr1, true},
	{"adjudication_1", "Agr 1 Adjudication", GroupAgr1, true},
	{"legal_expenses_1", "Agr 1 Legal Exp", GroupAgr1, true},

	{"doc_no_2", "Agr 2 Doc No", GroupAgr2, false},
	{"date_2", "Agr 2 Date", GroupAgr2, false},
	{"stamp_duty_2", "Agr 2 Stamp Duty", GroupAgr2, true},
	{"regi_dd_2", "Agr 2 Regi DD", GroupAgr2, true},
	{"handling_charges_2", "Agr 2 Handling", GroupAgr2, true},
	{"legal_expenses_2", "Agr 2 Legal Exp", GroupAgr2, true},

	{"doc_no_3", "Agr 3 Doc No", GroupAgr3, false},
	{"stamp_duty_3", "Agr 3 Stamp Duty", GroupAgr3, true},
	{"regi_dd_3", "Agr 3 Regi DD", GroupAgr3, true},
	{"handling_charges_3", "Agr 3 Handling", GroupAgr3, true},
}

var fields = map[string]accessor{
	"survey_no":            strField(func(a Agreement) string { return a.SurveyNo }),
	"firm_name":            strField(func(a Agreement) string { return a.FirmName }),
	"land_owner":           strField(func(a Agreement) string { return a.LandOwner }),
	"area":                 strField(func(a Agreement) string { return a.Area }),
	"area_in_guntas":       numField(func(a Agreement) float64 { return a.AreaInGuntas }),
	"agreement_date":       strField(func(a Agreement) string { return a.AgreementDate }),
	"development_months":   numField(func(a Agreement) float64 { return float64(a.DevelopmentMonths) }),
	"development_end_date": strField(func(a Agreement) string { return a.DevelopmentEndDate }),
	"possession_status":    strField(func(a Agreement) string { return string(a.PossessionStatus) }),
	"rent_per_sqft":        numField(func(a Agreement) float64 { return a.RentPerSqft }),
	"free_area_bu":         numField(func(a Agreement) float64 { return a.FreeAreaBU }),
	"free_area_cp":         numField(func(a Agreement) float64 { return a.FreeAreaCP }),
	"total_months":         numField(func(a Agreement) float64 { return float64(a.TotalMonths) }),
	"total_rent":           numField(func(a Agreement) float64 { return a.TotalRent }),
	"agreement_value":      numField(func(a Agreement) float64 { return a.AgreementValue }),
	"deposit_da":           numField(func(a Agreement) float64 { return a.DepositDA }),

	"doc_no_1":           strField(func(a Agreement) string { return a.DocNo1 }),
	"stamp_duty_1":       numField(func(a Agreement) float64 { return a.StampDuty1 }),
	"regi_dd_1":          numField(func(a Agreement) float64 { return a.RegiDD1 }),
	"handling_charges_1": numField(func(a Agreement) float64 { return a.HandlingCharges1 }),
	"adjudication_1":     numField(func(a Agreement) float64 { return a.Adjudication1 }),
	"legal_expenses_1":   numField(func(a Agreement) float64 { return a.LegalExpenses1 }),

	"doc_no_2":           strField(func(a Agreement) string { return a.DocNo2 }),
	"date_2":             strField(func(a Agreement) string { return a.Date2 }),
	"stamp_duty_2":       numField(func(a Agreement) float64 { return a.StampDuty2 }),
	"regi_dd_2":          numField(func(a Agreement) float64 { return a.RegiDD2 }),
	"handling_charges_2": numField(func(a Agreement) float64 { return a.HandlingCharges2 }),
	"legal_expenses_2":   numField(func(a Agreement) float64 { return a.LegalExpenses2 }),

	"doc_no_3":           strField(func(a Agreement) string { return a.DocNo3 }),
	"stamp_duty_3":       numField(func(a Agreement) float64 { return a.StampDuty3 }),
	"regi_dd_3":          numField(func(a Agreement) float64 { return a.RegiDD3 }),
	"handling_charges_3": numField(func(a Agreement) float64 { return a.HandlingCharges3 }),

	"agreement_1_expense":     numField(func(a Agreement) float64 { return a.Agreement1Expense }),
	"agreement_2_expense":     numField(func(a Agreement) float64 { return a.Agreement2Expense }),
	"agreement_3_expense":     numField(func(a Agreement) float64 { return a.Agreement3Expense }),
	"total_agreement_expense": numField(func(a Agreement) float64 { return a.TotalAgreementExpense }),
	"real_value_per_acre":     numField(func(a Agreement) float64 { return a.RealValuePerAcre }),
	"created_at":              timeField(func(a Agreement) time.Time { return a.CreatedAt }),
	"updated_at":              timeField(func(a Agreement) time.Time { return a.UpdatedAt }),
}

// Columns lists the visible columns of the view, in display order.
func Columns(v ViewMode) []Column {
	out := make([]Column, 0, len(allColumns))
	for _, c := range allColumns {
		if v.Shows(c.Group) {
			out = append(out, c)
		}
	}
	return out
}

// IsSortable reports whether key names a field the grid can sort on.
func IsSortable(key string) bool {
	_, ok := fields[key]
	return ok
}

// CellValue returns the value of the named field for display or export.
// Numeric fields come back as float64, timestamps as time.Time and text
// fields as string.
func CellValue(a Agreement, key string) (any, bool) {
	acc, ok := fields[key]
	if !ok {
		return nil, false
	}
	switch {
	case acc.num != nil:
		return acc.num(a), true
	case acc.tm != nil:
		return acc.tm(a), true
	}
	return acc.str(a), true
}

// Query is a grid request.
type Query struct {
	Search string
	Sort   SortState
	View   ViewMode
}

// Projection is the grid view of a record collection. The Matched* totals
// cover the filtered rows only; Aggregate summarizes the whole collection.
type Projection struct {
	Rows                  []Agreement `json:"rows"`
	Columns               []Column    `json:"columns"`
	View                  ViewMode    `json:"view"`
	Sort                  SortState   `json:"sort"`
	Total                 int         `json:"total"`
	Matched               int         `json:"matched"`
	MatchedRent           float64     `json:"matched_rent"`
	MatchedAgreementValue float64     `json:"matched_agreement_value"`
}

// Project filters, sorts and selects columns. The input slice is left untouched.
func Project(records []Agreement, q Query) Projection {
	view := q.View
	if view == "" {
		view = ViewAll
	}
	rows := SortAgreements(Filter(records, q.Search), q.Sort)
	rent := make([]float64, len(rows))
	value := make([]float64, len(rows))
	for i, a := range rows {
		rent[i] = a.TotalRent
		value[i] = a.AgreementValue
	}
	return Projection{
		Rows:                  rows,
		Columns:               Columns(view),
		View:                  view,
		Sort:                  q.Sort,
		Total:                 len(records),
		Matched:               len(rows),
		MatchedRent:           Sum(rent...),
		MatchedAgreementValue: Sum(value...),
	}
}

// Filter keeps records whose survey number, firm name or land owner contains
// search, case-insensitively. Empty search keeps everything. The result is a new slice.
func Filter(records []Agreement, search string) []Agreement {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]Agreement, 0, len(records))
	for _, a := range records {
		if term == "" ||
			strings.Contains(strings.ToLower(a.SurveyNo), term) ||
			strings.Contains(strings.ToLower(a.FirmName), term) ||
			strings.Contains(strings.ToLower(a.LandOwner), term) {
			out = append(out, a)
		}
	}
	return out
}

// SortAgreements returns a stably sorted copy. Numeric fields compare as
// numbers, timestamps chronologically and text fields lexicographically; an
// unknown key keeps input order.
func SortAgreements(records []Agreement, s SortState) []Agreement {
	out := slices.Clone(records)
	acc, ok := fields[s.Key]
	if !ok {
		return out
	}
	if s.Direction == SortDesc {
		slices.SortStableFunc(out, func(a, b Agreement) int { return acc.compare(b, a) })
	} else {
		slices.SortStableFunc(out, acc.compare)
	}
	return out
}
