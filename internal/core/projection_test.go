package core

import (
	"slices"
	"testing"
	"time"
)

func sample() []Agreement {
	mk := func(id, survey, firm, owner string, guntas, rent float64) Agreement {
		a := Agreement{ID: id}
		a.SurveyNo, a.FirmName, a.LandOwner = survey, firm, owner
		a.AreaInGuntas, a.TotalRent = guntas, rent
		return a
	}
	return []Agreement{
		mk("1", "10", "Alpha Estates", "Kumar", 20, 500),
		mk("2", "9", "Beta Farms", "Shinde", 45.5, 0),
		mk("3", "100", "alpha builders", "Desai", 20, 1200),
		mk("4", "11", "Gamma", "kumar S.", 5, 500),
	}
}

func ids(list []Agreement) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	cases := []struct {
		search string
		want   []string
	}{
		{"", []string{"1", "2", "3", "4"}},
		{"   ", []string{"1", "2", "3", "4"}},
		{"ALPHA", []string{"1", "3"}},
		{"kumar", []string{"1", "4"}},
		{"10", []string{"1", "3"}},
		{"nobody", []string{}},
	}
	for _, tc := range cases {
		if got := ids(Filter(sample(), tc.search)); !slices.Equal(got, tc.want) {
			t.Errorf("Filter(%q) = %v, want %v", tc.search, got, tc.want)
		}
	}
}

func TestSortAgreements(t *testing.T) {
	cases := []struct {
		name  string
		state SortState
		want  []string
	}{
		{"numeric ascending stable on ties", SortState{"area_in_guntas", SortAsc}, []string{"4", "1", "3", "2"}},
		{"numeric descending", SortState{"total_rent", SortDesc}, []string{"3", "1", "4", "2"}},
		{"text compares lexicographically", SortState{"survey_no", SortAsc}, []string{"1", "3", "4", "2"}},
		{"unknown key keeps order", SortState{"nope", SortAsc}, []string{"1", "2", "3", "4"}},
		{"empty key keeps order", SortState{}, []string{"1", "2", "3", "4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(SortAgreements(sample(), tc.state)); !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSortState_Click(t *testing.T) {
	var s SortState
	s = s.Click("total_rent")
	if s != (SortState{"total_rent", SortAsc}) {
		t.Fatalf("first click = %+v", s)
	}
	s = s.Click("total_rent")
	if s != (SortState{"total_rent", SortDesc}) {
		t.Fatalf("second click = %+v", s)
	}
	s = s.Click("total_rent")
	if s != (SortState{"total_rent", SortAsc}) {
		t.Fatalf("third click = %+v", s)
	}
	s = s.Click("survey_no")
	if s != (SortState{"survey_no", SortAsc}) {
		t.Fatalf("other column = %+v", s)
	}
}

func TestParseViewModeAndGroups(t *testing.T) {
	cases := []struct {
		in   string
		want []ColumnGroup
	}{
		{"", []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2, GroupAgr3}},
		{"all", []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2, GroupAgr3}},
		{"agr1+poa", []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2}},
		{"agr1_poa_work", []ColumnGroup{GroupBasic, GroupAgr1, GroupAgr2, GroupAgr3}},
		{"poa-only", []ColumnGroup{GroupBasic, GroupAgr2}},
		{"WORK_ONLY", []ColumnGroup{GroupBasic, GroupAgr3}},
	}
	for _, tc := range cases {
		v, err := ParseViewMode(tc.in)
		if err != nil {
			t.Fatalf("ParseViewMode(%q): %v", tc.in, err)
		}
		if got := v.Groups(); !slices.Equal(got, tc.want) {
			t.Errorf("%q groups = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseViewMode("everything"); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestColumns(t *testing.T) {
	for _, c := range Columns(ViewWorkOnly) {
		if c.Group != GroupBasic && c.Group != GroupAgr3 {
			t.Errorf("work_only exposes column %s from group %s", c.Key, c.Group)
		}
	}
	if got, want := len(Columns(ViewAll)), len(allColumns); got != want {
		t.Errorf("all view has %d columns, want %d", got, want)
	}
	for _, c := range allColumns {
		if !IsSortable(c.Key) {
			t.Errorf("column %s has no accessor", c.Key)
		}
	}
}

func TestSortAgreements_Timestamps(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	records := sample()[:3]
	// 100ns apart, below float64 resolution at this magnitude.
	records[0].CreatedAt = base.Add(200)
	records[1].CreatedAt = base
	records[2].CreatedAt = base.Add(100)

	if got := ids(SortAgreements(records, SortState{"created_at", SortAsc})); !slices.Equal(got, []string{"2", "3", "1"}) {
		t.Errorf("created_at asc = %v", got)
	}
	if got := ids(SortAgreements(records, SortState{"created_at", SortDesc})); !slices.Equal(got, []string{"1", "3", "2"}) {
		t.Errorf("created_at desc = %v", got)
	}
	if v, ok := CellValue(records[2], "created_at"); !ok || !v.(time.Time).Equal(base.Add(100)) {
		t.Errorf("created_at cell = %v, %v", v, ok)
	}
}

func TestProject(t *testing.T) {
	input := sample()
	input[0].AgreementValue = 10000.5
	input[1].AgreementValue = 99999
	input[2].AgreementValue = 2500.25
	before := ids(input)

	p := Project(input, Query{Search: "alpha", Sort: SortState{"total_rent", SortDesc}, View: ViewPOAOnly})

	if got := ids(p.Rows); !slices.Equal(got, []string{"3", "1"}) {
		t.Errorf("rows = %v", got)
	}
	if p.Total != 4 || p.Matched != 2 {
		t.Errorf("total=%d matched=%d", p.Total, p.Matched)
	}
	if p.MatchedRent != 1700 || p.MatchedAgreementValue != 12500.75 {
		t.Errorf("footer rent=%v value=%v, want 1700 and 12500.75", p.MatchedRent, p.MatchedAgreementValue)
	}
	if s := Aggregate(input); s.TotalRentValue != 2200 || s.Count != 4 {
		t.Errorf("Aggregate followed the search: %+v", s)
	}
	for _, c := range p.Columns {
		if c.Group == GroupAgr1 || c.Group == GroupAgr3 {
			t.Errorf("poa_only exposes %s", c.Key)
		}
	}
	if !slices.Equal(ids(input), before) {
		t.Error("Project mutated its input")
	}
}

func TestCellValue(t *testing.T) {
	a := sample()[0]
	if v, ok := CellValue(a, "area_in_guntas"); !ok || v.(float64) != 20 {
		t.Errorf("area_in_guntas = %v, %v", v, ok)
	}
	if v, ok := CellValue(a, "firm_name"); !ok || v.(string) != "Alpha Estates" {
		t.Errorf("firm_name = %v, %v", v, ok)
	}
	if _, ok := CellValue(a, "missing"); ok {
		t.Error("expected unknown field to be reported")
	}
}
