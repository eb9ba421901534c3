package core

import "testing"

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil); got != (Summary{}) {
		t.Errorf("Aggregate(nil) = %+v, want zero summary", got)
	}
}

func TestAggregate(t *testing.T) {
	mk := func(guntas, bu, rent, expense, value float64) Agreement {
		a := Agreement{}
		a.AreaInGuntas, a.FreeAreaBU, a.TotalRent = guntas, bu, rent
		a.TotalAgreementExpense, a.AgreementValue = expense, value
		return a
	}
	records := []Agreement{
		mk(20, 1000, 30000, 2191, 500000),
		mk(50.5, 0.1, 0, 0.2, 100),
	}

	s := Aggregate(records)

	want := Summary{
		Count:                  2,
		TotalAreaGuntas:        70.5,
		TotalFreeBuArea:        1000.1,
		TotalRentValue:         30000,
		TotalAgreementExpenses: 2191.2,
		NetProjectCost:         532291.2,
	}
	if s != want {
		t.Errorf("Aggregate = %+v, want %+v", s, want)
	}
}

func TestBuildCharts(t *testing.T) {
	calc := func(rent, bu, total float64, id string) Agreement {
		a := Agreement{ID: id}
		a.SurveyNo = "S" + id
		a.RentPerSqft, a.FreeAreaBU, a.TotalRent = rent, bu, total
		return a
	}
	records := []Agreement{
		calc(10, 100, 3000, "1"),
		calc(5, 100, 0, "2"),
		calc(2, 1000, 12000, "3"),
	}

	c := BuildCharts(records)

	if len(c.Area) != 3 || len(c.Expenses) != 3 {
		t.Fatalf("area=%d expenses=%d, want 3/3", len(c.Area), len(c.Expenses))
	}
	if len(c.Rent) != 2 {
		t.Fatalf("rent series has %d points, want 2", len(c.Rent))
	}
	if len(c.RentPayers) != 2 || c.RentPayers[0].ID != "3" || c.RentPayers[1].ID != "1" {
		t.Fatalf("rent payers = %+v, want ids 3 then 1", c.RentPayers)
	}
	if c.RentPayers[0].MonthlyRent != 2000 {
		t.Errorf("monthly rent = %v, want 2000", c.RentPayers[0].MonthlyRent)
	}
	if c.Expenses[1].PayingRent {
		t.Error("record without accrued rent marked as paying")
	}
	if c.MonthlyRent != 3000 {
		t.Errorf("monthly rent total = %v, want 3000", c.MonthlyRent)
	}

	empty := BuildCharts(nil)
	if empty.Rent == nil || empty.RentPayers == nil {
		t.Error("empty charts should encode as empty arrays")
	}
}
