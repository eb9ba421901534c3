package core

import (
	"cmp"
	"slices"
)

// Summary is the portfolio total shown on the dashboard.
type Summary struct {
	Count                  int     `json:"count"`
	TotalAreaGuntas        float64 `json:"total_area_guntas"`
	TotalFreeBuArea        float64 `json:"total_free_bu_area"`
	TotalRentValue         float64 `json:"total_rent_value"`
	TotalAgreementExpenses float64 `json:"total_agreement_expenses"`
	NetProjectCost         float64 `json:"net_project_cost"`
}

// Aggregate totals the whole collection. Net project cost is agreement value
// plus agreement expenses plus accrued rent. An empty collection is all zeros.
func Aggregate(records []Agreement) Summary {
	s := Summary{Count: len(records)}
	var area, bu, rent, expenses, values []float64
	for _, a := range records {
		area = append(area, a.AreaInGuntas)
		bu = append(bu, a.FreeAreaBU)
		rent = append(rent, a.TotalRent)
		expenses = append(expenses, a.TotalAgreementExpense)
		values = append(values, a.AgreementValue)
	}
	s.TotalAreaGuntas = Sum(area...)
	s.TotalFreeBuArea = Sum(bu...)
	s.TotalRentValue = Sum(rent...)
	s.TotalAgreementExpenses = Sum(expenses...)
	s.NetProjectCost = Sum(s.TotalAgreementExpenses, s.TotalRentValue, Sum(values...))
	return s
}

// RentPoint is one bar of the rent chart.
type RentPoint struct {
	SurveyNo  string  `json:"survey_no"`
	LandOwner string  `json:"land_owner"`
	Rent      float64 `json:"rent"`
	Months    int     `json:"months"`
}

// AreaPoint is one bar of the area chart.
type AreaPoint struct {
	SurveyNo   string  `json:"survey_no"`
	Guntas     float64 `json:"guntas"`
	FreeAreaBU float64 `json:"free_area_bu"`
}

// OwnerExpense is one row of the expenses-by-owner chart.
type OwnerExpense struct {
	SurveyNo    string  `json:"survey_no"`
	LandOwner   string  `json:"land_owner"`
	FirmName    string  `json:"firm_name"`
	Expense     float64 `json:"expense"`
	Value       float64 `json:"value"`
	PayingRent  bool    `json:"paying_rent"`
	MonthlyRent float64 `json:"monthly_rent"`
}

// RentDetail is a record that currently accrues rent.
type RentDetail struct {
	ID                 string  `json:"id"`
	SurveyNo           string  `json:"survey_no"`
	LandOwner          string  `json:"land_owner"`
	FirmName           string  `json:"firm_name"`
	RentPerSqft        float64 `json:"rent_per_sqft"`
	FreeAreaBU         float64 `json:"free_area_bu"`
	MonthlyRent        float64 `json:"monthly_rent"`
	TotalMonths        int     `json:"total_months"`
	TotalRent          float64 `json:"total_rent"`
	DevelopmentEndDate string  `json:"development_end_date"`
}

// Charts holds the dashboard series.
type Charts struct {
	Rent        []RentPoint    `json:"rent"`
	Area        []AreaPoint    `json:"area"`
	Expenses    []OwnerExpense `json:"expenses"`
	RentPayers  []RentDetail   `json:"rent_payers"`
	MonthlyRent float64        `json:"monthly_rent_total"`
}

// BuildCharts derives the chart series. Rent series and rent payers only hold
// records with accrued rent; rent payers are ordered by total rent, highest first.
func BuildCharts(records []Agreement) Charts {
	c := Charts{
		Rent:       []RentPoint{},
		Area:       make([]AreaPoint, 0, len(records)),
		Expenses:   make([]OwnerExpense, 0, len(records)),
		RentPayers: []RentDetail{},
	}
	var monthly []float64
	for _, a := range records {
		monthlyRent := Product(a.RentPerSqft, a.FreeAreaBU)
		paying := a.TotalRent > 0

		c.Area = append(c.Area, AreaPoint{SurveyNo: a.SurveyNo, Guntas: a.AreaInGuntas, FreeAreaBU: a.FreeAreaBU})
		c.Expenses = append(c.Expenses, OwnerExpense{
			SurveyNo:    a.SurveyNo,
			LandOwner:   a.LandOwner,
			FirmName:    a.FirmName,
			Expense:     a.TotalAgreementExpense,
			Value:       a.AgreementValue,
			PayingRent:  paying,
			MonthlyRent: monthlyRent,
		})
		if !paying {
			continue
		}
		monthly = append(monthly, monthlyRent)
		c.Rent = append(c.Rent, RentPoint{SurveyNo: a.SurveyNo, LandOwner: a.LandOwner, Rent: a.TotalRent, Months: a.TotalMonths})
		c.RentPayers = append(c.RentPayers, RentDetail{
			ID:                 a.ID,
			SurveyNo:           a.SurveyNo,
			LandOwner:          a.LandOwner,
			FirmName:           a.FirmName,
			RentPerSqft:        a.RentPerSqft,
			FreeAreaBU:         a.FreeAreaBU,
			MonthlyRent:        monthlyRent,
			TotalMonths:        a.TotalMonths,
			TotalRent:          a.TotalRent,
			DevelopmentEndDate: a.DevelopmentEndDate,
		})
	}
	slices.SortStableFunc(c.RentPayers, func(x, y RentDetail) int {
		return cmp.Compare(y.TotalRent, x.TotalRent)
	})
	c.MonthlyRent = Sum(monthly...)
	return c
}
