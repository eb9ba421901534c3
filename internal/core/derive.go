package core

import (
	"strings"
	"time"
)

// Calculator computes derived fields against an injectable clock.
type Calculator struct {
	Now func() time.Time
}

// NewCalculator returns a calculator bound to the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{Now: time.Now}
}

// Compute derives the fields of f at the calculator's current time.
func (c *Calculator) Compute(f AgreementFields) DerivedFields {
	now := time.Now()
	if c != nil && c.Now != nil {
		now = c.Now()
	}
	return Derive(f, now)
}

// Apply refreshes the derived fields of a in place.
func (c *Calculator) Apply(a *Agreement) {
	a.DerivedFields = c.Compute(a.AgreementFields)
}

// ApplyAll refreshes every record of the slice in place.
func (c *Calculator) ApplyAll(list []Agreement) {
	for i := range list {
		c.Apply(&list[i])
	}
}

// Derive is the pure form of Calculator.Compute. Malformed area or agreement
// date text never fails: the value falls back to zero or empty and the
// record is flagged as unparsed.
func Derive(f AgreementFields, now time.Time) DerivedFields {
	var d DerivedFields

	if guntas, ok := ParseArea(f.Area); ok {
		d.AreaInGuntas = guntas
	} else {
		d.Unparsed = true
		d.ParseIssues = append(d.ParseIssues, "area")
	}

	given := strings.EqualFold(strings.TrimSpace(string(f.PossessionStatus)), string(PossessionGiven))

	if start, ok := ParseDate(f.AgreementDate); ok {
		end := AddMonths(start, f.DevelopmentMonths)
		d.DevelopmentEndDate = FormatDate(end)
		if !given {
			d.TotalMonths = MonthsBetween(end, now)
		}
	} else {
		d.Unparsed = true
		d.ParseIssues = append(d.ParseIssues, "agreement_date")
	}

	if !given {
		d.TotalRent = Product(f.RentPerSqft, f.FreeAreaBU, float64(d.TotalMonths))
	}

	d.Agreement1Expense = Sum(f.StampDuty1, f.RegiDD1, f.HandlingCharges1, f.Adjudication1, f.LegalExpenses1)
	d.Agreement2Expense = Sum(f.StampDuty2, f.RegiDD2, f.HandlingCharges2, f.LegalExpenses2)
	d.Agreement3Expense = Sum(f.StampDuty3, f.RegiDD3, f.HandlingCharges3)
	d.TotalAgreementExpense = Sum(d.Agreement1Expense, d.Agreement2Expense, d.Agreement3Expense)

	d.RealValuePerAcre = Round2(Ratio(Product(f.FreeAreaBU, GuntasPerAcre), d.AreaInGuntas))

	return d
}
