// Package core holds the agreement record model and the pure computations
// built on it: derived fields, table projection and portfolio summaries.
package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid agreement")
)

// PossessionStatus records whether possession of the land was handed over.
type PossessionStatus string

const (
	PossessionGiven    PossessionStatus = "Given"
	PossessionNotGiven PossessionStatus = "Not Given"
)

// ParsePossessionStatus maps free text onto the enum, case-insensitively.
// Empty input means Not Given.
func ParsePossessionStatus(s string) (PossessionStatus, bool) {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "given":
		return PossessionGiven, true
	case "", "not given":
		return PossessionNotGiven, true
	default:
		return PossessionStatus(s), false
	}
}

// AgreementFields are the user-editable columns of an agreement.
type AgreementFields struct {
	SurveyNo          string           `json:"survey_no"`
	FirmName          string           `json:"firm_name"`
	LandOwner         string           `json:"land_owner"`
	Area              string           `json:"area"`
	DocNo1            string           `json:"doc_no_1"`
	AgreementDate     string           `json:"agreement_date"`
	DevelopmentMonths int              `json:"development_months"`
	PossessionStatus  PossessionStatus `json:"possession_status"`
	RentPerSqft       float64          `json:"rent_per_sqft"`
	FreeAreaBU        float64          `json:"free_area_bu"`
	FreeAreaCP        float64          `json:"free_area_cp"`
	AgreementValue    float64          `json:"agreement_value"`
	DepositDA         float64          `json:"deposit_da"`

	StampDuty1       float64 `json:"stamp_duty_1"`
	RegiDD1          float64 `json:"regi_dd_1"`
	HandlingCharges1 float64 `json:"handling_charges_1"`
	Adjudication1    float64 `json:"adjudication_1"`
	LegalExpenses1   float64 `json:"legal_expenses_1"`

	DocNo2           string  `json:"doc_no_2"`
	Date2            string  `json:"date_2"`
	StampDuty2       float64 `json:"stamp_duty_2"`
	RegiDD2          float64 `json:"regi_dd_2"`
	HandlingCharges2 float64 `json:"handling_charges_2"`
	LegalExpenses2   float64 `json:"legal_expenses_2"`

	DocNo3           string  `json:"doc_no_3"`
	StampDuty3       float64 `json:"stamp_duty_3"`
	RegiDD3          float64 `json:"regi_dd_3"`
	HandlingCharges3 float64 `json:"handling_charges_3"`
}

// DerivedFields are computed from AgreementFields and never edited directly.
type DerivedFields struct {
	AreaInGuntas          float64  `json:"area_in_guntas"`
	DevelopmentEndDate    string   `json:"development_end_date"`
	TotalMonths           int      `json:"total_months"`
	TotalRent             float64  `json:"total_rent"`
	Agreement1Expense     float64  `json:"agreement_1_expense"`
	Agreement2Expense     float64  `json:"agreement_2_expense"`
	Agreement3Expense     float64  `json:"agreement_3_expense"`
	TotalAgreementExpense float64  `json:"total_agreement_expense"`
	RealValuePerAcre      float64  `json:"real_value_per_acre"`
	Unparsed              bool     `json:"unparsed"`
	ParseIssues           []string `json:"parse_issues,omitempty"`
}

// Agreement is a stored agreement record with its derived values.
type Agreement struct {
	ID string `json:"id"`
	AgreementFields
	DerivedFields
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize trims text, fills the possession default and replaces
// non-finite numbers with zero so every numeric field is a real number.
func (f *AgreementFields) Normalize() {
	for _, s := range []*string{&f.SurveyNo, &f.FirmName, &f.LandOwner, &f.Area, &f.DocNo1,
		&f.AgreementDate, &f.DocNo2, &f.Date2, &f.DocNo3} {
		*s = strings.TrimSpace(*s)
	}
	if status, ok := ParsePossessionStatus(string(f.PossessionStatus)); ok {
		f.PossessionStatus = status
	}
	for _, v := range f.numbers() {
		if math.IsNaN(*v.ptr) || math.IsInf(*v.ptr, 0) {
			*v.ptr = 0
		}
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid agreement: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// MaxDevelopmentMonths bounds development_months to a hundred years.
const MaxDevelopmentMonths = 1200

// Validate checks required fields and value ranges. It expects a normalized record.
func (f AgreementFields) Validate() error {
	var errs []FieldError

	required := []struct {
		name  string
		value string
	}{
		{"survey_no", f.SurveyNo},
		{"area", f.Area},
		{"doc_no_1", f.DocNo1},
		{"agreement_date", f.AgreementDate},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, FieldError{Field: r.name, Message: "field required"})
		}
	}

	switch {
	case f.DevelopmentMonths < 0:
		errs = append(errs, FieldError{Field: "development_months", Message: "must be greater than or equal to 0"})
	case f.DevelopmentMonths > MaxDevelopmentMonths:
		errs = append(errs, FieldError{Field: "development_months", Message: fmt.Sprintf("must be less than or equal to %d", MaxDevelopmentMonths)})
	}
	if f.PossessionStatus != PossessionGiven && f.PossessionStatus != PossessionNotGiven {
		errs = append(errs, FieldError{Field: "possession_status", Message: "must be one of 'Given', 'Not Given'"})
	}
	for _, v := range f.numbers() {
		if *v.ptr < 0 {
			errs = append(errs, FieldError{Field: v.name, Message: "must be greater than or equal to 0"})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

type numberField struct {
	name string
	ptr  *float64
}

func (f *AgreementFields) numbers() []numberField {
	return []numberField{
		{"rent_per_sqft", &f.RentPerSqft},
		{"free_area_bu", &f.FreeAreaBU},
		{"free_area_cp", &f.FreeAreaCP},
		{"agreement_value", &f.AgreementValue},
		{"deposit_da", &f.DepositDA},
		{"stamp_duty_1", &f.StampDuty1},
		{"regi_dd_1", &f.RegiDD1},
		{"handling_charges_1", &f.HandlingCharges1},
		{"adjudication_1", &f.Adjudication1},
		{"legal_expenses_1", &f.LegalExpenses1},
		{"stamp_duty_2", &f.StampDuty2},
		{"regi_dd_2", &f.RegiDD2},
		{"handling_charges_2", &f.HandlingCharges2},
		{"legal_expenses_2", &f.LegalExpenses2},
		{"stamp_duty_3", &f.StampDuty3},
		{"regi_dd_3", &f.RegiDD3},
		{"handling_charges_3", &f.HandlingCharges3},
	}
}
