package forms

import (
	"fmt"
	"strings"

	"github.com/proinvest/advisor/internal/interrupt"
)

// Option is one entry of an enumerated field.
type Option struct {
	Value string
	Label string
}

var BudgetRanges = []Option{
	{Value: "under-100", Label: "Under $100/month"},
	{Value: "100-300", Label: "$100 - $300/month"},
	{Value: "300-500", Label: "$300 - $500/month"},
	{Value: "500-1000", Label: "$500 - $1,000/month"},
	{Value: "over-1000", Label: "Over $1,000/month"},
}

var InsuranceTypes = []Option{
	{Value: "health", Label: "Health Insurance"},
	{Value: "life", Label: "Life Insurance"},
	{Value: "auto", Label: "Auto Insurance"},
	{Value: "home", Label: "Home Insurance"},
	{Value: "disability", Label: "Disability Insurance"},
	{Value: "travel", Label: "Travel Insurance"},
	{Value: "business", Label: "Business Insurance"},
}

// OptionIndex returns the position of value in opts, or -1.
func OptionIndex(opts []Option, value string) int {
	for i, o := range opts {
		if o.Value == value {
			return i
		}
	}
	return -1
}

// InsuranceForm collects the four insurance requirements in one screen.
type InsuranceForm struct {
	details   interrupt.InsuranceDetails
	submitted bool
}

// NewInsuranceForm seeds the form from the interrupt payload, or from the
// defaults when the payload carried none. Seeded enum values outside the
// known options are cleared so the user has to pick one.
func NewInsuranceForm(seed *interrupt.InsuranceDetails) *InsuranceForm {
	d := interrupt.DefaultInsuranceDetails()
	if seed != nil {
		d = *seed
		d.NumberOfPersons = interrupt.ClampPersons(d.NumberOfPersons)
		if OptionIndex(BudgetRanges, d.BudgetRange) < 0 {
			d.BudgetRange = ""
		}
		if OptionIndex(InsuranceTypes, d.InsuranceType) < 0 {
			d.InsuranceType = ""
		}
	}
	return &InsuranceForm{details: d}
}

// Details returns the current field values.
func (f *InsuranceForm) Details() interrupt.InsuranceDetails {
	return f.details
}

func (f *InsuranceForm) SetPersons(n int) {
	f.details.NumberOfPersons = interrupt.ClampPersons(n)
}

// SetPersonsInput applies raw text typed into the person count control.
func (f *InsuranceForm) SetPersonsInput(s string) {
	f.details.NumberOfPersons = ParsePersons(s)
}

// SetBudgetRange accepts one of BudgetRanges or "" to clear the field.
func (f *InsuranceForm) SetBudgetRange(v string) error {
	if v != "" && OptionIndex(BudgetRanges, v) < 0 {
		return fmt.Errorf("%w: budget range %q", ErrUnknownOption, v)
	}
	f.details.BudgetRange = v
	return nil
}

// SetInsuranceType accepts one of InsuranceTypes or "" to clear the field.
func (f *InsuranceForm) SetInsuranceType(v string) error {
	if v != "" && OptionIndex(InsuranceTypes, v) < 0 {
		return fmt.Errorf("%w: insurance type %q", ErrUnknownOption, v)
	}
	f.details.InsuranceType = v
	return nil
}

func (f *InsuranceForm) SetLocation(v string) {
	f.details.Location = v
}

// Valid reports whether every field holds a usable value.
func (f *InsuranceForm) Valid() bool {
	return IsValid(f.details)
}

// IsValid is the submit predicate for insurance requirements.
func IsValid(d interrupt.InsuranceDetails) bool {
	return d.NumberOfPersons > 0 &&
		d.BudgetRange != "" &&
		d.InsuranceType != "" &&
		strings.TrimSpace(d.Location) != ""
}

// Submitted reports whether the resolution was already produced.
func (f *InsuranceForm) Submitted() bool {
	return f.submitted
}

// Submit produces the resolution sentence. The location is used as typed.
func (f *InsuranceForm) Submit() (string, error) {
	if f.submitted {
		return "", ErrAlreadySubmitted
	}
	if !f.Valid() {
		return "", ErrInvalidForm
	}
	f.submitted = true
	return InsuranceResolution(f.details), nil
}

// InsuranceResolution renders the resolution sentence for d.
func InsuranceResolution(d interrupt.InsuranceDetails) string {
	return fmt.Sprintf(
		"I need insurance for %d person(s), with a budget of %s, for %s insurance, located in %s.",
		d.NumberOfPersons, d.BudgetRange, d.InsuranceType, d.Location,
	)
}
