// Package interrupt models the payloads a LangGraph run emits when it pauses
// for human input.
//
// An interrupt value is decoded into a tagged Event. The agent is expected to
// send a "kind" discriminant; older graphs that omit it are recognised by
// shape (a "steps" list or an "insurance_details" object).
package interrupt

import (
	"encoding/json"
	"errors"
)

// Kind discriminates the interrupt payload schema.
type Kind string

const (
	KindStepSelection    Kind = "step_selection"
	KindInsuranceDetails Kind = "insurance_details"
	KindUnknown          Kind = "unknown"
)

var (
	ErrUnknownKind    = errors.New("unrecognized interrupt kind")
	ErrInvalidPayload = errors.New("invalid interrupt payload")
)

// StepStatus is the lifecycle status of a plan step.
type StepStatus string

const (
	StepEnabled   StepStatus = "enabled"
	StepDisabled  StepStatus = "disabled"
	StepExecuting StepStatus = "executing"
)

func (s StepStatus) IsValid() bool {
	return s == StepEnabled || s == StepDisabled || s == StepExecuting
}

// Step is one entry of a plan awaiting selection.
type Step struct {
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
}

// InsuranceDetails is the partially-filled requirements form the insurance
// advisor graph sends.
type InsuranceDetails struct {
	NumberOfPersons int    `json:"number_of_persons"`
	BudgetRange     string `json:"budget_range"`
	InsuranceType   string `json:"insurance_type"`
	Location        string `json:"location"`
}

// DefaultInsuranceDetails is used when the interrupt carries no details.
func DefaultInsuranceDetails() InsuranceDetails {
	return InsuranceDetails{NumberOfPersons: 1}
}

// Event is a decoded interrupt. Exactly one of Steps or Insurance is set for
// the known kinds; Raw always holds the original value.
type Event struct {
	Kind      Kind              `json:"kind"`
	Steps     []Step            `json:"steps,omitempty"`
	Insurance *InsuranceDetails `json:"insurance_details,omitempty"`
	Raw       json.RawMessage   `json:"raw,omitempty"`
}
