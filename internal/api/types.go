package api

import (
	"github.com/proinvest/advisor/internal/auth"
	"github.com/proinvest/advisor/internal/interrupt"
)

// ServiceCheck is the result of one dependency probe.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status   string                  `json:"status"`
	Store    ServiceCheck            `json:"store"`
	Agents   map[string]ServiceCheck `json:"agents"`
	Sessions int                     `json:"sessions"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type UserResponse struct {
	User *auth.User `json:"user"`
}

type CreateSessionRequest struct {
	Agent string `json:"agent"`
}

type CreateSessionResponse struct {
	ID       string `json:"id"`
	Agent    string `json:"agent"`
	ThreadID string `json:"thread_id"`
}

type MessageRequest struct {
	Text string `json:"text"`
}

// StepResolutionRequest submits a step plan. Steps, when set, carries the
// statuses the user ended with; Selected, when set, lists the indices to keep
// enabled. With neither the plan is accepted as proposed.
type StepResolutionRequest struct {
	Steps    []interrupt.Step `json:"steps,omitempty"`
	Selected []int            `json:"selected,omitempty"`
}

// InsuranceResolutionRequest submits the requirements form. Omitted fields
// keep the values the agent pre-filled.
type InsuranceResolutionRequest struct {
	NumberOfPersons *int    `json:"number_of_persons,omitempty"`
	BudgetRange     *string `json:"budget_range,omitempty"`
	InsuranceType   *string `json:"insurance_type,omitempty"`
	Location        *string `json:"location,omitempty"`
}
