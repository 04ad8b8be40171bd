package forms

import (
	"strings"

	"github.com/proinvest/advisor/internal/interrupt"
)

// StepSelectionPrefix starts every step-selection resolution.
const StepSelectionPrefix = "The user selected the following steps: "

// StepForm lets the user pick which plan steps to perform.
type StepForm struct {
	steps     []interrupt.Step
	submitted bool
}

// NewStepForm copies the steps so toggling never touches the event payload.
func NewStepForm(steps []interrupt.Step) *StepForm {
	return &StepForm{steps: interrupt.NormalizeSteps(steps)}
}

// Steps returns a copy of the current steps.
func (f *StepForm) Steps() []interrupt.Step {
	out := make([]interrupt.Step, len(f.steps))
	copy(out, f.steps)
	return out
}

// Toggle flips step i between enabled and disabled. Executing steps and
// out-of-range indices are left alone; the return value reports a change.
func (f *StepForm) Toggle(i int) bool {
	if i < 0 || i >= len(f.steps) {
		return false
	}
	switch f.steps[i].Status {
	case interrupt.StepEnabled:
		f.steps[i].Status = interrupt.StepDisabled
	case interrupt.StepDisabled:
		f.steps[i].Status = interrupt.StepEnabled
	default:
		return false
	}
	return true
}

// Progress reports how many steps are enabled out of the total.
func (f *StepForm) Progress() (enabled, total int) {
	for _, s := range f.steps {
		if s.Status == interrupt.StepEnabled {
			enabled++
		}
	}
	return enabled, len(f.steps)
}

// Selected returns the enabled step descriptions in plan order.
func (f *StepForm) Selected() []string {
	selected := make([]string, 0, len(f.steps))
	for _, s := range f.steps {
		if s.Status == interrupt.StepEnabled {
			selected = append(selected, s.Description)
		}
	}
	return selected
}

// Submitted reports whether the resolution was already produced.
func (f *StepForm) Submitted() bool {
	return f.submitted
}

// Submit produces the resolution. An empty selection is allowed.
func (f *StepForm) Submit() (string, error) {
	if f.submitted {
		return "", ErrAlreadySubmitted
	}
	f.submitted = true
	return StepSelectionPrefix + strings.Join(f.Selected(), ", "), nil
}
