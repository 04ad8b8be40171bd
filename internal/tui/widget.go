package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/interrupt"
)

// formWidget renders an interrupt form in place of the input line.
type formWidget interface {
	// HandleKey applies a key press. ok is true exactly once, when the form
	// produces its resolution.
	HandleKey(msg tea.KeyMsg) (resolution string, ok bool)
	View(width int) string
	Submitted() bool
}

// newWidget picks the form for an interrupt event. Unknown kinds get a
// free-text answer.
func newWidget(ev interrupt.Event, keys KeyMap) formWidget {
	switch ev.Kind {
	case interrupt.KindStepSelection:
		return newStepWidget(ev.Steps, keys)
	case interrupt.KindInsuranceDetails:
		return newInsuranceWidget(ev.Insurance, keys)
	default:
		return newFreeTextWidget(ev.Raw, keys)
	}
}
