package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/forms"
	"github.com/proinvest/advisor/internal/interrupt"
)

// stepWidget is the plan checklist.
type stepWidget struct {
	form     *forms.StepForm
	cursor   int
	keys     KeyMap
	help     help.Model
	progress progress.Model
}

func newStepWidget(steps []interrupt.Step, keys KeyMap) *stepWidget {
	return &stepWidget{
		form: forms.NewStepForm(steps),
		keys: keys,
		help: help.New(),
		progress: progress.New(
			progress.WithSolidFill(string(ColorGreen)),
			progress.WithoutPercentage(),
		),
	}
}

func (w *stepWidget) Submitted() bool { return w.form.Submitted() }

func (w *stepWidget) HandleKey(msg tea.KeyMsg) (string, bool) {
	if w.form.Submitted() {
		return "", false
	}
	_, total := w.form.Progress()

	switch {
	case key.Matches(msg, w.keys.Up):
		if w.cursor > 0 {
			w.cursor--
		}
	case key.Matches(msg, w.keys.Down):
		if w.cursor < total-1 {
			w.cursor++
		}
	case key.Matches(msg, w.keys.Toggle):
		w.form.Toggle(w.cursor)
	case key.Matches(msg, w.keys.Enter):
		resolution, err := w.form.Submit()
		if err != nil {
			return "", false
		}
		return resolution, true
	}
	return "", false
}

func (w *stepWidget) View(width int) string {
	enabled, total := w.form.Progress()
	if w.form.Submitted() {
		return PanelSubmittedStyle.Width(width - 2).Render(
			SuccessStyle.Render(fmt.Sprintf("✓ Performing %d of %d steps", enabled, total)),
		)
	}

	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Select the steps to perform"))
	b.WriteString("\n\n")

	if total == 0 {
		b.WriteString(DimStyle.Render("The plan has no steps."))
		b.WriteString("\n")
	}
	for i, s := range w.form.Steps() {
		var mark string
		var style = RowStyle
		switch s.Status {
		case interrupt.StepEnabled:
			mark, style = "[x]", StepEnabledStyle
		case interrupt.StepDisabled:
			mark, style = "[ ]", StepDisabledStyle
		default:
			mark, style = "[~]", StepExecutingStyle
		}
		prefix := "  "
		line := mark + " " + s.Description
		if s.Status == interrupt.StepExecuting {
			line += " (running)"
		}
		if i == w.cursor {
			prefix = "▸ "
			line = SelectedRowStyle.Render(line)
		} else {
			line = style.Render(line)
		}
		b.WriteString(prefix + line + "\n")
	}

	b.WriteString("\n")
	w.progress.Width = max(width-24, 10)
	ratio := 0.0
	if total > 0 {
		ratio = float64(enabled) / float64(total)
	}
	b.WriteString(w.progress.ViewAs(ratio))
	b.WriteString(DimStyle.Render(fmt.Sprintf("  %d/%d selected", enabled, total)))
	b.WriteString("\n\n")
	b.WriteString(w.help.ShortHelpView(w.keys.stepHelp()))

	return PanelStyle.Width(width - 2).Render(b.String())
}
