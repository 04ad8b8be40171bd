package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/forms"
	"github.com/proinvest/advisor/internal/interrupt"
)

type insuranceField int

const (
	fieldPersons insuranceField = iota
	fieldBudget
	fieldType
	fieldLocation
	fieldCount
)

// insuranceWidget is the single-screen requirements form.
type insuranceWidget struct {
	form     *forms.InsuranceForm
	focus    insuranceField
	persons  textinput.Model
	location textinput.Model
	keys     KeyMap
	help     help.Model
	warning  string
}

func newInsuranceWidget(seed *interrupt.InsuranceDetails, keys KeyMap) *insuranceWidget {
	form := forms.NewInsuranceForm(seed)
	d := form.Details()

	persons := textinput.New()
	persons.Prompt = ""
	persons.CharLimit = 4
	persons.SetValue(strconv.Itoa(d.NumberOfPersons))
	persons.Focus()

	location := textinput.New()
	location.Prompt = ""
	location.Placeholder = "City, State"
	location.CharLimit = 120
	location.SetValue(d.Location)

	return &insuranceWidget{
		form:     form,
		persons:  persons,
		location: location,
		keys:     keys,
		help:     help.New(),
	}
}

func (w *insuranceWidget) Submitted() bool { return w.form.Submitted() }

func (w *insuranceWidget) setFocus(f insuranceField) {
	if w.focus == fieldPersons {
		// Leaving the number control shows the value it settled on.
		w.persons.SetValue(strconv.Itoa(w.form.Details().NumberOfPersons))
	}
	w.focus = (f + fieldCount) % fieldCount
	w.persons.Blur()
	w.location.Blur()
	switch w.focus {
	case fieldPersons:
		w.persons.Focus()
	case fieldLocation:
		w.location.Focus()
	}
}

// cycle moves an enumerated field by delta, wrapping around. An unset
// field starts at the first or last option.
func cycle(opts []forms.Option, current string, delta int) string {
	i := forms.OptionIndex(opts, current)
	if i < 0 {
		if delta > 0 {
			return opts[0].Value
		}
		return opts[len(opts)-1].Value
	}
	return opts[(i+delta+len(opts))%len(opts)].Value
}

func (w *insuranceWidget) HandleKey(msg tea.KeyMsg) (string, bool) {
	if w.form.Submitted() {
		return "", false
	}

	switch {
	case key.Matches(msg, w.keys.NextField), key.Matches(msg, w.keys.Down):
		w.setFocus(w.focus + 1)
		return "", false
	case key.Matches(msg, w.keys.PrevField), key.Matches(msg, w.keys.Up):
		w.setFocus(w.focus - 1)
		return "", false
	case key.Matches(msg, w.keys.Enter):
		resolution, err := w.form.Submit()
		if err != nil {
			w.warning = "Please complete all fields"
			return "", false
		}
		w.warning = ""
		return resolution, true
	}

	delta := 0
	switch {
	case key.Matches(msg, w.keys.Left):
		delta = -1
	case key.Matches(msg, w.keys.Right):
		delta = 1
	}

	d := w.form.Details()
	switch w.focus {
	case fieldPersons:
		if delta != 0 {
			w.form.SetPersons(d.NumberOfPersons + delta)
			w.persons.SetValue(strconv.Itoa(w.form.Details().NumberOfPersons))
			return "", false
		}
		w.persons, _ = w.persons.Update(msg)
		w.form.SetPersonsInput(w.persons.Value())
	case fieldBudget:
		if delta != 0 {
			_ = w.form.SetBudgetRange(cycle(forms.BudgetRanges, d.BudgetRange, delta))
		}
	case fieldType:
		if delta != 0 {
			_ = w.form.SetInsuranceType(cycle(forms.InsuranceTypes, d.InsuranceType, delta))
		}
	case fieldLocation:
		w.location, _ = w.location.Update(msg)
		w.form.SetLocation(w.location.Value())
	}
	return "", false
}

func optionLabel(opts []forms.Option, value, placeholder string) string {
	if i := forms.OptionIndex(opts, value); i >= 0 {
		return opts[i].Label
	}
	return placeholder
}

func (w *insuranceWidget) View(width int) string {
	d := w.form.Details()
	if w.form.Submitted() {
		return PanelSubmittedStyle.Width(width - 2).Render(
			SuccessStyle.Render("✓ Requirements sent: " + forms.InsuranceResolution(d)),
		)
	}

	row := func(f insuranceField, label, value string) string {
		labelStyle := FieldLabelStyle
		if w.focus == f {
			labelStyle = FocusedLabelStyle
		}
		return labelStyle.Render(label) + value + "\n"
	}
	enum := func(f insuranceField, s string) string {
		if w.focus == f {
			return SelectedRowStyle.Render("◂ " + s + " ▸")
		}
		return RowStyle.Render(s)
	}

	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("Tell us what you need"))
	b.WriteString("\n\n")
	b.WriteString(row(fieldPersons, "Persons (1-20)", w.persons.View()))
	b.WriteString(row(fieldBudget, "Monthly budget", enum(fieldBudget, optionLabel(forms.BudgetRanges, d.BudgetRange, "Select a budget"))))
	b.WriteString(row(fieldType, "Insurance type", enum(fieldType, optionLabel(forms.InsuranceTypes, d.InsuranceType, "Select a type"))))
	b.WriteString(row(fieldLocation, "Location", w.location.View()))
	b.WriteString("\n")

	if w.form.Valid() {
		b.WriteString(SuccessStyle.Render("Ready to submit"))
	} else if w.warning != "" {
		b.WriteString(ErrorStyle.Render(w.warning))
	} else {
		b.WriteString(DimStyle.Render("All fields are required"))
	}
	b.WriteString("\n\n")
	b.WriteString(w.help.ShortHelpView(w.keys.insuranceHelp()))

	return PanelStyle.Width(width - 2).Render(b.String())
}
