package tui

import (
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/interrupt"
)

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func typeText(w formWidget, s string) {
	for _, r := range s {
		w.HandleKey(keyMsg(string(r)))
	}
}

func press(w formWidget, keys ...string) (string, bool) {
	var (
		res string
		ok  bool
	)
	for _, k := range keys {
		if r, done := w.HandleKey(keyMsg(k)); done {
			res, ok = r, true
		}
	}
	return res, ok
}

func TestNewWidgetPicksForm(t *testing.T) {
	keys := DefaultKeyMap()
	tests := []struct {
		name string
		ev   interrupt.Event
		want string
	}{
		{"steps", interrupt.Event{Kind: interrupt.KindStepSelection}, "*tui.stepWidget"},
		{"insurance", interrupt.Event{Kind: interrupt.KindInsuranceDetails}, "*tui.insuranceWidget"},
		{"unknown", interrupt.Event{Kind: interrupt.KindUnknown, Raw: []byte(`{"q":"?"}`)}, "*tui.freeTextWidget"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := typeName(newWidget(tt.ev, keys))
			if got != tt.want {
				t.Errorf("newWidget(%s) = %s, want %s", tt.ev.Kind, got, tt.want)
			}
		})
	}
}

func typeName(w formWidget) string {
	switch w.(type) {
	case *stepWidget:
		return "*tui.stepWidget"
	case *insuranceWidget:
		return "*tui.insuranceWidget"
	case *freeTextWidget:
		return "*tui.freeTextWidget"
	}
	return "unknown"
}

func TestStepWidget(t *testing.T) {
	steps := []interrupt.Step{
		{Description: "Compare plans", Status: interrupt.StepEnabled},
		{Description: "Fetch quotes", Status: interrupt.StepExecuting},
		{Description: "Check reviews", Status: interrupt.StepEnabled},
	}

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"submit as proposed", []string{"enter"}, "The user selected the following steps: Compare plans, Check reviews"},
		{"toggle first off", []string{" ", "enter"}, "The user selected the following steps: Check reviews"},
		{"executing step ignores toggle", []string{"down", " ", "enter"}, "The user selected the following steps: Compare plans, Check reviews"},
		{"deselect everything", []string{" ", "down", "down", " ", "enter"}, "The user selected the following steps: "},
		{"cursor stops at the end", []string{"down", "down", "down", "down", " ", "enter"}, "The user selected the following steps: Compare plans"},
		{"cursor stops at the top", []string{"up", "up", " ", "enter"}, "The user selected the following steps: Check reviews"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newStepWidget(steps, DefaultKeyMap())
			got, ok := press(w, tt.keys...)
			if !ok {
				t.Fatalf("keys %v did not submit", tt.keys)
			}
			if got != tt.want {
				t.Errorf("resolution = %q, want %q", got, tt.want)
			}
		})
	}

	if steps[0].Status != interrupt.StepEnabled {
		t.Error("widget mutated the interrupt payload")
	}
}

func TestStepWidgetSubmitsOnce(t *testing.T) {
	w := newStepWidget([]interrupt.Step{{Description: "A", Status: interrupt.StepEnabled}}, DefaultKeyMap())

	if _, ok := press(w, "enter"); !ok {
		t.Fatal("first enter should submit")
	}
	if _, ok := press(w, "enter"); ok {
		t.Error("second enter must not submit again")
	}
	if !w.Submitted() {
		t.Error("widget should report submitted")
	}
	if !strings.Contains(w.View(80), "Performing 1 of 1 steps") {
		t.Errorf("submitted view missing summary: %q", w.View(80))
	}
}

func TestStepWidgetViewShowsProgress(t *testing.T) {
	w := newStepWidget([]interrupt.Step{
		{Description: "A", Status: interrupt.StepEnabled},
		{Description: "B", Status: interrupt.StepDisabled},
	}, DefaultKeyMap())

	if view := w.View(80); !strings.Contains(view, "1/2 selected") {
		t.Errorf("view missing progress: %q", view)
	}
	press(w, "down", " ")
	if view := w.View(80); !strings.Contains(view, "2/2 selected") {
		t.Errorf("view missing updated progress: %q", view)
	}
}

func TestInsuranceWidget(t *testing.T) {
	w := newInsuranceWidget(&interrupt.InsuranceDetails{NumberOfPersons: 2}, DefaultKeyMap())

	// Incomplete forms do not submit.
	if _, ok := press(w, "enter"); ok {
		t.Fatal("incomplete form submitted")
	}
	if !strings.Contains(w.View(80), "Please complete all fields") {
		t.Error("expected a completion warning")
	}

	// persons: 2 -> 3, budget: first option, type: cycle back to the last, location typed.
	press(w, "right", "tab", "right", "right", "left", "tab", "left", "tab")
	typeText(w, "Austin, TX")

	got, ok := press(w, "enter")
	if !ok {
		t.Fatalf("complete form did not submit: %+v", w.form.Details())
	}
	want := "I need insurance for 3 person(s), with a budget of under-100, for business insurance, located in Austin, TX."
	if got != want {
		t.Errorf("resolution = %q, want %q", got, want)
	}
	if _, ok := press(w, "enter"); ok {
		t.Error("second enter must not submit again")
	}
}

func TestInsuranceWidgetPersonsInput(t *testing.T) {
	tests := []struct {
		name  string
		typed string
		want  int
	}{
		{"plain number", "7", 7},
		{"clamped high", "99", 20},
		{"zero becomes one", "0", 1},
		{"text becomes one", "x", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newInsuranceWidget(nil, DefaultKeyMap())
			press(w, "backspace")
			typeText(w, tt.typed)
			if got := w.form.Details().NumberOfPersons; got != tt.want {
				t.Errorf("persons after typing %q = %d, want %d", tt.typed, got, tt.want)
			}
			press(w, "tab")
			if w.persons.Value() != strconv.Itoa(w.form.Details().NumberOfPersons) {
				t.Errorf("persons field shows %q after blur", w.persons.Value())
			}
		})
	}
}

func TestInsuranceWidgetPersonsArrowsClamp(t *testing.T) {
	w := newInsuranceWidget(nil, DefaultKeyMap())
	press(w, "left", "left")
	if got := w.form.Details().NumberOfPersons; got != 1 {
		t.Errorf("persons = %d, want 1", got)
	}
}

func TestFreeTextWidget(t *testing.T) {
	w := newFreeTextWidget([]byte(`"Shall I proceed?"`), DefaultKeyMap())
	if !strings.Contains(w.View(80), "Shall I proceed?") {
		t.Error("string payload should be shown as the question")
	}

	if _, ok := press(w, " ", "enter"); ok {
		t.Fatal("blank answer submitted")
	}
	typeText(w, "yes")
	got, ok := press(w, "enter")
	if !ok || got != " yes" {
		t.Errorf("resolution = %q, %v; want %q", got, ok, " yes")
	}
}

func TestPreviewRaw(t *testing.T) {
	if got := previewRaw([]byte(`{"a":1}`)); got != "{\n  \"a\": 1\n}" {
		t.Errorf("previewRaw object = %q", got)
	}
	long := `"` + strings.Repeat("x", maxRawPreview+10) + `"`
	if got := previewRaw([]byte(long)); len(got) != maxRawPreview+10 {
		t.Errorf("string payloads are shown whole, got len %d", len(got))
	}

	accented := `{"question":"` + strings.Repeat("é", maxRawPreview) + `"}`
	got := previewRaw([]byte(accented))
	if !utf8.ValidString(got) {
		t.Errorf("truncated preview is not valid UTF-8: %q", got[len(got)-8:])
	}
	if n := utf8.RuneCountInString(got); n != maxRawPreview+1 {
		t.Errorf("truncated preview has %d runes, want %d", n, maxRawPreview+1)
	}
}
