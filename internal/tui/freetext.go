package tui

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/proinvest/advisor/internal/forms"
)

// maxRawPreview is in runes.
const maxRawPreview = 600

// freeTextWidget answers interrupts the UI has no dedicated form for.
type freeTextWidget struct {
	form   *forms.FreeTextForm
	input  textinput.Model
	prompt string
	keys   KeyMap
}

func newFreeTextWidget(raw json.RawMessage, keys KeyMap) *freeTextWidget {
	input := textinput.New()
	input.Prompt = "❯ "
	input.PromptStyle = InputPromptStyle
	input.Placeholder = "Type your answer..."
	input.Focus()

	return &freeTextWidget{
		form:   forms.NewFreeTextForm(),
		input:  input,
		prompt: previewRaw(raw),
		keys:   keys,
	}
}

// previewRaw shows a string payload as-is and anything else as indented JSON.
func previewRaw(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Indent(&buf, raw, "", "  ") != nil {
		buf.Reset()
		buf.Write(raw)
	}
	out := []rune(buf.String())
	if len(out) > maxRawPreview {
		return string(out[:maxRawPreview]) + "…"
	}
	return string(out)
}

func (w *freeTextWidget) Submitted() bool { return w.form.Submitted() }

func (w *freeTextWidget) HandleKey(msg tea.KeyMsg) (string, bool) {
	if w.form.Submitted() {
		return "", false
	}
	if key.Matches(msg, w.keys.Enter) {
		resolution, err := w.form.Submit()
		if err != nil {
			return "", false
		}
		return resolution, true
	}
	w.input, _ = w.input.Update(msg)
	w.form.SetAnswer(w.input.Value())
	return "", false
}

func (w *freeTextWidget) View(width int) string {
	if w.form.Submitted() {
		return PanelSubmittedStyle.Width(width - 2).Render(SuccessStyle.Render("✓ Answer sent"))
	}

	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("The assistant needs your input"))
	b.WriteString("\n\n")
	if w.prompt != "" {
		b.WriteString(RowStyle.Render(w.prompt))
		b.WriteString("\n\n")
	}
	b.WriteString(w.input.View())
	return PanelStyle.Width(width - 2).Render(b.String())
}
