package forms

import "strings"

// FreeTextForm answers an interrupt whose shape the UI does not know.
type FreeTextForm struct {
	answer    string
	submitted bool
}

func NewFreeTextForm() *FreeTextForm {
	return &FreeTextForm{}
}

func (f *FreeTextForm) SetAnswer(s string) {
	f.answer = s
}

func (f *FreeTextForm) Valid() bool {
	return strings.TrimSpace(f.answer) != ""
}

func (f *FreeTextForm) Submitted() bool {
	return f.submitted
}

func (f *FreeTextForm) Submit() (string, error) {
	if f.submitted {
		return "", ErrAlreadySubmitted
	}
	if !f.Valid() {
		return "", ErrInvalidForm
	}
	f.submitted = true
	return f.answer, nil
}
