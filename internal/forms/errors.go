// Package forms holds the resolution forms for agent interrupts. Each form
// collects input and produces exactly one resolution string.
package forms

import "errors"

var (
	ErrAlreadySubmitted = errors.New("form already submitted")
	ErrInvalidForm      = errors.New("form is not complete")
	ErrUnknownOption    = errors.New("value is not one of the allowed options")
)
