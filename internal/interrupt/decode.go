package interrupt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	minPersons = 1
	maxPersons = 20
)

// ClampPersons keeps a person count inside the range the form accepts.
func ClampPersons(n int) int {
	if n < minPersons {
		return minPersons
	}
	if n > maxPersons {
		return maxPersons
	}
	return n
}

// Decode turns a raw interrupt value into an Event.
//
// For unrecognised kinds the returned Event has Kind == KindUnknown and the
// raw value attached, together with ErrUnknownKind, so callers can still
// offer a free-text answer.
func Decode(raw json.RawMessage) (Event, error) {
	raw = bytes.TrimSpace(raw)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Event{Kind: KindUnknown, Raw: raw}, fmt.Errorf("%w: value is not an object", ErrInvalidPayload)
	}

	kind, err := kindOf(fields)
	if err != nil {
		return Event{Kind: KindUnknown, Raw: raw}, err
	}

	ev := Event{Kind: kind, Raw: raw}
	switch kind {
	case KindStepSelection:
		steps, err := decodeSteps(fields["steps"])
		if err != nil {
			return Event{Kind: KindUnknown, Raw: raw}, err
		}
		ev.Steps = steps
	case KindInsuranceDetails:
		details, err := decodeInsurance(fields["insurance_details"])
		if err != nil {
			return Event{Kind: KindUnknown, Raw: raw}, err
		}
		ev.Insurance = &details
	}
	return ev, nil
}

func kindOf(fields map[string]json.RawMessage) (Kind, error) {
	if rawKind, ok := fields["kind"]; ok {
		var k string
		if err := json.Unmarshal(rawKind, &k); err != nil {
			return KindUnknown, fmt.Errorf("%w: kind must be a string", ErrInvalidPayload)
		}
		switch Kind(k) {
		case KindStepSelection, KindInsuranceDetails:
			return Kind(k), nil
		default:
			return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
	}

	if _, ok := fields["steps"]; ok {
		return KindStepSelection, nil
	}
	if _, ok := fields["insurance_details"]; ok {
		return KindInsuranceDetails, nil
	}
	return KindUnknown, ErrUnknownKind
}

// NormalizeSteps applies the step defaults: bare strings and missing
// statuses become enabled steps.
func NormalizeSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		if s.Status == "" {
			s.Status = StepEnabled
		}
		out[i] = s
	}
	return out
}

func decodeSteps(raw json.RawMessage) ([]Step, error) {
	var items []json.RawMessage
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Step{}, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: steps must be a list", ErrInvalidPayload)
	}

	steps := make([]Step, 0, len(items))
	for i, item := range items {
		var desc string
		if err := json.Unmarshal(item, &desc); err == nil {
			steps = append(steps, Step{Description: desc})
			continue
		}

		var s Step
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidPayload, i, err)
		}
		if s.Status != "" && !s.Status.IsValid() {
			return nil, fmt.Errorf("%w: step %d: unknown status %q", ErrInvalidPayload, i, s.Status)
		}
		steps = append(steps, s)
	}
	return NormalizeSteps(steps), nil
}

func decodeInsurance(raw json.RawMessage) (InsuranceDetails, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DefaultInsuranceDetails(), nil
	}

	var d InsuranceDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return InsuranceDetails{}, fmt.Errorf("%w: insurance_details: %v", ErrInvalidPayload, err)
	}
	d.NumberOfPersons = ClampPersons(d.NumberOfPersons)
	return d, nil
}
