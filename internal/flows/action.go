// Package flows decodes the actions the booking dialogue sends to the core.
// Each action type has exactly one payload shape; anything else is rejected.
package flows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownAction is returned for an action type outside the closed set.
	ErrUnknownAction = errors.New("flows: unknown action type")
	// ErrInvalidPayload is returned when a payload does not match its type.
	ErrInvalidPayload = errors.New("flows: invalid action payload")
)

// ActionType names one member of the closed action set.
type ActionType string

const (
	ActionCheckPatient   ActionType = "check_patient"
	ActionListSlots      ActionType = "list_slots"
	ActionPatientHistory ActionType = "patient_history"
)

// Action is implemented by every payload type.
type Action interface {
	Type() ActionType
	validate() error
}

// CheckPatient asks whether a phone belongs to a known patient.
type CheckPatient struct {
	Phone string `json:"phone"`
}

// ListSlots asks for free slots of one provider or all of them.
type ListSlots struct {
	Provider string     `json:"provider,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// PatientHistory asks for the appointments of a patient.
type PatientHistory struct {
	PatientID string `json:"patient_id"`
}

func (CheckPatient) Type() ActionType   { return ActionCheckPatient }
func (ListSlots) Type() ActionType      { return ActionListSlots }
func (PatientHistory) Type() ActionType { return ActionPatientHistory }

func (a CheckPatient) validate() error {
	if strings.TrimSpace(a.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidPayload)
	}
	return nil
}

func (a ListSlots) validate() error {
	if a.Start != nil && a.End != nil && !a.End.After(*a.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidPayload)
	}
	return nil
}

func (a PatientHistory) validate() error {
	if strings.TrimSpace(a.PatientID) == "" {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidPayload)
	}
	return nil
}

type envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses {"type": ..., "payload": {...}}. Unknown types and unknown
// payload fields are errors.
func Decode(data []byte) (Action, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var action Action
	switch env.Type {
	case ActionCheckPatient:
		var a CheckPatient
		if err := decodePayload(env.Payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionListSlots:
		var a ListSlots
		if err := decodePayload(env.Payload, &a); err != nil {
			return nil, err
		}
		action = a
	case ActionPatientHistory:
		var a PatientHistory
		if err := decodePayload(env.Payload, &a); err != nil {
			return nil, err
		}
		action = a
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
	if err := action.validate(); err != nil {
		return nil, err
	}
	return action, nil
}

// Encode wraps an action in its envelope.
func Encode(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: a.Type(), Payload: payload})
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := strictUnmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func strictUnmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
