// Package completion defines the body of the completion event published for
// every processed record.
package completion

import (
	"errors"
	"fmt"

	errspkg "github.com/drblury/vehicleflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/vehicleflow/internal/runtime/jsoncodec"
)

// ErrInvalidEnvelope is returned by Validate when an envelope mixes success
// and failure state.
var ErrInvalidEnvelope = errors.New("invalid completion envelope")

// Envelope is the outcome of one record. A successful envelope carries the
// stored id and no errors; a failed one carries neither id nor payload.
type Envelope struct {
	ID       *string
	Success  bool
	Payload  *string
	Messages []string
	Errors   []string
	Warnings []string
}

// wire fixes the member order and makes every member present.
type wire struct {
	ID       *string  `json:"id"`
	Success  bool     `json:"success"`
	Payload  *string  `json:"payload"`
	Messages []string `json:"messages"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Succeeded builds the envelope of a persisted record.
func Succeeded(id string, payload *string, messages ...string) Envelope {
	return Envelope{
		ID:       &id,
		Success:  true,
		Payload:  payload,
		Messages: messages,
	}
}

// Failed builds the envelope of a record that was not persisted. Each error
// contributes its text as one entry.
func Failed(errs ...error) Envelope {
	texts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			texts = append(texts, err.Error())
		}
	}
	return Envelope{Errors: texts}
}

// Validate checks the success/failure invariants.
func (e Envelope) Validate() error {
	if e.Success && len(e.Errors) > 0 {
		return fmt.Errorf("%w: successful envelope carries %d errors", ErrInvalidEnvelope, len(e.Errors))
	}
	if !e.Success && e.ID != nil {
		return fmt.Errorf("%w: failed envelope carries an id", ErrInvalidEnvelope)
	}
	if !e.Success && e.Payload != nil {
		return fmt.Errorf("%w: failed envelope carries a payload", ErrInvalidEnvelope)
	}
	return nil
}

// Serialize renders the envelope as a JSON object with members id, success,
// payload, messages, errors and warnings in that order. Absent values render
// as null and empty lists as [].
func (e Envelope) Serialize() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return jsoncodec.Marshal(wire{
		ID:       e.ID,
		Success:  e.Success,
		Payload:  e.Payload,
		Messages: nonNil(e.Messages),
		Errors:   nonNil(e.Errors),
		Warnings: nonNil(e.Warnings),
	})
}

// Decode reads an envelope produced by Serialize.
func Decode(data []byte) (Envelope, error) {
	var w wire
	if err := jsoncodec.Unmarshal(data, &w); err != nil {
		return Envelope{}, errspkg.New(errspkg.ErrParse, "decode completion", err)
	}
	env := Envelope{
		ID:       w.ID,
		Success:  w.Success,
		Payload:  w.Payload,
		Messages: nonNil(w.Messages),
		Errors:   nonNil(w.Errors),
		Warnings: nonNil(w.Warnings),
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, errspkg.New(errspkg.ErrParse, "decode completion", err)
	}
	return env, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
