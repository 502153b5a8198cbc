package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired   = sterrors.New("vehicleflow: ingestion service is required")
	ErrPublisherRequired = sterrors.New("vehicleflow: publisher is required")
	ErrStoreRequired     = sterrors.New("vehicleflow: vehicle store is required")
	ErrTopicRequired     = sterrors.New("vehicleflow: completion topic is required")
	ErrLoggerRequired    = sterrors.New("vehicleflow: logger is required")
)

// Failure kinds. Every error produced while handling a record is classified
// as exactly one of these and can be matched with errors.Is.
var (
	// ErrDecode marks a payload that is not valid base64.
	ErrDecode = sterrors.New("decode error")
	// ErrEncoding marks decoded bytes that are not valid UTF-8.
	ErrEncoding = sterrors.New("encoding error")
	// ErrParse marks text that does not match the vehicle schema.
	ErrParse = sterrors.New("parse error")
	// ErrPersistence marks a failed bulk insert.
	ErrPersistence = sterrors.New("persistence error")
	// ErrPublish marks a completion that could not be delivered.
	ErrPublish = sterrors.New("publish error")
	// ErrConfiguration marks a collaborator that could not be built. It is
	// the only kind that aborts a whole batch.
	ErrConfiguration = sterrors.New("configuration error")
)

// Error is a classified failure. Kind is one of the sentinel kinds above, Op
// names the step that failed.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// New classifies err under kind.
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf classifies a formatted message under kind.
func Newf(kind error, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// KindOf returns the failure kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	var classified *Error
	if sterrors.As(err, &classified) {
		return classified.Kind
	}
	return nil
}

// ConfigValidationError aggregates configuration problems found at startup.
type ConfigValidationError struct {
	Err error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("vehicleflow: invalid configuration: %v", e.Err)
}

func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// Is lets configuration validation failures match ErrConfiguration.
func (e *ConfigValidationError) Is(target error) bool {
	return target == ErrConfiguration
}
