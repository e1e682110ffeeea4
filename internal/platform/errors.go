package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion indicates a provider payload lacks fields a result needs.
	ErrConversion = errors.New("result conversion failed")

	// ErrStreamExhausted is yielded when a chunk stream is iterated twice.
	ErrStreamExhausted = errors.New("stream already consumed")

	// ErrUnexpectedResult indicates the caller asked for the wrong result type.
	ErrUnexpectedResult = errors.New("unexpected result type")

	// ErrNoClient indicates no registered model client handles the model class.
	ErrNoClient = errors.New("no model client for model")
)

// ConversionError describes a malformed or incomplete provider response.
type ConversionError struct {
	Provider string
	Reason   string
	Err      error
}

// NewConversionError builds a ConversionError with a formatted reason.
func NewConversionError(provider, format string, args ...any) *ConversionError {
	return &ConversionError{Provider: provider, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: [%s] %s: %v", ErrConversion, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: [%s] %s", ErrConversion, e.Provider, e.Reason)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }
