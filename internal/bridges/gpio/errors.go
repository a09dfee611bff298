package gpio

import (
	"errors"
	"fmt"
)

// Domain errors for the GPIO bridge package.
var (
	// ErrNotAnOutput is returned when a command targets an item whose
	// binding is not an output pin.
	ErrNotAnOutput = errors.New("gpio: item is not bound to an output pin")

	// ErrUnrecognizedCommand is returned when a command token matches none
	// of the known command forms. Nothing is sent and no cached state changes.
	ErrUnrecognizedCommand = errors.New("gpio: unrecognized command")

	// ErrMalformedCommandFields is returned when a recognised command
	// pattern carries the wrong number of fields.
	ErrMalformedCommandFields = errors.New("gpio: malformed command fields")

	// ErrInvalidFieldValue is returned when a command field cannot be
	// parsed as the expected type.
	ErrInvalidFieldValue = errors.New("gpio: invalid field value")

	// ErrEndpointUnavailable is returned by Send when the endpoint has no
	// open connection.
	ErrEndpointUnavailable = errors.New("gpio: endpoint unavailable")

	// ErrItemNotConfigured is returned when no binding exists for an item.
	ErrItemNotConfigured = errors.New("gpio: item not configured")

	// ErrInvalidBinding is returned when a binding string cannot be parsed.
	ErrInvalidBinding = errors.New("gpio: invalid binding")

	// ErrDuplicateItem is returned when an items file declares the same
	// item name twice.
	ErrDuplicateItem = errors.New("gpio: duplicate item")
)

// FieldCountError reports a recognised command pattern carrying the wrong
// number of underscore-separated fields.
type FieldCountError struct {
	Pattern  string // e.g. "fade"
	Expected string // e.g. "3 or 6"
	Found    int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("%s: %s expects %s fields, found %d",
		ErrMalformedCommandFields, e.Pattern, e.Expected, e.Found)
}

func (e *FieldCountError) Unwrap() error { return ErrMalformedCommandFields }

// FieldValueError reports a command field that failed to parse.
type FieldValueError struct {
	Pattern string
	Field   string
	Value   string
	Err     error
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("%s: %s field %s=%q: %v",
		ErrInvalidFieldValue, e.Pattern, e.Field, e.Value, e.Err)
}

func (e *FieldValueError) Unwrap() []error { return []error{ErrInvalidFieldValue, e.Err} }

// Error codes carried in failed command acknowledgements.
const (
	ErrCodeNotConfigured       = "NOT_CONFIGURED"
	ErrCodeNotAnOutput         = "NOT_AN_OUTPUT"
	ErrCodeUnrecognized        = "UNRECOGNIZED_COMMAND"
	ErrCodeMalformedFields     = "MALFORMED_FIELDS"
	ErrCodeInvalidField        = "INVALID_FIELD"
	ErrCodeEndpointUnavailable = "ENDPOINT_UNAVAILABLE"
	ErrCodeBridgeError         = "BRIDGE_ERROR"
)

// ErrorCode maps a command pipeline error to its acknowledgement code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrItemNotConfigured):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrNotAnOutput):
		return ErrCodeNotAnOutput
	case errors.Is(err, ErrUnrecognizedCommand):
		return ErrCodeUnrecognized
	case errors.Is(err, ErrMalformedCommandFields):
		return ErrCodeMalformedFields
	case errors.Is(err, ErrInvalidFieldValue):
		return ErrCodeInvalidField
	case errors.Is(err, ErrEndpointUnavailable):
		return ErrCodeEndpointUnavailable
	default:
		return ErrCodeBridgeError
	}
}
