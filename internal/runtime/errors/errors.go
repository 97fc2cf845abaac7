package errors

import (
	"fmt"

	sterrors "errors"
)

var (
	ErrConfigRequired       = sterrors.New("renderflow: configuration is required")
	ErrLoggerRequired       = sterrors.New("renderflow: logger is required")
	ErrChannelURLRequired   = sterrors.New("renderflow: channel URL is required")
	ErrClientIDRequired     = sterrors.New("renderflow: client id is required")
	ErrQueueServiceRequired = sterrors.New("renderflow: remote queue service is required")
	ErrHandlerRequired      = sterrors.New("renderflow: handler function is required")
	ErrEventNameRequired    = sterrors.New("renderflow: event name is required")
	ErrPublisherRequired    = sterrors.New("renderflow: publisher is required")
	ErrTopicRequired        = sterrors.New("renderflow: topic is required")
	ErrEventPayloadRequired = sterrors.New("renderflow: event payload is required")
	ErrNotConnected         = sterrors.New("renderflow: channel is not open")
	ErrAlreadyConnecting    = sterrors.New("renderflow: channel is already open or connecting")
)

// ConfigValidationError wraps the joined validation failures reported by
// Config.Validate so callers can detect them with errors.As.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "renderflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err in a ConfigValidationError. A nil err
// returns nil so callers can pass Validate results through unconditionally.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// ValidationError reports a request that was rejected before any collaborator
// call. Code is a stable machine-readable identifier such as
// "MISSING_PARAMETER" or "INVALID_CANCEL_TYPE".
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("renderflow: %s: %s (field %q)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("renderflow: %s: %s", e.Code, e.Message)
}

// NewValidationError builds a ValidationError for the given code and field.
func NewValidationError(code, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// TransportError reports a failure on the push channel itself: a failed dial,
// a broken read, or a rejected write. It does not imply a state transition;
// the subsequent close drives reconnection.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("renderflow: transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError reports a non-2xx response from the remote queue service.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("renderflow: remote queue returned status %d", e.StatusCode)
}
