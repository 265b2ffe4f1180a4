package models

import "errors"

// Error taxonomy shared by the store, the services and the HTTP layer.
var (
	ErrUnauthenticated = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrUpstream        = errors.New("upstream completion failed")
	ErrConflict        = errors.New("already exists")
	ErrExportDisabled  = errors.New("transcript export is not configured")
)

// UpstreamError wraps a completion provider failure. Its text is the
// provider's own message and is returned to clients as-is.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return ErrUpstream.Error()
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ValidationError is a rejected request whose message is safe to show to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid returns a ValidationError carrying msg.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
