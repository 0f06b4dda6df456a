package blog

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user declines the overwrite
// confirmation during conflict recovery. Callers must not surface it
// as an error dialog.
var ErrCancelled = errors.New("operation cancelled by user")

// IsCancelled reports whether err stems from a declined confirmation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// InvalidServerResponseError reports a server reply that violates the
// protocol contract (missing Location header, missing entry node,
// unparsable date). The raw body is carried for diagnostics.
type InvalidServerResponseError struct {
	Method  string
	Message string
	Body    string
}

func (e *InvalidServerResponseError) Error() string {
	return fmt.Sprintf("invalid server response to %s: %s", e.Method, e.Message)
}

// ProviderError is a provider-level failure with a provider-defined
// code. Code "404" marks the distinguishable not-found condition that
// lets callers offer a re-publish-as-new fallback.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a ProviderError carrying the
// not-found code.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == "404"
}

// MethodUnsupportedError is returned for contract operations the
// provider does not implement (for example pages on generic Atom).
type MethodUnsupportedError struct {
	Method string
}

func (e *MethodUnsupportedError) Error() string {
	return fmt.Sprintf("method not supported by this provider: %s", e.Method)
}
