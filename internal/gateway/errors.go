package gateway

import "fmt"

// TransportError reports a failed HTTP exchange: a network failure or a
// response with status >= 400. It aborts the fetch it occurred in; the
// caller decides whether to skip the affected project.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a paginated response whose body was not the expected
// JSON array of objects.
type ProtocolError struct {
	URL string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("expected a JSON array from %s", e.URL)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
