package nodeapi

import (
	"errors"
	"fmt"
)

// Common errors for node API operations.
var (
	// ErrNilClient indicates the HTTP client is nil.
	ErrNilClient = errors.New("nodeapi: HTTP client cannot be nil")

	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("nodeapi: logger cannot be nil")

	// ErrNoBlocks indicates last_blocks returned an empty list.
	ErrNoBlocks = errors.New("nodeapi: node returned no blocks")
)

// TransportError is returned for every failed node request: the request
// could not be sent, the node answered with a non-2xx status, or the body
// could not be decoded.
type TransportError struct {
	// Path is the endpoint relative to the base URL
	Path string

	// RequestID is the X-Request-ID sent with the request
	RequestID string

	// StatusCode is 0 when no response was received
	StatusCode int

	Err error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("nodeapi: GET %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("nodeapi: GET %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
