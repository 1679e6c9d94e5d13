package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassUnexpected represents other non-2xx statuses (1xx, 3xx).
	ErrorClassUnexpected ErrorClass = "unexpected"
)

// TransportError is returned for any non-2xx response or network failure.
// It is never retried by this package.
type TransportError struct {
	StatusCode int
	Class      ErrorClass
	Message    string

	// Body is the raw response body, the catalog's error detail.
	Body []byte

	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("catalog %s error (status %d): %s: %s",
			e.Class, e.StatusCode, e.Message, e.Body)
	}
	return fmt.Sprintf("catalog %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError extracts a *TransportError from an error chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnexpected
	}
}
