package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call.
type Kind int

const (
	// KindAuthOrNotFound covers 401, 403, 404 and any other non-retryable 4xx.
	KindAuthOrNotFound Kind = iota + 1
	KindRateLimited
	KindServerError
	KindNetworkError
	KindRetriesExhausted
)

func (k Kind) String() string {
	switch k {
	case KindAuthOrNotFound:
		return "auth_or_not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	case KindRetriesExhausted:
		return "retries_exhausted"
	}
	return "unknown"
}

// APIError is returned for every failed call. For KindRetriesExhausted, Err
// holds the last transient failure.
type APIError struct {
	Kind     Kind
	Status   int
	Endpoint string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("synergy %s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == kind
}
