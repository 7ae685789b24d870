package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks logical absence: a missing market, token, or
	// snapshot. It is an expected outcome, never logged as a failure.
	ErrNotFound = errors.New("not found")

	// ErrMalformedData marks venue payloads that could not be parsed into
	// their canonical form (token-id lists, order-book levels). Callers
	// skip the affected record and continue.
	ErrMalformedData = errors.New("malformed data")
)

// TransportError is a network-level failure (connection refused, timeout).
// It is retryable on the next scheduled interval, never immediately.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// VenueError is a non-success HTTP response from the venue, carrying the
// status code and response body. Encountered mid-pagination it is treated
// as end-of-page.
type VenueError struct {
	Status int
	Body   string
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue: HTTP %d: %s", e.Status, e.Body)
}

// IsRetryable reports whether err should be retried on the next interval
// rather than treated as a data-level problem.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ve *VenueError
	return errors.As(err, &ve) && ve.Status >= 500
}
