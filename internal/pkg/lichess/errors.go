package lichess

import (
	"errors"
	"fmt"
)

var (
	ErrRemoteUnavailable = errors.New("lichess unavailable")
	ErrRemoteRejected    = errors.New("lichess rejected request")
	ErrMalformedResponse = errors.New("malformed lichess response")
)

// StatusError carries the status of a non-2xx response. It matches ErrRemoteRejected.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lichess returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("lichess returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrRemoteRejected
}
