package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUnreachable covers connection failures and non-success statuses.
	ErrUnreachable = errors.New("resolver unreachable")
	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("resolver timeout")
	// ErrNotFound indicates the service answered but reported no asset.
	ErrNotFound = errors.New("asset not found")
	// ErrMalformed indicates a response body that could not be interpreted.
	ErrMalformed = errors.New("malformed resolver response")
)

// Error is the only error type a Resolver returns. Kind is one of the
// sentinel errors above; Err carries the underlying cause for logs.
type Error struct {
	Resolver string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Resolver, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Resolver, e.Kind, e.Err)
}

// Is matches the sentinel kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(resolver string, kind, cause error) *Error {
	return &Error{Resolver: resolver, Kind: kind, Err: cause}
}

// transportError collapses a request failure into a typed resolver error.
func transportError(resolver string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(resolver, ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(resolver, ErrTimeout, err)
	}
	return newError(resolver, ErrUnreachable, err)
}
