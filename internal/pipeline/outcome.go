package pipeline

import (
	"errors"
	"fmt"

	"github.com/memohai/mediagrab/internal/link"
)

// Status is the terminal state of one handled message.
type Status string

const (
	StatusDelivered           Status = "delivered"
	StatusClassificationEmpty Status = "classification_empty"
	StatusResolutionFailed    Status = "resolution_failed"
	StatusFetchFailed         Status = "fetch_failed"
	StatusTooLarge            Status = "too_large"
	StatusDeliveryFailed      Status = "delivery_failed"
)

// Outcome summarizes how a message was handled.
type Outcome struct {
	Status   Status
	Provider link.Provider
	// Delivered counts assets that reached the chat, including those sent
	// before a later sibling failed.
	Delivered int
	// Size is the offending size in bytes for StatusTooLarge.
	Size int64
	Err  error
}

// OK reports whether every asset was delivered.
func (o Outcome) OK() bool {
	return o.Status == StatusDelivered
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s(%s): %v", o.Status, o.Provider, o.Err)
	}
	return fmt.Sprintf("%s(%s)", o.Status, o.Provider)
}

type stage int

const (
	stageFetch stage = iota
	stageDeliver
)

// stageError tags an asset failure with the step that produced it.
type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string {
	return e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

// tooLargeError is returned when a fetched or declared size exceeds the ceiling.
type tooLargeError struct {
	size  int64
	limit int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("asset of %d bytes exceeds %d", e.size, e.limit)
}

func statusFor(err error) (Status, int64) {
	var tl *tooLargeError
	if errors.As(err, &tl) {
		return StatusTooLarge, tl.size
	}
	var se *stageError
	if errors.As(err, &se) && se.stage == stageFetch {
		return StatusFetchFailed, 0
	}
	return StatusDeliveryFailed, 0
}
