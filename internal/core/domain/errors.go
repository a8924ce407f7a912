package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input: missing required tags, disallowed
	// source locations. Rejected before a job is created, never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound covers missing source bytes and unknown/expired jobs.
	ErrNotFound = errors.New("not found")
	// ErrParse marks unparseable source content; terminal for the job.
	ErrParse = errors.New("parse failed")
	// ErrPartialIndex marks divergence between the two stores: one write
	// succeeded and the other failed, or the row counts disagree. The
	// keyword-only state is resumable by re-running indexing.
	ErrPartialIndex = errors.New("partial index")
	// ErrTimeout marks a store call that exceeded its deadline; retriable.
	ErrTimeout = errors.New("timeout")
	// ErrTemporary marks retriable infrastructure faults.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf classifies an error into the taxonomy label recorded on failed
// jobs and surfaced to callers as a retriability hint.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrPartialIndex):
		return "partial_index"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}

// Retriable reports whether the external caller may usefully resubmit.
func Retriable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTemporary) || errors.Is(err, ErrPartialIndex)
}
