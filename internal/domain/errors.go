package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidJob      = errors.New("invalid job")
	ErrInvalidJobState = errors.New("invalid job state")
	ErrJobNotFound     = errors.New("job not found")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrResultNotFound  = errors.New("result not found")
)

// UpstreamFetchError reports a failed catalog lookup.
type UpstreamFetchError struct {
	ProductID  int64
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch product %d: upstream returned %d", e.ProductID, e.StatusCode)
	}
	return fmt.Sprintf("fetch product %d: %v", e.ProductID, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// GenerationError reports a failed or rejected content generation call.
type GenerationError struct {
	ProductID int64
	Detail    string
	Err       error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generate content for product %d", e.ProductID)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it is nil or already a domain sentinel.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrJobNotFound, ErrBatchNotFound, ErrResultNotFound, ErrInvalidJobState} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
