package internal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrAccountNotFound       = errors.New("account not found")
	ErrPaymentDetailNotFound = errors.New("payment detail not found")

	ErrRequestInProgress = errors.New("request with the same idempotency key is in progress")

	ErrVersionConflict   = errors.New("account version changed concurrently")
	ErrTerminalWriteLost = errors.New("withdrawal became terminal while locked")
)

// TransientError marks infrastructure failures that must never be written to a
// withdrawal's terminal state. The queue or the next scheduler tick retries them.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError carries per-field messages for rejected requests.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}
