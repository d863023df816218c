package point

import (
	"errors"
	"fmt"
)

// Error is the typed failure surfaced by the store, the weight engine and
// the samplers. Conditions that need operator attention carry a Code so
// callers can branch with the Is* helpers below.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "add point", "enrich").
	Op string

	// Interface is the interface the operation targeted, if any.
	Interface int

	// PointID is the point the operation targeted, if any.
	PointID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (e.g. the last driver error).
	Err error
}

// ErrorCode categorizes point errors.
type ErrorCode string

const (
	// ErrCodeWriteExhausted indicates a write kept failing transiently until
	// the retry budget ran out.
	ErrCodeWriteExhausted ErrorCode = "WRITE_EXHAUSTED"

	// ErrCodeDegenerateWeight indicates a zero or non-finite denominator in
	// enrichment or renormalization.
	ErrCodeDegenerateWeight ErrorCode = "DEGENERATE_WEIGHT"

	// ErrCodeEmptyDistribution indicates a draw from no candidates or from
	// zero total weight.
	ErrCodeEmptyDistribution ErrorCode = "EMPTY_DISTRIBUTION"

	// ErrCodeBrokenAncestry indicates a traceback reached a missing parent.
	ErrCodeBrokenAncestry ErrorCode = "BROKEN_ANCESTRY"

	// ErrCodeInvalidPoint indicates a record that violates a field invariant.
	ErrCodeInvalidPoint ErrorCode = "INVALID_POINT"

	// ErrCodeUnknownOrigin indicates an origin id that is neither a stored
	// point nor the escape sentinel.
	ErrCodeUnknownOrigin ErrorCode = "UNKNOWN_ORIGIN"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.PointID != "" {
		msg += fmt.Sprintf(" (point=%s)", e.PointID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsWriteExhausted reports whether err is a write that ran out of retries.
func IsWriteExhausted(err error) bool { return hasCode(err, ErrCodeWriteExhausted) }

// IsDegenerateWeight reports whether err is a zero-denominator weight update.
func IsDegenerateWeight(err error) bool { return hasCode(err, ErrCodeDegenerateWeight) }

// IsEmptyDistribution reports whether err is a draw from nothing.
func IsEmptyDistribution(err error) bool { return hasCode(err, ErrCodeEmptyDistribution) }

// IsBrokenAncestry reports whether err is a traceback with a missing parent.
func IsBrokenAncestry(err error) bool { return hasCode(err, ErrCodeBrokenAncestry) }

// IsInvalidPoint reports whether err is a rejected record.
func IsInvalidPoint(err error) bool {
	return hasCode(err, ErrCodeInvalidPoint) || hasCode(err, ErrCodeUnknownOrigin)
}

// NewWriteExhausted wraps the last transient failure of a write.
func NewWriteExhausted(op, pointID string, attempts int, last error) *Error {
	return &Error{
		Code:    ErrCodeWriteExhausted,
		Op:      op,
		PointID: pointID,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:     last,
	}
}

// NewDegenerateWeight reports an enrichment denominator that is unusable.
func NewDegenerateWeight(op string, iface int, used, total float64) *Error {
	return &Error{
		Code:      ErrCodeDegenerateWeight,
		Op:        op,
		Interface: iface,
		Message:   fmt.Sprintf("previous interface weights used=%g total=%g", used, total),
	}
}

// NewEmptyDistribution reports a draw over nothing.
func NewEmptyDistribution(op string, iface int, n int) *Error {
	return &Error{
		Code:      ErrCodeEmptyDistribution,
		Op:        op,
		Interface: iface,
		Message:   fmt.Sprintf("no weight to draw from (%d candidates)", n),
	}
}

// NewBrokenAncestry reports a traceback that reached a missing parent.
func NewBrokenAncestry(from, missing string) *Error {
	return &Error{
		Code:    ErrCodeBrokenAncestry,
		Op:      "trace",
		PointID: from,
		Message: fmt.Sprintf("origin %q not found", missing),
	}
}
