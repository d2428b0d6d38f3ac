package rset

import (
	"errors"
	"fmt"
	"strings"
)

// Error families. Every error returned by this package wraps exactly one
// of them, so callers can use errors.Is(err, ErrTypeMismatch) and friends.
var (
	// ErrTypeMismatch covers wrong raw data shapes and incompatible adapters.
	ErrTypeMismatch = errors.New("type error")
	// ErrReference covers unknown names and ids.
	ErrReference = errors.New("reference error")
	// ErrRange covers invalid positions.
	ErrRange = errors.New("range error")
)

var (
	ErrShape               = fmt.Errorf("%w: raw data has unexpected shape", ErrTypeMismatch)
	ErrIncompatibleAdapter = fmt.Errorf("%w: incompatible adapters", ErrTypeMismatch)
	ErrFieldType           = fmt.Errorf("%w: unexpected field type", ErrTypeMismatch)
	ErrUnknownField        = fmt.Errorf("%w: unknown field", ErrReference)
	ErrUnknownFormat       = fmt.Errorf("%w: unknown format id", ErrReference)
	ErrUnknownModule       = fmt.Errorf("%w: unknown module", ErrReference)
	ErrReadOnly            = fmt.Errorf("%w: property is read-only", ErrReference)
	ErrFieldExists         = fmt.Errorf("%w: field already exists", ErrReference)
	ErrOutOfBounds         = fmt.Errorf("%w: index out of bounds", ErrRange)
)

// DataError reports raw data that an adapter cannot interpret.
type DataError struct {
	Adapter string
	Data    any
	Err     error
	Msg     string
}

func dataErrf(adapter string, data any, err error, format string, args ...any) error {
	if err == nil {
		err = ErrShape
	}
	return &DataError{adapter, data, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const maxLen = 96
	s := fmt.Sprintf("%v", e.Data)
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return fmt.Sprintf("%s: %s: %v: (%T) %s", e.Adapter, e.Msg, e.Err, e.Data, s)
}

// FieldError reports a failure tied to a particular field or position.
type FieldError struct {
	Entity string
	Field  string
	Pos    int
	Msg    string
	Err    error
}

func fieldErrf(entity, field string, err error, format string, args ...any) error {
	return &FieldError{entity, field, -1, fmt.Sprintf(format, args...), err}
}

func posErrf(entity string, pos, count int) error {
	return &FieldError{entity, "", pos, fmt.Sprintf("position %d, count %d", pos, count), ErrOutOfBounds}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (e *FieldError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Entity)
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func checkPos(entity string, pos, count int) error {
	if pos < 0 || pos >= count {
		return posErrf(entity, pos, count)
	}
	return nil
}
