package rset

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf(AdapterPlain, []int{1, 2}, inner, "oops %d", 1)
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.Contains(s, "oops 1") || !strings.Contains(s, "inner") || !strings.Contains(s, "[1 2]") {
			t.Fatalf("err.Error() = %q, wanted message with oops 1/inner/[1 2]", s)
		}
	})

	t.Run("default family", func(t *testing.T) {
		err := dataErrf(AdapterColumnar, nil, nil, "bad")
		isErr(t, err, ErrShape)
		isErr(t, err, ErrTypeMismatch)
	})

	t.Run("large data is truncated", func(t *testing.T) {
		err := dataErrf(AdapterPlain, strings.Repeat("x", 500), nil, "oops")
		s := err.Error()
		if !strings.Contains(s, "...") || len(s) > 200 {
			t.Fatalf("err.Error() = %q, wanted truncated message", s)
		}
	})
}

func TestFieldError_ErrorAndUnwrap(t *testing.T) {
	err := fieldErrf("record", "name", ErrReadOnly, "cannot set")
	eq(t, err.Error(), "record.name: cannot set: reference error: property is read-only")
	isErr(t, err, ErrReference)

	err = posErrf("list", 5, 2)
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %T, wanted *FieldError", err)
	}
	eq(t, fe.Pos, 5)
	isErr(t, err, ErrRange)

	noerr(t, checkPos("list", 0, 1))
	isErr(t, checkPos("list", -1, 1), ErrOutOfBounds)
	isErr(t, checkPos("list", 1, 1), ErrOutOfBounds)
}

func TestErrorFamilies(t *testing.T) {
	for _, err := range []error{ErrShape, ErrIncompatibleAdapter, ErrFieldType} {
		isErr(t, err, ErrTypeMismatch)
	}
	for _, err := range []error{ErrUnknownField, ErrUnknownFormat, ErrUnknownModule, ErrReadOnly, ErrFieldExists} {
		isErr(t, err, ErrReference)
	}
	isErr(t, ErrOutOfBounds, ErrRange)
}
