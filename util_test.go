package rset

import (
	"log/slog"
	"testing"
)

func TestSplitByte(t *testing.T) {
	a, b, ok := splitByte("a.b.c", '.')
	if !ok || a != "a" || b != "b.c" {
		t.Fatalf("splitByte = (%q, %q, %v), wanted (\"a\", \"b.c\", true)", a, b, ok)
	}

	a, b, ok = splitByte("ab", '.')
	if ok || a != "ab" || b != "" {
		t.Fatalf("splitByte(no sep) = (%q, %q, %v), wanted (\"ab\", \"\", false)", a, b, ok)
	}
}

func TestRpad(t *testing.T) {
	if got := rpad("abc", 5, '.'); got != "abc.." {
		t.Fatalf("rpad = %q, wanted %q", got, "abc..")
	}
	if got := rpad("abc", 1, '.'); got != "abc" {
		t.Fatalf("rpad = %q, wanted %q", got, "abc")
	}
}

func TestSliceHelpers(t *testing.T) {
	s := []int{1, 2, 3}
	s = insertAt(s, 1, 9)
	deepEqual(t, s, []int{1, 9, 2, 3})
	s = insertAt(s, -1, 7)
	deepEqual(t, s, []int{1, 9, 2, 3, 7})
	s = removeAt(s, 0)
	deepEqual(t, s, []int{9, 2, 3, 7})

	moveItem(s, 0, 3)
	deepEqual(t, s, []int{2, 3, 7, 9})
	moveItem(s, 3, 1)
	deepEqual(t, s, []int{2, 9, 3, 7})
}

func TestSameRef(t *testing.T) {
	m := map[string]any{"a": 1}
	eq(t, sameRef(m, m), true)
	eq(t, sameRef(m, map[string]any{"a": 1}), false)

	s := []any{1, 2}
	eq(t, sameRef(s, s), true)
	eq(t, sameRef(s, s[:1]), false)
	eq(t, sameRef(1, 1), false)
	eq(t, sameRef(nil, nil), true)
}

func TestToInt(t *testing.T) {
	n, ok := toInt(float64(3))
	eq(t, n, 3)
	eq(t, ok, true)
	_, ok = toInt(3.5)
	eq(t, ok, false)
	n, ok = toInt(uint16(8))
	eq(t, n, 8)
	eq(t, ok, true)
	_, ok = toInt("3")
	eq(t, ok, false)
}

func TestLoggerOr(t *testing.T) {
	if loggerOr(nil) != slog.Default() {
		t.Fatalf("loggerOr(nil) is not the default logger")
	}
	l := slog.New(slog.NewTextHandler(nil, nil))
	if loggerOr(l) != l {
		t.Fatalf("loggerOr(l) is not l")
	}
}

func TestPaths(t *testing.T) {
	data := map[string]any{
		"a": map[string]any{"b": []any{10, 20}},
	}
	eq(t, getPath(data, "a.b.1"), any(20))
	eq(t, getPath(data, "a.x"), any(nil))

	noerr(t, setPath(AdapterPlain, data, "a.b.0", 5))
	eq(t, getPath(data, "a.b.0"), any(5))
	isErr(t, setPath(AdapterPlain, data, "a.b.7", 5), ErrOutOfBounds)
	isErr(t, setPath(AdapterPlain, data, "q.r", 5), ErrUnknownField)
}
