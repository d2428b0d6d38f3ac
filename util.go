package rset

import (
	"log/slog"
	"math"
	"reflect"
	"strings"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func splitByte(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	} else {
		return s[:i], s[i+1:], true
	}
}

func rpad(s string, n int, pad rune) string {
	rem := n - len(s)
	if rem <= 0 {
		return s
	}
	return s + strings.Repeat(string(pad), rem)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// sameRef reports whether a and b are the same reference-typed value
// (same map, same slice backing array and length, same pointer).
func sameRef(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Type() != bv.Type() {
		return false
	}
	switch av.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return av.Pointer() == bv.Pointer()
	case reflect.Slice:
		return av.Len() == bv.Len() && (av.Len() == 0 || av.Pointer() == bv.Pointer())
	default:
		return false
	}
}

// toInt converts numeric wire values (JSON float64, msgpack ints) to int.
func toInt(v any) (int, bool) {
	n, ok := toInt64(v)
	if !ok || int64(int(n)) != n {
		return 0, false
	}
	return int(n), true
}

// toInt64 converts integers and whole floats that fit into int64.
func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	default:
		return 0, false
	}
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func insertAt[S ~[]E, E any](s S, at int, v E) S {
	if at < 0 || at >= len(s) {
		return append(s, v)
	}
	var zero E
	s = append(s, zero)
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}

func removeAt[S ~[]E, E any](s S, at int) S {
	copy(s[at:], s[at+1:])
	var zero E
	s[len(s)-1] = zero
	return s[:len(s)-1]
}

func moveItem[S ~[]E, E any](s S, from, to int) {
	if from == to {
		return
	}
	v := s[from]
	if from < to {
		copy(s[from:to], s[from+1:to+1])
	} else {
		copy(s[to+1:from+1], s[to:from])
	}
	s[to] = v
}
