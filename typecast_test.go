package rset

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCastFromWire_Scalars(t *testing.T) {
	cc := castContext{}
	cast := func(raw any, f Field) any {
		t.Helper()
		return must(castFromWire(raw, f, cc))
	}

	eq(t, cast(float64(42), NewField("n", KindInteger)), any(int64(42)))
	eq(t, cast("17", NewField("n", KindInteger)), any(int64(17)))
	eq(t, cast(int8(3), NewField("x", KindReal)), any(float64(3)))
	eq(t, cast(float64(1), NewField("b", KindBoolean)), any(true))
	eq(t, cast(12, NewField("s", KindString)), any("12"))
	eq(t, cast(nil, NewField("n", KindInteger)), any(nil))

	_, err := castFromWire("x1", NewField("n", KindInteger), cc)
	isErr(t, err, ErrTypeMismatch)
}

func TestCastMoney(t *testing.T) {
	f := NewField("sum", KindMoney, Precision(2), Large(true))
	v := must(castFromWire("10.50", f, castContext{}))
	d, ok := v.(decimal.Decimal)
	if !ok || !d.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("** got %v, wanted decimal 10.5", v)
	}
	eq(t, must(castToWire(d, f)), any("10.50"))

	small := NewField("sum", KindMoney)
	eq(t, must(castToWire(decimal.NewFromFloat(1.25), small)), any(1.25))
}

func TestCastTimes(t *testing.T) {
	date := NewField("d", KindDate)
	v := must(castFromWire("2024-03-01", date, castContext{}))
	tm := v.(time.Time)
	eq(t, tm.Year(), 2024)
	eq(t, tm.Month(), time.March)
	eq(t, must(castToWire(tm, date)), any("2024-03-01"))

	dt := NewField("dt", KindDateTime, WithoutTimeZone(true))
	w := must(castToWire(time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), dt))
	eq(t, w, any("2024-03-01 10:20:30"))

	iv := NewField("iv", KindTimeInterval)
	d := must(castFromWire("P1DT2H3M4.5S", iv, castContext{}))
	eq(t, d, any(24*time.Hour+2*time.Hour+3*time.Minute+4500*time.Millisecond))
	eq(t, must(castToWire(90*time.Minute, iv)), any("PT1H30M0S"))

	_, err := castFromWire("P1M", iv, castContext{})
	isErr(t, err, ErrTypeMismatch)
}

func TestCastIdentity(t *testing.T) {
	f := NewField("@id", KindIdentity)
	v := must(castFromWire([]any{float64(5), "Docs"}, f, castContext{}))
	eq(t, v.(Identity).Source, "Docs")
	eq(t, v.(Identity).Value, any(float64(5)))
	deepEqual(t, must(castToWire(Identity{Value: 7}, f)), any([]any{7}))
	deepEqual(t, must(castToWire(Identity{Value: 7, Source: "X"}, f)), any([]any{7, "X"}))
	eq(t, must(castFromWire([]any{nil}, f, castContext{})), any(nil))
}

func TestCastEnumAndFlags(t *testing.T) {
	dict := DictionaryOf("red", "green", "blue")
	e := NewField("color", KindEnum, WithDictionary(dict))
	v := must(castFromWire(float64(1), e, castContext{}))
	eq(t, v.(Enum).Name, "green")
	eq(t, must(castToWire("blue", e)), any(int64(2)))
	_, err := castFromWire(float64(9), e, castContext{})
	isErr(t, err, ErrReference)

	fl := NewField("opts", KindFlags, WithDictionary(DictionaryOf("a", "b", "c")))
	flags := must(castFromWire([]any{true, nil, false}, fl, castContext{})).(Flags)
	deepEqual(t, map[string]bool(flags), map[string]bool{"a": true, "c": false})
	deepEqual(t, must(castToWire(Flags{"b": true}, fl)), any([]any{nil, true, nil}))

	_, err = castToWire(Flags{"zzz": true}, fl)
	isErr(t, err, ErrReference)
}

func TestCastArrayBinaryUUID(t *testing.T) {
	arr := NewField("ids", KindArray, ElementKind(KindInteger))
	deepEqual(t, must(castFromWire([]any{float64(1), "2"}, arr, castContext{})), any([]any{int64(1), int64(2)}))

	bin := NewField("b", KindBinary)
	eq(t, must(castToWire([]byte("hi"), bin)), any("aGk="))
	deepEqual(t, must(castFromWire("aGk=", bin, castContext{})), any([]byte("hi")))

	u := uuid.New()
	uf := NewField("u", KindUUID)
	eq(t, must(castFromWire(u.String(), uf, castContext{})), any(u))
	_, err := castToWire("not-a-uuid", uf)
	isErr(t, err, ErrTypeMismatch)
}

func TestInferKind(t *testing.T) {
	eq(t, inferKind(float64(3)), KindInteger)
	eq(t, inferKind(3.5), KindReal)
	eq(t, inferKind("x"), KindString)
	eq(t, inferKind(nil), KindString)
	eq(t, inferKind([]any{1}), KindArray)
	eq(t, inferKind([]int{1}), KindArray)
	eq(t, inferKind(map[string]any{}), KindObject)
	eq(t, inferKind(decimal.Zero), KindMoney)
	eq(t, inferKind(true), KindBoolean)
}

func TestValuesEqual(t *testing.T) {
	eq(t, valuesEqual(int64(1), float64(1)), true)
	eq(t, valuesEqual(math.NaN(), math.NaN()), true)
	eq(t, valuesEqual(nil, 0), false)
	eq(t, valuesEqual([]any{1, "a"}, []any{float64(1), "a"}), true)
	eq(t, valuesEqual(map[string]any{"a": 1}, map[string]any{"a": int8(1)}), true)
	eq(t, valuesEqual(decimal.RequireFromString("1.50"), decimal.RequireFromString("1.5")), true)

	now := time.Now()
	eq(t, valuesEqual(now, now.In(time.UTC)), true)

	r1 := plainRec(t, map[string]any{"a": 1})
	r2 := plainRec(t, map[string]any{"a": 1})
	eq(t, valuesEqual(r1, r1), true)
	eq(t, valuesEqual(r1, r2), false)
}

func TestValuesEqual_LargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	eq(t, valuesEqual(big, big+1), false)
	eq(t, valuesEqual(big+1, uint64(big+1)), true)
	eq(t, valuesEqual(int8(-3), int64(-3)), true)
	eq(t, valuesEqual(uint64(math.MaxUint64), int64(-1)), false)
	eq(t, valuesEqual(int64(math.MinInt64), int64(math.MinInt64)), true)
	eq(t, valuesEqual(int64(2), 2.0), true)
}

func TestCastInteger_Range(t *testing.T) {
	f := NewField("n", KindInteger)
	eq(t, must(castToWire(int64(math.MaxInt64), f)), any(int64(math.MaxInt64)))
	eq(t, must(castToWire(uint64(7), f)), any(int64(7)))
	eq(t, must(castToWire(2.0, f)), any(int64(2)))
	eq(t, must(castToWire(decimal.NewFromInt(-4), f)), any(int64(-4)))

	for _, v := range []any{
		uint64(math.MaxUint64),
		1.5,
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
		1e19,
		decimal.RequireFromString("2.5"),
		decimal.RequireFromString("9223372036854775808"),
	} {
		_, err := castToWire(v, f)
		isErr(t, err, ErrTypeMismatch)
		_, err = castFromWire(v, f, castContext{})
		isErr(t, err, ErrTypeMismatch)
	}
}

func TestToInt64(t *testing.T) {
	n, ok := toInt64(float32(3))
	eq(t, ok, true)
	eq(t, n, int64(3))
	_, ok = toInt64(^uint(0))
	eq(t, ok, false)
	_, ok = toInt64(float64(math.MaxInt64))
	eq(t, ok, false)
	n, ok = toInt64(float64(math.MinInt64))
	eq(t, ok, true)
	eq(t, n, int64(math.MinInt64))
}
