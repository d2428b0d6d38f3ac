package rset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Identity is the logical value of an identity field: a key value plus an
// optional source name, sent on the wire as [value] or [value, source].
type Identity struct {
	Value  any
	Source string
}

// Enum is the logical value of an enum field.
type Enum struct {
	Key        string
	Name       string
	Dictionary Dictionary
}

// Flags is the logical value of a flags field: dictionary name to state.
// Names absent from the map are unset (null on the wire).
type Flags map[string]bool

const (
	wireDate         = "2006-01-02"
	wireDateTime     = "2006-01-02 15:04:05.999999999-07"
	wireDateTimeNoTZ = "2006-01-02 15:04:05.999999999"
	wireTime         = "15:04:05.999999999-07"
	wireTimeNoTZ     = "15:04:05.999999999"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	wireDateTime,
	"2006-01-02 15:04:05.999999999-07:00",
	wireDateTimeNoTZ,
	"2006-01-02T15:04:05.999999999",
	wireDate,
}

var timeLayouts = []string{
	wireTime,
	"15:04:05.999999999-07:00",
	wireTimeNoTZ,
}

// castContext carries what nested entity kinds need to materialize values.
type castContext struct {
	adapter Adapter
	decode  func(raw any) any
}

func (cc castContext) nested(raw any) any {
	if cc.decode != nil {
		return cc.decode(raw)
	}
	return raw
}

func castErr(f Field, v any, err error) error {
	switch {
	case err == nil:
		err = ErrFieldType
	case !errors.Is(err, ErrTypeMismatch) && !errors.Is(err, ErrReference):
		err = fmt.Errorf("%w: %v", ErrFieldType, err)
	}
	return fieldErrf("cast", f.name, err, "%v value %T(%v)", f.kind, v, v)
}

// castFromWire converts a raw (on-wire) value to the field's logical type.
func castFromWire(raw any, f Field, cc castContext) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.kind {
	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, castErr(f, raw, nil)
			}
			return b, nil
		}
		if x, ok := toFloat(raw); ok {
			return x != 0, nil
		}
	case KindInteger, KindLink:
		return wireInt(f, raw)
	case KindReal:
		if x, ok := toFloat(raw); ok {
			return x, nil
		}
		if s, ok := raw.(string); ok {
			x, err := strconv.ParseFloat(s, 64)
			if err == nil {
				return x, nil
			}
		}
	case KindMoney:
		d, err := toDecimal(f, raw)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindString, KindText, KindXML, KindRPCFile:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case KindDate, KindDateTime:
		return parseTime(f, raw, dateTimeLayouts)
	case KindTime:
		return parseTime(f, raw, timeLayouts)
	case KindTimeInterval:
		switch v := raw.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := parseISODuration(v)
			if err != nil {
				return nil, castErr(f, raw, err)
			}
			return d, nil
		}
		if ms, ok := toFloat(raw); ok {
			return time.Duration(ms * float64(time.Millisecond)), nil
		}
	case KindIdentity:
		switch v := raw.(type) {
		case Identity:
			return v, nil
		case []any:
			id := Identity{}
			if len(v) > 0 {
				id.Value = v[0]
			}
			if len(v) > 1 {
				id.Source, _ = v[1].(string)
			}
			if id.Value == nil {
				return nil, nil
			}
			return id, nil
		default:
			return Identity{Value: v}, nil
		}
	case KindEnum:
		return toEnum(f, raw)
	case KindFlags:
		return toFlags(f, raw)
	case KindArray:
		items, ok := asAnySlice(raw)
		if !ok {
			return nil, castErr(f, raw, nil)
		}
		ef := NewField(f.name, f.elemKind)
		res := make([]any, len(items))
		for i, item := range items {
			v, err := castFromWire(item, ef, cc)
			if err != nil {
				return nil, err
			}
			res[i] = v
		}
		return res, nil
	case KindBinary:
		switch v := raw.(type) {
		case []byte:
			return v, nil
		case string:
			b, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, castErr(f, raw, err)
			}
			return b, nil
		}
	case KindUUID:
		switch v := raw.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return nil, castErr(f, raw, err)
			}
			return u, nil
		}
	case KindObject:
		return raw, nil
	case KindRecord:
		if rec, ok := raw.(*Record); ok {
			return rec, nil
		}
		rec, err := NewRecord(RecordOptions{Adapter: cc.adapter, RawData: cc.nested(raw)})
		if err != nil {
			return nil, err
		}
		return rec, nil
	case KindRecordSet:
		if rs, ok := raw.(*RecordSet); ok {
			return rs, nil
		}
		rs, err := NewRecordSet(RecordSetOptions{Adapter: cc.adapter, RawData: cc.nested(raw)})
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return raw, nil
	}
	return nil, castErr(f, raw, nil)
}

// castToWire converts a logical value to what gets stored in raw data.
func castToWire(v any, f Field) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.kind {
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInteger, KindLink:
		return wireInt(f, v)
	case KindReal:
		if x, ok := toFloat(v); ok {
			return x, nil
		}
		if d, ok := v.(decimal.Decimal); ok {
			return d.InexactFloat64(), nil
		}
	case KindMoney:
		d, err := toDecimal(f, v)
		if err != nil {
			return nil, err
		}
		if f.large {
			if f.precision > 0 {
				return d.StringFixed(int32(f.precision)), nil
			}
			return d.String(), nil
		}
		return d.InexactFloat64(), nil
	case KindString, KindText, KindXML, KindRPCFile:
		if s, ok := v.(string); ok {
			return s, nil
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String(), nil
		}
	case KindDate, KindDateTime, KindTime:
		t, ok := v.(time.Time)
		if !ok {
			parsed, err := castFromWire(v, f, castContext{})
			if err != nil {
				return nil, err
			}
			t = parsed.(time.Time)
		}
		switch {
		case f.kind == KindDate:
			return t.Format(wireDate), nil
		case f.kind == KindTime && f.withoutTZ:
			return t.Format(wireTimeNoTZ), nil
		case f.kind == KindTime:
			return t.Format(wireTime), nil
		case f.withoutTZ:
			return t.Format(wireDateTimeNoTZ), nil
		default:
			return t.Format(wireDateTime), nil
		}
	case KindTimeInterval:
		switch d := v.(type) {
		case time.Duration:
			return formatISODuration(d), nil
		case string:
			if _, err := parseISODuration(d); err != nil {
				return nil, castErr(f, v, err)
			}
			return d, nil
		}
	case KindIdentity:
		switch id := v.(type) {
		case Identity:
			if id.Source != "" {
				return []any{id.Value, id.Source}, nil
			}
			return []any{id.Value}, nil
		case []any:
			return id, nil
		default:
			return []any{id}, nil
		}
	case KindEnum:
		e, err := toEnum(f, v)
		if err != nil || e == nil {
			return nil, err
		}
		key := e.(Enum).Key
		if n, err := strconv.Atoi(key); err == nil {
			return int64(n), nil
		}
		return key, nil
	case KindFlags:
		fl, err := toFlags(f, v)
		if err != nil {
			return nil, err
		}
		flags := fl.(Flags)
		res := make([]any, len(f.dict))
		for i, e := range f.dict {
			if b, ok := flags[e.Name]; ok {
				res[i] = b
			}
		}
		return res, nil
	case KindArray:
		items, ok := asAnySlice(v)
		if !ok {
			return nil, castErr(f, v, nil)
		}
		ef := NewField(f.name, f.elemKind)
		res := make([]any, len(items))
		for i, item := range items {
			w, err := castToWire(item, ef)
			if err != nil {
				return nil, err
			}
			res[i] = w
		}
		return res, nil
	case KindBinary:
		switch b := v.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(b), nil
		case string:
			return b, nil
		}
	case KindUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u.String(), nil
		case string:
			if _, err := uuid.Parse(u); err != nil {
				return nil, castErr(f, v, err)
			}
			return u, nil
		}
	case KindRecord:
		if rec, ok := v.(*Record); ok {
			return rec.RawData(), nil
		}
		return v, nil
	case KindRecordSet:
		if rs, ok := v.(*RecordSet); ok {
			return rs.RawData(), nil
		}
		return v, nil
	default:
		return v, nil
	}
	return nil, castErr(f, v, nil)
}

// wireInt accepts integers, whole floats and decimals within int64 range,
// and base-10 strings. Fractions are errors, not truncated.
func wireInt(f Field, v any) (any, error) {
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	switch v := v.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, castErr(f, v, err)
		}
		return n, nil
	case decimal.Decimal:
		if v.IsInteger() && v.Cmp(maxInt64Decimal) <= 0 && v.Cmp(minInt64Decimal) >= 0 {
			return v.IntPart(), nil
		}
	}
	return nil, castErr(f, v, nil)
}

var (
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
)

func toDecimal(f Field, v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, castErr(f, v, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	}
	if n, ok := toInt64(v); ok {
		return decimal.NewFromInt(n), nil
	}
	return decimal.Decimal{}, castErr(f, v, nil)
}

func parseTime(f Field, raw any, layouts []string) (any, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return nil, castErr(f, raw, nil)
	}
	if ms, ok := toFloat(raw); ok {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
	return nil, castErr(f, raw, nil)
}

func toEnum(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var key string
	switch v := v.(type) {
	case Enum:
		key = v.Key
	case string:
		if k, ok := f.dict.KeyOf(v); ok {
			key = k
		} else {
			key = v
		}
	default:
		n, ok := toInt(v)
		if !ok {
			return nil, castErr(f, v, nil)
		}
		key = strconv.Itoa(n)
	}
	if len(f.dict) > 0 && f.dict.NameOf(key) == "" {
		return nil, castErr(f, v, fmt.Errorf("%w: no enum key %q", ErrReference, key))
	}
	return Enum{Key: key, Name: f.dict.NameOf(key), Dictionary: f.dict}, nil
}

func toFlags(f Field, v any) (any, error) {
	switch v := v.(type) {
	case Flags:
		for name := range v {
			if _, ok := f.dict.KeyOf(name); !ok {
				return nil, castErr(f, v, fmt.Errorf("%w: no flag %q", ErrReference, name))
			}
		}
		return v, nil
	case map[string]bool:
		return toFlags(f, Flags(v))
	}
	items, ok := asAnySlice(v)
	if !ok {
		return nil, castErr(f, v, nil)
	}
	res := make(Flags, len(items))
	for i, item := range items {
		if i >= len(f.dict) {
			break
		}
		if b, ok := item.(bool); ok {
			res[f.dict[i].Name] = b
		}
	}
	return res, nil
}

func asAnySlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	res := make([]any, rv.Len())
	for i := range res {
		res[i] = rv.Index(i).Interface()
	}
	return res, true
}

// parseISODuration accepts [-]P[nD][T[nH][nM][n[.f]S]].
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid interval %q", orig)
	}
	s = s[1:]
	var total time.Duration
	inTime := false
	for len(s) > 0 {
		if s[0] == 'T' {
			inTime, s = true, s[1:]
			continue
		}
		i := strings.IndexAny(s, "DHMS")
		if i <= 0 {
			return 0, fmt.Errorf("invalid interval %q", orig)
		}
		x, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", orig, err)
		}
		var unit time.Duration
		switch s[i] {
		case 'D':
			unit = 24 * time.Hour
		case 'H':
			unit = time.Hour
		case 'M':
			if !inTime {
				return 0, fmt.Errorf("invalid interval %q: months are not supported", orig)
			}
			unit = time.Minute
		case 'S':
			unit = time.Second
		}
		total += time.Duration(x * float64(unit))
		s = s[i+1:]
	}
	if neg {
		total = -total
	}
	return total, nil
}

func formatISODuration(d time.Duration) string {
	var buf strings.Builder
	if d < 0 {
		buf.WriteByte('-')
		d = -d
	}
	buf.WriteByte('P')
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		buf.WriteString(strconv.FormatInt(int64(days), 10))
		buf.WriteByte('D')
	}
	buf.WriteByte('T')
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	buf.WriteString(strconv.FormatInt(int64(h), 10))
	buf.WriteByte('H')
	buf.WriteString(strconv.FormatInt(int64(m), 10))
	buf.WriteByte('M')
	buf.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
	buf.WriteByte('S')
	return buf.String()
}

// inferKind guesses the kind of a plain raw value.
func inferKind(v any) FieldKind {
	switch v := v.(type) {
	case nil:
		return KindString
	case bool:
		return KindBoolean
	case string:
		return KindString
	case time.Time:
		return KindDateTime
	case time.Duration:
		return KindTimeInterval
	case decimal.Decimal:
		return KindMoney
	case uuid.UUID:
		return KindUUID
	case []byte:
		return KindBinary
	case *Record:
		return KindRecord
	case *RecordSet:
		return KindRecordSet
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	case float32, float64:
		if _, ok := toInt(v); ok {
			return KindInteger
		}
		return KindReal
	}
	if _, ok := toInt(v); ok {
		return KindInteger
	}
	if _, ok := asAnySlice(v); ok {
		return KindArray
	}
	return KindObject
}
