package rset

import (
	"fmt"
	"reflect"
	"strings"
)

// Field describes one column: its name, kind, default and kind-specific
// metadata. Fields are immutable values; use With* methods to derive.
type Field struct {
	name      string
	kind      FieldKind
	def       any
	hasDef    bool
	nullable  bool
	precision int
	large     bool
	dict      Dictionary
	elemKind  FieldKind
	withoutTZ bool
}

// DictEntry is one item of an enum or flags dictionary.
type DictEntry struct {
	Key  string
	Name string
}

// Dictionary maps enum/flags keys to names, in declaration order.
type Dictionary []DictEntry

// NameOf returns the name for key, or "" if absent.
func (d Dictionary) NameOf(key string) string {
	for _, e := range d {
		if e.Key == key {
			return e.Name
		}
	}
	return ""
}

// KeyOf returns the key for name.
func (d Dictionary) KeyOf(name string) (string, bool) {
	for _, e := range d {
		if e.Name == name {
			return e.Key, true
		}
	}
	return "", false
}

func (d Dictionary) equal(o Dictionary) bool {
	if len(d) != len(o) {
		return false
	}
	for i := range d {
		if d[i] != o[i] {
			return false
		}
	}
	return true
}

// DictionaryOf builds a dictionary whose keys are positions of names.
func DictionaryOf(names ...string) Dictionary {
	d := make(Dictionary, len(names))
	for i, n := range names {
		d[i] = DictEntry{fmt.Sprint(i), n}
	}
	return d
}

type FieldOption func(f *Field)

func Default(v any) FieldOption {
	return func(f *Field) { f.def, f.hasDef = v, true }
}
func Nullable(v bool) FieldOption {
	return func(f *Field) { f.nullable = v }
}
func Precision(n int) FieldOption {
	return func(f *Field) { f.precision = n }
}
func Large(v bool) FieldOption {
	return func(f *Field) { f.large = v }
}
func WithDictionary(d Dictionary) FieldOption {
	return func(f *Field) { f.dict = append(Dictionary(nil), d...) }
}
func ElementKind(k FieldKind) FieldOption {
	return func(f *Field) { f.elemKind = k }
}
func WithoutTimeZone(v bool) FieldOption {
	return func(f *Field) { f.withoutTZ = v }
}

func NewField(name string, kind FieldKind, opts ...FieldOption) Field {
	if name == "" {
		panic("field name missing")
	}
	if kind <= KindUnknown || kind >= kindCount {
		panic(fmt.Sprintf("field %s: invalid kind %v", name, kind))
	}
	f := Field{name: name, kind: kind, nullable: true}
	for _, opt := range opts {
		opt(&f)
	}
	if f.kind == KindArray && f.elemKind == KindUnknown {
		f.elemKind = KindString
	}
	return f
}

func (f Field) Name() string               { return f.name }
func (f Field) Kind() FieldKind            { return f.kind }
func (f Field) IsNullable() bool           { return f.nullable }
func (f Field) Precision() int             { return f.precision }
func (f Field) IsLarge() bool              { return f.large }
func (f Field) Dictionary() Dictionary     { return f.dict }
func (f Field) ElementKind() FieldKind     { return f.elemKind }
func (f Field) IsWithoutTimeZone() bool    { return f.withoutTZ }
func (f Field) IsZero() bool               { return f.name == "" }
func (f Field) HasDeclaredDefault() bool   { return f.hasDef }
func (f Field) WithName(name string) Field { f.name = name; return f }

// DefaultValue returns the declared default, or the kind's zero wire value.
func (f Field) DefaultValue() any {
	if f.hasDef {
		return f.def
	}
	return f.kind.zeroWire()
}

// IsEqual compares kind, name, declared default and nullability, plus the
// metadata that defines the kind (money precision, dictionaries, array
// element kind, time zone presence).
func (f Field) IsEqual(o Field) bool {
	if f.kind != o.kind || f.name != o.name || f.nullable != o.nullable {
		return false
	}
	if !reflect.DeepEqual(f.DefaultValue(), o.DefaultValue()) {
		return false
	}
	switch f.kind {
	case KindMoney:
		return f.precision == o.precision && f.large == o.large
	case KindEnum, KindFlags:
		return f.dict.equal(o.dict)
	case KindArray:
		return f.elemKind == o.elemKind
	case KindDateTime:
		return f.withoutTZ == o.withoutTZ
	}
	return true
}

func (f Field) String() string {
	var buf strings.Builder
	buf.WriteString(f.name)
	buf.WriteByte(':')
	buf.WriteString(f.kind.String())
	if f.kind == KindArray {
		buf.WriteByte('<')
		buf.WriteString(f.elemKind.String())
		buf.WriteByte('>')
	}
	return buf.String()
}

// meta returns kind-specific metadata keyed the way columnar specs key it.
func (f Field) meta(dst map[string]any) {
	switch f.kind {
	case KindMoney:
		if f.precision != 0 {
			dst["p"] = f.precision
		}
		if f.large {
			dst["l"] = true
		}
	case KindReal:
		if f.precision != 0 {
			dst["p"] = f.precision
		}
	case KindEnum, KindFlags:
		if len(f.dict) > 0 {
			s := make(map[string]any, len(f.dict))
			for _, e := range f.dict {
				s[e.Key] = e.Name
			}
			dst["s"] = s
		}
	case KindArray:
		dst["t"] = f.elemKind.Token()
	case KindDateTime:
		if f.withoutTZ {
			dst["tz"] = false
		}
	}
}

// UniversalField is a flat projection of a field used by SharedFormat
// queries. Views return a pointer to one scratch instance which is
// overwritten by the next call; copy it (or call Field) before keeping it.
type UniversalField struct {
	Name     string
	Kind     FieldKind
	Default  any
	Nullable bool
	Meta     map[string]any
}

func (uf *UniversalField) fill(f Field) *UniversalField {
	uf.Name = f.name
	uf.Kind = f.kind
	uf.Default = f.DefaultValue()
	uf.Nullable = f.nullable
	if uf.Meta == nil {
		uf.Meta = make(map[string]any)
	} else {
		clear(uf.Meta)
	}
	f.meta(uf.Meta)
	return uf
}

// Copy returns an owned copy of the projection.
func (uf *UniversalField) Copy() UniversalField {
	c := *uf
	c.Meta = make(map[string]any, len(uf.Meta))
	for k, v := range uf.Meta {
		c.Meta[k] = v
	}
	return c
}
