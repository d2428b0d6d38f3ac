package rset

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// FieldSpec is one entry of a columnar spec array: {n: name, t: type}
// where type is a token or {n: token, ...metadata}.
type FieldSpec struct {
	Name  string
	Type  string
	Extra map[string]any
}

// FieldSpecs is a spec array shared by reference between a columnar table
// and all of its rows. Its identity (pointer) keys lookup caches; version
// changes on every structural mutation.
type FieldSpecs struct {
	list    []FieldSpec
	version uint64
}

func NewFieldSpecs(specs ...FieldSpec) *FieldSpecs {
	return &FieldSpecs{list: slices.Clone(specs)}
}

// FieldSpecsOf converts a format to a spec array.
func FieldSpecsOf(f *Format) *FieldSpecs {
	s := &FieldSpecs{}
	if f != nil {
		for _, fld := range f.items {
			s.list = append(s.list, SpecOf(fld))
		}
	}
	return s
}

func (s *FieldSpecs) Len() int             { return len(s.list) }
func (s *FieldSpecs) At(i int) FieldSpec   { return s.list[i] }
func (s *FieldSpecs) List() []FieldSpec    { return slices.Clone(s.list) }
func (s *FieldSpecs) Version() uint64      { return s.version }
func (s *FieldSpecs) Clone() *FieldSpecs   { return &FieldSpecs{list: slices.Clone(s.list)} }
func (s *FieldSpecs) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.list)
}

func (s *FieldSpecs) indexOfSlow(name string) int {
	for i, spec := range s.list {
		if spec.Name == name {
			return i
		}
	}
	return -1
}

func (s *FieldSpecs) insert(spec FieldSpec, at int) {
	s.list = insertAt(s.list, at, spec)
	s.version++
}

func (s *FieldSpecs) remove(i int) {
	s.list = removeAt(s.list, i)
	s.version++
}

// SpecOf encodes a field as a spec entry.
func SpecOf(f Field) FieldSpec {
	spec := FieldSpec{Name: f.name, Type: f.kind.Token()}
	extra := make(map[string]any)
	f.meta(extra)
	if len(extra) > 0 {
		spec.Extra = extra
	}
	return spec
}

// Field decodes the spec entry.
func (spec FieldSpec) Field() (Field, error) {
	kind, ok := KindByToken(spec.Type)
	if !ok {
		return Field{}, fieldErrf("spec", spec.Name, ErrFieldType, "unknown type token %q", spec.Type)
	}
	var opts []FieldOption
	for k, v := range spec.Extra {
		switch k {
		case "p":
			if n, ok := toInt(v); ok {
				opts = append(opts, Precision(n))
			}
		case "l":
			if b, ok := v.(bool); ok {
				opts = append(opts, Large(b))
			}
		case "s":
			d, err := decodeDictionary(v)
			if err != nil {
				return Field{}, fieldErrf("spec", spec.Name, err, "bad dictionary")
			}
			opts = append(opts, WithDictionary(d))
		case "t":
			tok, _ := v.(string)
			ek, ok := KindByToken(tok)
			if !ok {
				return Field{}, fieldErrf("spec", spec.Name, ErrFieldType, "unknown element token %q", tok)
			}
			opts = append(opts, ElementKind(ek))
		case "tz":
			if b, ok := v.(bool); ok {
				opts = append(opts, WithoutTimeZone(!b))
			}
		}
	}
	return NewField(spec.Name, kind, opts...), nil
}

func decodeDictionary(v any) (Dictionary, error) {
	switch v := v.(type) {
	case []any:
		d := make(Dictionary, 0, len(v))
		for i, n := range v {
			d = append(d, DictEntry{strconv.Itoa(i), fmt.Sprint(n)})
		}
		return d, nil
	case []string:
		return DictionaryOf(v...), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareDictKeys)
		d := make(Dictionary, 0, len(v))
		for _, k := range keys {
			d = append(d, DictEntry{k, fmt.Sprint(v[k])})
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: dictionary is %T", ErrShape, v)
	}
}

// compareDictKeys orders numeric keys numerically and the rest lexically.
func compareDictKeys(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return an - bn
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (spec FieldSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(spec.wire())
}

func (spec FieldSpec) wire() map[string]any {
	if len(spec.Extra) == 0 {
		return map[string]any{"n": spec.Name, "t": spec.Type}
	}
	t := make(map[string]any, len(spec.Extra)+1)
	for k, v := range spec.Extra {
		t[k] = v
	}
	t["n"] = spec.Type
	return map[string]any{"n": spec.Name, "t": t}
}

func (spec *FieldSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, err := decodeFieldSpec(raw)
	if err != nil {
		return err
	}
	*spec = s
	return nil
}

func decodeFieldSpec(v any) (FieldSpec, error) {
	m, ok := asStringMap(v)
	if !ok {
		return FieldSpec{}, dataErrf("columnar", v, nil, "field spec must be an object")
	}
	name, _ := m["n"].(string)
	if name == "" {
		return FieldSpec{}, dataErrf("columnar", v, nil, "field spec without name")
	}
	spec := FieldSpec{Name: name}
	switch t := m["t"].(type) {
	case string:
		spec.Type = t
	default:
		tm, ok := asStringMap(t)
		if !ok {
			return FieldSpec{}, dataErrf("columnar", v, nil, "field %s: bad type", name)
		}
		spec.Type, _ = tm["n"].(string)
		for k, x := range tm {
			if k == "n" {
				continue
			}
			if spec.Extra == nil {
				spec.Extra = make(map[string]any)
			}
			spec.Extra[k] = x
		}
	}
	return spec, nil
}

func decodeFieldSpecs(v any) (*FieldSpecs, error) {
	switch v := v.(type) {
	case *FieldSpecs:
		return v, nil
	case []FieldSpec:
		return NewFieldSpecs(v...), nil
	case []any:
		s := &FieldSpecs{list: make([]FieldSpec, 0, len(v))}
		for _, item := range v {
			spec, err := decodeFieldSpec(item)
			if err != nil {
				return nil, err
			}
			s.list = append(s.list, spec)
		}
		return s, nil
	default:
		return nil, dataErrf("columnar", v, nil, "spec array expected")
	}
}

// asStringMap accepts JSON-decoded objects and msgpack-decoded maps.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		res := make(map[string]any, len(m))
		for k, x := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			res[ks] = x
		}
		return res, true
	default:
		return nil, false
	}
}
