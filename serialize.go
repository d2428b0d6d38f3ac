package rset

import (
	"fmt"
	"math"
	"sort"
)

// Envelope keys and markers.
const (
	serializedKey = "$serialized$"

	markInstance = "inst"
	markLink     = "link"
	markPosInf   = "+inf"
	markNegInf   = "-inf"
	markNaN      = "NaN"
	markUndef    = "undef"

	ModuleRecord    = "rset.Record"
	ModuleRecordSet = "rset.RecordSet"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined stands for a value that is absent rather than null. It
// survives a serialization round trip.
var Undefined any = undefined{}

// Serializer converts record and record set graphs into a JSON-safe tree
// and back. A Record or RecordSet seen twice within one tree is written
// once; later occurrences are links to its id.
type Serializer struct {
	reg *Registry
}

func NewSerializer(reg *Registry) *Serializer {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Serializer{reg: reg}
}

type serializeState struct {
	ids  map[any]int
	next int
}

// Serialize returns the envelope tree of v.
func (s *Serializer) Serialize(v any) (any, error) {
	st := &serializeState{ids: make(map[any]int)}
	return s.serialize(st, v)
}

func (s *Serializer) serialize(st *serializeState, v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case undefined:
		return marker(markUndef), nil
	case float64:
		return serializeFloat(v), nil
	case float32:
		return serializeFloat(float64(v)), nil
	case *Record:
		if v == nil {
			return nil, nil
		}
		return s.instance(st, v, ModuleRecord, func() (map[string]any, error) { return s.recordState(st, v) })
	case *RecordSet:
		if v == nil {
			return nil, nil
		}
		return s.instance(st, v, ModuleRecordSet, func() (map[string]any, error) { return s.recordSetState(st, v) })
	case *ColumnarTable:
		return s.serialize(st, v.Wire())
	case *ColumnarRow:
		return s.serialize(st, v.Wire())
	case *columnarNode:
		return s.serialize(st, v.m)
	case map[string]any:
		res := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			x, err := s.serialize(st, v[k])
			if err != nil {
				return nil, err
			}
			res[k] = x
		}
		return res, nil
	case []map[string]any:
		res := make([]any, len(v))
		for i, x := range v {
			y, err := s.serialize(st, x)
			if err != nil {
				return nil, err
			}
			res[i] = y
		}
		return res, nil
	case []any:
		res := make([]any, len(v))
		for i, x := range v {
			y, err := s.serialize(st, x)
			if err != nil {
				return nil, err
			}
			res[i] = y
		}
		return res, nil
	default:
		return v, nil
	}
}

func (s *Serializer) instance(st *serializeState, ptr any, module string, state func() (map[string]any, error)) (any, error) {
	if id, ok := st.ids[ptr]; ok {
		return map[string]any{serializedKey: markLink, "id": id}, nil
	}
	st.next++
	id := st.next
	st.ids[ptr] = id
	body, err := state()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		serializedKey: markInstance,
		"module":      module,
		"id":          id,
		"state":       body,
	}, nil
}

func (s *Serializer) recordState(st *serializeState, rec *Record) (map[string]any, error) {
	raw, err := s.serialize(st, rec.RawData())
	if err != nil {
		return nil, err
	}
	res := map[string]any{
		"adapter": BaseAdapter(rec.adapter).Kind(),
		"rawData": raw,
		"state":   rec.state.String(),
	}
	if changed := rec.ChangedFields(); len(changed) > 0 {
		names := make([]any, len(changed))
		for i, name := range changed {
			names[i] = name
		}
		res["changed"] = names
	}
	if rec.model != nil {
		res["model"] = rec.model.Name
	}
	if kind := BaseAdapter(rec.adapter).Kind(); kind != AdapterColumnar && kind != AdapterEntity {
		if res["format"], err = s.formatState(st, rec.Format()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *Serializer) recordSetState(st *serializeState, rs *RecordSet) (map[string]any, error) {
	raw, err := s.serialize(st, rs.RawData())
	if err != nil {
		return nil, err
	}
	res := map[string]any{
		"adapter":    BaseAdapter(rs.adapter).Kind(),
		"rawData":    raw,
		"idProperty": rs.idProperty,
	}
	if rs.meta != nil {
		meta, err := s.serialize(st, rs.meta)
		if err != nil {
			return nil, err
		}
		res["metaData"] = meta
	}
	if rs.model != nil {
		res["model"] = rs.model.Name
	}
	if rs.declared && BaseAdapter(rs.adapter).Kind() != AdapterEntity {
		if res["format"], err = s.formatState(st, rs.format); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// formatState writes fields as columnar spec entries, plus "d" for a
// declared default and "null" for a non-nullable field.
func (s *Serializer) formatState(st *serializeState, f *Format) ([]any, error) {
	res := make([]any, 0, f.Count())
	for _, fld := range f.items {
		spec := SpecOf(fld).wire()
		if fld.hasDef {
			def, err := s.serialize(st, fld.def)
			if err != nil {
				return nil, err
			}
			spec["d"] = def
		}
		if !fld.nullable {
			spec["null"] = false
		}
		res = append(res, spec)
	}
	return res, nil
}

func (s *Serializer) restoreFormat(st *deserializeState, v any) (*Format, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, dataErrf("serializer", v, nil, "format must be an array")
	}
	f := &Format{}
	for _, item := range items {
		spec, err := decodeFieldSpec(item)
		if err != nil {
			return nil, err
		}
		fld, err := spec.Field()
		if err != nil {
			return nil, err
		}
		m, _ := asStringMap(item)
		if d, ok := m["d"]; ok {
			def, err := s.deserialize(st, d)
			if err != nil {
				return nil, err
			}
			Default(def)(&fld)
		}
		if b, ok := m["null"].(bool); ok {
			Nullable(b)(&fld)
		}
		if err := f.Add(fld, -1); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func marker(kind string) map[string]any {
	return map[string]any{serializedKey: kind}
}

func serializeFloat(f float64) any {
	switch {
	case math.IsInf(f, 1):
		return marker(markPosInf)
	case math.IsInf(f, -1):
		return marker(markNegInf)
	case math.IsNaN(f):
		return marker(markNaN)
	}
	return f
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type deserializeState struct {
	insts map[int]any
}

// Deserialize rebuilds the values of an envelope tree. Models and adapters
// named in the tree are resolved through the registry.
func (s *Serializer) Deserialize(v any) (any, error) {
	st := &deserializeState{insts: make(map[int]any)}
	return s.deserialize(st, v)
}

func (s *Serializer) deserialize(st *deserializeState, v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if mark, ok := v[serializedKey].(string); ok {
			return s.deserializeMarked(st, mark, v)
		}
		res := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			x, err := s.deserialize(st, v[k])
			if err != nil {
				return nil, err
			}
			res[k] = x
		}
		return res, nil
	case []any:
		res := make([]any, len(v))
		for i, x := range v {
			y, err := s.deserialize(st, x)
			if err != nil {
				return nil, err
			}
			res[i] = y
		}
		return res, nil
	default:
		return v, nil
	}
}

func (s *Serializer) deserializeMarked(st *deserializeState, mark string, m map[string]any) (any, error) {
	switch mark {
	case markPosInf:
		return math.Inf(1), nil
	case markNegInf:
		return math.Inf(-1), nil
	case markNaN:
		return math.NaN(), nil
	case markUndef:
		return Undefined, nil
	case markLink:
		id, _ := toInt(m["id"])
		inst, ok := st.insts[id]
		if !ok {
			return nil, fmt.Errorf("%w: link to unknown instance %d", ErrReference, id)
		}
		return inst, nil
	case markInstance:
		id, _ := toInt(m["id"])
		module, _ := m["module"].(string)
		state, _ := m["state"].(map[string]any)
		if state == nil {
			return nil, dataErrf("", m, ErrShape, "instance %d has no state", id)
		}
		inst, err := s.instantiate(st, module, state)
		if err != nil {
			return nil, err
		}
		st.insts[id] = inst
		return inst, nil
	default:
		return nil, fmt.Errorf("%w: serialization marker %q", ErrUnknownModule, mark)
	}
}

func (s *Serializer) instantiate(st *deserializeState, module string, state map[string]any) (any, error) {
	adapterName, _ := state["adapter"].(string)
	adapter, err := s.reg.Adapter(adapterName)
	if err != nil {
		return nil, err
	}
	var model *Model
	if name, _ := state["model"].(string); name != "" {
		if model = s.reg.Model(name); model == nil {
			return nil, fmt.Errorf("%w: model %q", ErrUnknownModule, name)
		}
	}
	raw, err := s.deserialize(st, state["rawData"])
	if err != nil {
		return nil, err
	}
	var format *Format
	if v, ok := state["format"]; ok {
		if format, err = s.restoreFormat(st, v); err != nil {
			return nil, err
		}
	}

	switch module {
	case ModuleRecord:
		rec, err := NewRecord(RecordOptions{Adapter: adapter, RawData: raw, Model: model, Format: format})
		if err != nil {
			return nil, err
		}
		if name, _ := state["state"].(string); name != "" {
			if rec.state, err = ParseState(name); err != nil {
				return nil, err
			}
			rec.acceptedState = rec.state
		}
		if names, _ := state["changed"].([]any); len(names) > 0 {
			// Original values are not carried, so the current ones stand in.
			view := rec.raw()
			rec.changed = make(map[string]changedField, len(names))
			for _, n := range names {
				if name, ok := n.(string); ok && view.Has(name) {
					raw := view.Get(name)
					rec.changed[name] = changedField{raw: raw, value: raw, had: true}
				}
			}
		}
		return rec, nil
	case ModuleRecordSet:
		opts := RecordSetOptions{Adapter: adapter, RawData: raw, Model: model, Format: format}
		opts.IDProperty, _ = state["idProperty"].(string)
		if meta, ok := state["metaData"]; ok {
			m, err := s.deserialize(st, meta)
			if err != nil {
				return nil, err
			}
			opts.MetaData, _ = m.(map[string]any)
		}
		return NewRecordSet(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
}
