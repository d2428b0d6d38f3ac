package rset

import (
	"log/slog"
	"strconv"
	"strings"
)

const (
	AdapterPlain    = "plain"
	AdapterColumnar = "columnar"
	AdapterEntity   = "entity"
)

// Adapter translates field access into operations on one kind of raw data.
// Adapters hold no per-payload state; views returned by ForTable and
// ForRecord do.
type Adapter interface {
	Kind() string
	ForTable(data any) (TableAdapter, error)
	// ForRecord returns a view of one record. tableData, when given, is the
	// table the record belongs to (a new empty record then shares its format).
	ForRecord(data any, tableData any) (RecordAdapter, error)
	// KeyField returns the name of the primary key field, or "".
	KeyField(data any) string
	GetProperty(data any, path string) any
	SetProperty(data any, path string, value any) error
}

// fieldsView is the field-management part shared by table and record views.
type fieldsView interface {
	Fields() []string
	Format(name string) (Field, error)
	// SharedFormat returns a projection that is overwritten on the next call.
	SharedFormat(name string) (*UniversalField, error)
	AddField(f Field, at int) error
	RemoveField(name string) error
	RemoveFieldAt(at int) error
}

// TableAdapter is a view over raw table data.
type TableAdapter interface {
	fieldsView
	Count() int
	At(i int) (any, error)
	// RecordAt returns a record view bound to row i of this table; writes
	// through it go through the table.
	RecordAt(i int) (RecordAdapter, error)
	// Add inserts a raw row at the position; negative at appends.
	Add(row any, at int) error
	Remove(at int) error
	Replace(row any, at int) error
	Move(from, to int) error
	// Merge copies fields of the donor row into the acceptor row (keeping
	// the acceptor's idField) and removes the donor.
	Merge(acceptor, donor int, idField string) error
	// Copy duplicates row i right after it and returns the copy.
	Copy(i int) (any, error)
	Clear() error
	Data() any
}

// RecordAdapter is a view over raw record data.
type RecordAdapter interface {
	fieldsView
	Has(name string) bool
	Get(name string) any
	Set(name string, value any) error
	Clear() error
	Data() any
}

// Cloner is implemented by views that know how to copy their raw data.
type Cloner interface {
	CloneView() (any, error)
}

// unwrapper is implemented by decorators.
type unwrapper interface {
	Unwrap() Adapter
}

// nestedDecoder is implemented by views whose raw cells may hold nested
// payloads that must be decoded before use.
type nestedDecoder interface {
	decodeNested(raw any) any
}

// metaDataSource is implemented by table views carrying side-channel data.
type metaDataSource interface {
	MetaData() map[string]any
}

// loggingAdapter is implemented by adapters that log while decoding or
// copying data. withLogger returns a copy of the adapter logging to l.
type loggingAdapter interface {
	withLogger(l *slog.Logger) Adapter
}

// adapterWithLogger returns a copy of a logging to l, if a logs at all.
func adapterWithLogger(a Adapter, l *slog.Logger) Adapter {
	if la, ok := a.(loggingAdapter); ok && l != nil {
		return la.withLogger(l)
	}
	return a
}

// BaseAdapter unwraps decorators down to the adapter doing the actual work.
func BaseAdapter(a Adapter) Adapter {
	for {
		u, ok := a.(unwrapper)
		if !ok {
			return a
		}
		a = u.Unwrap()
	}
}

// Compatible reports whether data produced by a can be handled by b.
func Compatible(a, b Adapter) bool {
	if a == nil || b == nil {
		return a == b
	}
	return BaseAdapter(a).Kind() == BaseAdapter(b).Kind()
}

// DeepCopy copies raw data deeply enough that mutating the copy never
// mutates the original.
func DeepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(v))
		for k, x := range v {
			c[k] = DeepCopy(x)
		}
		return c
	case []any:
		c := make([]any, len(v))
		for i, x := range v {
			c[i] = DeepCopy(x)
		}
		return c
	case []map[string]any:
		c := make([]map[string]any, len(v))
		for i, x := range v {
			c[i] = DeepCopy(x).(map[string]any)
		}
		return c
	case *ColumnarTable:
		return v.Clone()
	case *ColumnarRow:
		return v.Clone()
	case *Record:
		return v.Clone()
	case *RecordSet:
		return v.Clone()
	case []byte:
		return append([]byte(nil), v...)
	default:
		return v
	}
}

// propertyOf reads one path step from a value of any supported shape.
func propertyOf(v any, name string) (any, bool) {
	switch v := v.(type) {
	case map[string]any:
		x, ok := v[name]
		return x, ok
	case map[any]any:
		x, ok := v[name]
		return x, ok
	case []any:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case []map[string]any:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	case *ColumnarRow:
		if i := v.S.indexOfSlow(name); i >= 0 && i < len(v.D) {
			return v.D[i], true
		}
		return nil, false
	case *ColumnarTable:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(v.D) {
			return nil, false
		}
		return &ColumnarRow{D: v.D[i], S: v.S}, true
	case *Record:
		if !v.Has(name) {
			return nil, false
		}
		return v.Get(name), true
	case *RecordSet:
		i, err := strconv.Atoi(name)
		if err != nil {
			return nil, false
		}
		rec, err := v.At(i)
		return rec, err == nil
	}
	return nil, false
}

func getPath(data any, path string) any {
	cur := data
	for rest, more := path, true; more; {
		var step string
		step, rest, more = splitByte(rest, '.')
		next, ok := propertyOf(cur, step)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func setPath(adapter string, data any, path string, value any) error {
	parent := data
	steps := strings.Split(path, ".")
	for _, step := range steps[:len(steps)-1] {
		next, ok := propertyOf(parent, step)
		if !ok {
			return fieldErrf(adapter, path, ErrUnknownField, "no %q", step)
		}
		parent = next
	}
	last := steps[len(steps)-1]
	switch p := parent.(type) {
	case map[string]any:
		p[last] = value
		return nil
	case []any:
		i, err := strconv.Atoi(last)
		if err != nil || i < 0 || i >= len(p) {
			return fieldErrf(adapter, path, ErrOutOfBounds, "bad position %q", last)
		}
		p[i] = value
		return nil
	case *ColumnarRow:
		i := p.S.indexOfSlow(last)
		if i < 0 {
			return fieldErrf(adapter, path, ErrUnknownField, "no %q", last)
		}
		p.D[i] = value
		return nil
	case *Record:
		return p.Set(last, value)
	}
	return dataErrf(adapter, parent, nil, "cannot set %q", path)
}
