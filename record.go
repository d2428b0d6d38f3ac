package rset

import (
	"errors"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// RecordOptions configure NewRecord.
type RecordOptions struct {
	// Adapter interprets RawData; nil means a PlainAdapter.
	Adapter Adapter
	RawData any
	// Format declares the record's fields; missing fields are added to the
	// raw data with their defaults.
	Format *Format
	// Declaration is a partial format merged over the inferred one. Ignored
	// when Format is set.
	Declaration *FormatDecl
	Model       *Model
	State       State
	Logger      *slog.Logger
}

type changedField struct {
	raw    any // raw value before the first change
	value  any // logical value before the first change
	had    bool
	byLink bool // changed inside a nested entity
}

// Record is one entity with named fields over adapter-specific raw data.
//
// A record owned by a RecordSet has no raw data of its own: it resolves
// its row in the owner's table on every access, by its current position.
type Record struct {
	adapter Adapter
	view    RecordAdapter
	owner   *RecordSet
	pos     int
	format  *Format
	model   *Model

	state         State
	acceptedState State
	changed       map[string]changedField
	rejecting     bool

	cache      map[string]any
	deps       map[string]map[string]struct{}
	evaluating []string
	nested     map[string]func()

	events observers[PropertyChange]
	logger *slog.Logger
}

func NewRecord(opts RecordOptions) (*Record, error) {
	adapter := opts.Adapter
	if adapter == nil {
		adapter = NewPlainAdapter()
	}
	adapter = adapterWithLogger(adapter, opts.Logger)
	view, err := adapter.ForRecord(opts.RawData, nil)
	if err != nil {
		return nil, err
	}
	r := &Record{
		adapter:       adapter,
		view:          view,
		pos:           -1,
		model:         opts.Model,
		state:         opts.State,
		acceptedState: opts.State,
		logger:        opts.Logger,
	}
	switch {
	case opts.Format != nil:
		r.format = opts.Format.Clone()
	case opts.Declaration != nil:
		base, err := InferFormat(view)
		if err != nil {
			return nil, err
		}
		r.format, err = opts.Declaration.Build(base)
		if err != nil {
			return nil, err
		}
	}
	if r.format != nil {
		for _, f := range r.format.items {
			if !view.Has(f.Name()) {
				if err := view.AddField(f, -1); err != nil {
					return nil, err
				}
			}
		}
	}
	return r, nil
}

// MustRecord is NewRecord that panics on error.
func MustRecord(opts RecordOptions) *Record {
	return must(NewRecord(opts))
}

func (r *Record) log() *slog.Logger { return loggerOr(r.logger) }

func (r *Record) Adapter() Adapter { return r.adapter }

// Owner returns the record set holding the record, or nil.
func (r *Record) Owner() *RecordSet { return r.owner }

func (r *Record) Model() *Model { return r.model }

func (r *Record) raw() RecordAdapter {
	if r.owner != nil {
		return r.owner.rowView(r.pos)
	}
	return r.view
}

// RawData returns the record's data in its adapter's representation.
func (r *Record) RawData() any {
	return r.raw().Data()
}

// Format returns the record's fields. Owned records share the owner's
// format.
func (r *Record) Format() *Format {
	if r.owner != nil {
		return r.owner.Format()
	}
	if r.format == nil {
		f, err := InferFormat(r.view)
		if err != nil {
			r.log().Warn("rset: cannot infer record format", "err", err)
			f = &Format{}
		}
		r.format = f
	}
	return r.format
}

func (r *Record) field(name string) (Field, bool) {
	return r.Format().Field(name)
}

// logical reports whether raw data holds logical values, not wire ones.
func (r *Record) logical() bool {
	return BaseAdapter(r.adapter).Kind() == AdapterEntity
}

func (r *Record) castContext(view RecordAdapter) castContext {
	cc := castContext{adapter: BaseAdapter(r.adapter)}
	if nd, ok := view.(nestedDecoder); ok {
		cc.decode = nd.decodeNested
	}
	return cc
}

// Has reports whether name is a field or a computed property.
func (r *Record) Has(name string) bool {
	if r.raw().Has(name) {
		return true
	}
	if _, ok := r.field(name); ok {
		return true
	}
	_, ok := r.model.property(name)
	return ok
}

// Get returns the field or property value, or nil when there is none.
func (r *Record) Get(name string) any {
	v, err := r.Value(name)
	if err != nil && !errors.Is(err, ErrUnknownField) {
		r.log().Debug("rset: get failed", "field", name, "err", err)
	}
	return v
}

// Value returns the field or property value converted to its logical type.
func (r *Record) Value(name string) (any, error) {
	r.trackRead(name)
	if v, ok := r.cache[name]; ok {
		return v, nil
	}
	if prop, ok := r.model.property(name); ok && prop.Get != nil {
		return r.compute(name, prop)
	}
	v, err := r.rawValue(name)
	if err != nil {
		return nil, err
	}
	if isEntityValue(v) {
		r.store(name, v)
	}
	return v, nil
}

// rawValue reads a field through the adapter and casts it.
func (r *Record) rawValue(name string) (any, error) {
	view := r.raw()
	f, known := r.field(name)
	if !view.Has(name) {
		if prop, ok := r.model.property(name); ok {
			return prop.Default, nil
		}
		if !known {
			return nil, fieldErrf("record", name, ErrUnknownField, "no such field")
		}
		return castFromWire(f.DefaultValue(), f, r.castContext(view))
	}
	raw := view.Get(name)
	if r.logical() {
		return raw, nil
	}
	if !known {
		f = NewField(name, inferKind(raw))
	}
	return castFromWire(raw, f, r.castContext(view))
}

// current is the field's logical value, reusing a materialized nested
// entity.
func (r *Record) current(name string) (any, error) {
	if v, ok := r.cache[name]; ok && isEntityValue(v) {
		return v, nil
	}
	return r.rawValue(name)
}

// ID returns the value of the key field, or nil.
func (r *Record) ID() any {
	key := r.KeyField()
	if key == "" {
		return nil
	}
	return r.Get(key)
}

// KeyField returns the name of the field identifying the record.
func (r *Record) KeyField() string {
	if r.owner != nil && r.owner.idProperty != "" {
		return r.owner.idProperty
	}
	if r.model != nil && r.model.IDProperty != "" {
		return r.model.IDProperty
	}
	return r.adapter.KeyField(r.RawData())
}

// All yields every field of the format with its value.
func (r *Record) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range r.Format().Names() {
			if !yield(name, r.Get(name)) {
				return
			}
		}
	}
}

func (r *Record) Set(name string, value any) error {
	return r.SetMany(map[string]any{name: value})
}

// SetMany assigns several fields and fires one change notification for
// all of them. A field that fails does not stop the others; all failures
// are returned together.
func (r *Record) SetMany(values map[string]any) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs *multierror.Error
	changed := make(map[string]any)
	for _, name := range names {
		ok, err := r.setOne(name, values[name])
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if ok {
			changed[name] = values[name]
		}
	}
	if len(changed) > 0 {
		r.updateState()
		r.notifyChange(changed)
	}
	return errs.ErrorOrNil()
}

func (r *Record) setOne(name string, value any) (bool, error) {
	view := r.raw()
	prop, hasProp := r.model.property(name)
	f, known := r.field(name)
	switch {
	case hasProp && prop.Set != nil:
		v, keep := prop.Set(r, value)
		r.invalidate(name)
		if !keep || !known && !view.Has(name) {
			return true, nil
		}
		value = v
	case hasProp && prop.Get != nil && !known && !view.Has(name):
		return false, fieldErrf("record", name, ErrReadOnly, "computed property has no setter")
	}

	had := view.Has(name)
	if !known {
		if r.owner != nil {
			return false, fieldErrf("record", name, ErrUnknownField, "not in the record set format")
		}
		if had {
			f = NewField(name, inferKind(view.Get(name)))
		} else {
			f = NewField(name, inferKind(value))
		}
	}

	old, err := r.current(name)
	if err != nil && !errors.Is(err, ErrUnknownField) {
		return false, err
	}
	if had && valuesEqual(old, value) {
		r.resync(view, name, value)
		return false, nil
	}

	wire := value
	if !r.logical() {
		wire, err = castToWire(value, f)
		if err != nil {
			return false, err
		}
	}
	var prevRaw any
	if had {
		prevRaw = view.Get(name)
	}
	if err := view.Set(name, wire); err != nil {
		return false, err
	}
	if !known {
		_ = r.Format().Add(f, -1)
	}

	if cf, was := r.changed[name]; !was {
		if r.changed == nil {
			r.changed = make(map[string]changedField)
		}
		r.changed[name] = changedField{raw: prevRaw, value: old, had: had}
	} else if !cf.byLink && valuesEqual(cf.value, value) {
		delete(r.changed, name)
	}

	r.invalidate(name)
	if isEntityValue(value) {
		r.store(name, value)
	}
	return true, nil
}

// resync stores a nested entity's raw data in the row when the row holds
// something else, without treating it as a change.
func (r *Record) resync(view RecordAdapter, name string, value any) {
	if r.logical() {
		return
	}
	data := entityRawData(value)
	if data != nil && !sameRef(view.Get(name), data) {
		if err := view.Set(name, data); err != nil {
			r.log().Debug("rset: resync failed", "field", name, "err", err)
		}
	}
}

func (r *Record) notifyChange(changed map[string]any) {
	r.events.notify(PropertyChange{Record: r, Changed: changed})
	if r.owner != nil {
		r.owner.recordChanged(r)
	}
}

// Subscribe registers fn to receive the record's change notifications.
func (r *Record) Subscribe(fn func(PropertyChange)) (unsubscribe func()) {
	return r.events.Subscribe(fn)
}

// IsChanged reports whether any of the named fields (any field, when none
// are given) differs from its value at the last accept.
func (r *Record) IsChanged(names ...string) bool {
	if len(names) == 0 {
		return len(r.changed) > 0
	}
	for _, name := range names {
		if _, ok := r.changed[name]; ok {
			return true
		}
	}
	return false
}

// ChangedFields returns the names of changed fields, sorted.
func (r *Record) ChangedFields() []string {
	names := slices.Collect(maps.Keys(r.changed))
	sort.Strings(names)
	return names
}

// Clone returns a detached copy with its own raw data. State and change
// tracking are copied.
func (r *Record) Clone() *Record {
	c := &Record{
		adapter:       r.adapter,
		pos:           -1,
		format:        r.Format().Clone(),
		model:         r.model,
		state:         r.state,
		acceptedState: r.acceptedState,
		changed:       maps.Clone(r.changed),
		logger:        r.logger,
	}
	c.view = must(r.adapter.ForRecord(DeepCopy(r.RawData()), nil))
	return c
}

// AddField adds a field to a standalone record, storing its default.
func (r *Record) AddField(f Field, at int) error {
	if r.owner != nil {
		return fieldErrf("record", f.Name(), ErrReadOnly, "record set owns the format")
	}
	format := r.Format()
	if _, exists := format.Field(f.Name()); exists {
		return fieldErrf("record", f.Name(), ErrFieldExists, "cannot add")
	}
	if err := r.view.AddField(f, at); err != nil {
		return err
	}
	if at > format.Count() {
		at = -1
	}
	return format.Add(f, at)
}

func (r *Record) RemoveField(name string) error {
	if r.owner != nil {
		return fieldErrf("record", name, ErrReadOnly, "record set owns the format")
	}
	format := r.Format()
	if err := format.RemoveField(name); err != nil {
		return err
	}
	if r.view.Has(name) {
		if err := r.view.RemoveField(name); err != nil {
			return err
		}
	}
	delete(r.changed, name)
	r.invalidate(name)
	return nil
}

func (r *Record) RemoveFieldAt(i int) error {
	format := r.Format()
	if err := checkPos("record", i, format.Count()); err != nil {
		return err
	}
	return r.RemoveField(format.items[i].Name())
}

// Detach removes the record from its owner, if any.
func (r *Record) Detach() error {
	if r.owner == nil {
		r.state = StateDetached
		return nil
	}
	_, err := r.owner.RemoveAt(r.pos)
	return err
}

// attach makes the record a view of row pos of rs.
func (r *Record) attach(rs *RecordSet, pos int, state State) {
	r.forgetAll()
	r.owner = rs
	r.pos = pos
	r.view = nil
	r.format = nil
	r.state = state
	r.acceptedState = state
}

// detach gives the record back its own raw data before its row leaves
// the owner's table.
func (r *Record) detach() {
	if r.owner == nil {
		return
	}
	data := r.RawData()
	if row, ok := data.(*ColumnarRow); ok {
		data = &ColumnarRow{D: row.D, S: row.S.Clone(), res: row.res}
	}
	format := r.owner.Format().Clone()
	view, err := r.adapter.ForRecord(data, nil)
	if err != nil {
		r.log().Warn("rset: detach copies record data", "err", err)
		view = must(r.adapter.ForRecord(DeepCopy(data), nil))
	}
	r.forgetAll()
	r.view = view
	r.format = format
	r.owner = nil
	r.pos = -1
	r.state = StateDetached
}
