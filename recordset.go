package rset

import (
	"fmt"
	"iter"
	"log/slog"
	"maps"
)

// RecordSetOptions configure NewRecordSet.
type RecordSetOptions struct {
	// Adapter interprets RawData; nil means AdapterName resolved through
	// Registry, or a PlainAdapter.
	Adapter     Adapter
	AdapterName string
	RawData     any
	IDProperty  string
	// Model is given to every record of the set. A model makes value
	// indices read through materialized records.
	Model     *Model
	ModelName string
	// Format declares the fields; Declaration is merged over the format
	// inferred from RawData instead.
	Format      *Format
	Declaration *FormatDecl
	MetaData    map[string]any
	Registry    *Registry
	Logger      *slog.Logger
	// ResetThreshold overrides DefaultResetThreshold for silent mode.
	ResetThreshold float64
}

// RecordSet is an ordered collection of records sharing one adapter and
// one format. Records are materialized on first access; until then a
// position exists only as a raw row of the table.
type RecordSet struct {
	adapter    Adapter
	table      TableAdapter
	idProperty string
	model      *Model
	format     *Format
	declared   bool
	slots      []*Record
	indexer    *Indexer
	events     collectionEvents[*Record]
	meta       map[string]any
	logger     *slog.Logger
}

func NewRecordSet(opts RecordSetOptions) (*RecordSet, error) {
	adapter := opts.Adapter
	if adapter == nil && opts.AdapterName != "" {
		if opts.Registry == nil {
			return nil, fmt.Errorf("%w: adapter %q without a registry", ErrUnknownModule, opts.AdapterName)
		}
		a, err := opts.Registry.Adapter(opts.AdapterName)
		if err != nil {
			return nil, err
		}
		adapter = a
	}
	if adapter == nil {
		adapter = NewPlainAdapter()
	}
	adapter = adapterWithLogger(adapter, opts.Logger)
	model := opts.Model
	if model == nil && opts.ModelName != "" {
		if opts.Registry != nil {
			model = opts.Registry.Model(opts.ModelName)
		}
		if model == nil {
			return nil, fmt.Errorf("%w: model %q", ErrUnknownModule, opts.ModelName)
		}
	}

	table, err := adapter.ForTable(opts.RawData)
	if err != nil {
		return nil, err
	}
	rs := &RecordSet{
		adapter:    adapter,
		table:      table,
		idProperty: opts.IDProperty,
		model:      model,
		slots:      make([]*Record, table.Count()),
		meta:       opts.MetaData,
		logger:     opts.Logger,
	}
	rs.events.threshold = opts.ResetThreshold
	rs.indexer = NewIndexer(rs.Count, rs.indexValue)
	rs.indexer.logger = opts.Logger
	if rs.meta == nil {
		if md, ok := table.(metaDataSource); ok {
			rs.meta = md.MetaData()
		}
	}

	switch {
	case opts.Format != nil:
		err = rs.declare(opts.Format)
	case opts.Declaration != nil:
		var base, f *Format
		base, err = InferFormat(table)
		if err == nil {
			f, err = opts.Declaration.Build(base)
		}
		if err == nil {
			err = rs.declare(f)
		}
	}
	if err != nil {
		return nil, err
	}

	if rs.idProperty == "" {
		if model != nil && model.IDProperty != "" {
			rs.idProperty = model.IDProperty
		} else {
			rs.idProperty = adapter.KeyField(table.Data())
		}
	}
	return rs, nil
}

// MustRecordSet is NewRecordSet that panics on error.
func MustRecordSet(opts RecordSetOptions) *RecordSet {
	return must(NewRecordSet(opts))
}

// declare fixes the format and adds the fields the raw data lacks.
func (rs *RecordSet) declare(f *Format) error {
	have := make(map[string]bool)
	for _, name := range rs.table.Fields() {
		have[name] = true
	}
	for _, fld := range f.items {
		if !have[fld.Name()] {
			if err := rs.table.AddField(fld, -1); err != nil {
				return err
			}
		}
	}
	rs.format = f.Clone()
	rs.declared = true
	return nil
}

func (rs *RecordSet) log() *slog.Logger { return loggerOr(rs.logger) }

func (rs *RecordSet) Adapter() Adapter   { return rs.adapter }
func (rs *RecordSet) Model() *Model      { return rs.model }
func (rs *RecordSet) IDProperty() string { return rs.idProperty }
func (rs *RecordSet) Count() int         { return rs.table.Count() }

// RawData returns the table data in the adapter's representation.
func (rs *RecordSet) RawData() any { return rs.table.Data() }

func (rs *RecordSet) SetIDProperty(name string) {
	rs.idProperty = name
}

// Format returns the fields shared by all records. Until the first record
// arrives an empty set without a declared format has an empty format.
func (rs *RecordSet) Format() *Format {
	if rs.format != nil {
		return rs.format
	}
	if len(rs.table.Fields()) == 0 {
		return &Format{}
	}
	f, err := InferFormat(rs.table)
	if err != nil {
		rs.log().Warn("rset: cannot infer record set format", "err", err)
		return &Format{}
	}
	rs.format = f
	return f
}

// ensureFormat returns the format, fixing an empty one.
func (rs *RecordSet) ensureFormat() *Format {
	f := rs.Format()
	rs.format = f
	return f
}

// MetaData returns side-channel data delivered with the table. Nested
// record and table payloads are returned as *Record and *RecordSet.
func (rs *RecordSet) MetaData() map[string]any {
	if rs.meta == nil {
		return nil
	}
	for k, v := range rs.meta {
		rs.meta[k] = rs.metaValue(k, v)
	}
	return maps.Clone(rs.meta)
}

func (rs *RecordSet) metaValue(key string, v any) any {
	var node any
	switch x := v.(type) {
	case *columnarNode:
		node = x
	case map[string]any:
		if !isColumnarNode(x) {
			return v
		}
		node = x
	default:
		return v
	}
	base := BaseAdapter(rs.adapter)
	if key == "p" {
		if meta, err := NewRecordSet(RecordSetOptions{Adapter: base, RawData: node, Logger: rs.logger}); err == nil {
			return meta
		}
		return v
	}
	if rec, err := NewRecord(RecordOptions{Adapter: base, RawData: node, Logger: rs.logger}); err == nil {
		return rec
	}
	return v
}

func (rs *RecordSet) rowView(pos int) RecordAdapter {
	return must(rs.table.RecordAt(pos))
}

// At returns the record at position i, materializing it on first access.
func (rs *RecordSet) At(i int) (*Record, error) {
	if err := checkPos("recordset", i, len(rs.slots)); err != nil {
		return nil, err
	}
	rec := rs.slots[i]
	if rec == nil {
		rec = &Record{
			adapter:       rs.adapter,
			owner:         rs,
			pos:           i,
			model:         rs.model,
			state:         StateUnchanged,
			acceptedState: StateUnchanged,
			logger:        rs.logger,
		}
		rs.slots[i] = rec
	}
	return rec, nil
}

// IndexOf returns the position of rec, or -1 if it is not in the set.
func (rs *RecordSet) IndexOf(rec *Record) int {
	if rec == nil || rec.owner != rs {
		return -1
	}
	return rec.pos
}

// All yields every record with its position.
func (rs *RecordSet) All() iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		for i := 0; i < rs.Count(); i++ {
			if !yield(i, must(rs.At(i))) {
				return
			}
		}
	}
}

// Each calls fn for every record until fn returns false.
func (rs *RecordSet) Each(fn func(i int, rec *Record) bool) {
	for i, rec := range rs.All() {
		if !fn(i, rec) {
			return
		}
	}
}

func (rs *RecordSet) Records() []*Record {
	return rs.slice(0, rs.Count())
}

func (rs *RecordSet) slice(start, count int) []*Record {
	res := make([]*Record, count)
	for i := range res {
		res[i] = must(rs.At(start + i))
	}
	return res
}

func (rs *RecordSet) materialized() []*Record {
	var res []*Record
	for _, rec := range rs.slots {
		if rec != nil {
			res = append(res, rec)
		}
	}
	return res
}

func (rs *RecordSet) renumber(from int) {
	for i := from; i < len(rs.slots); i++ {
		if rec := rs.slots[i]; rec != nil {
			rec.pos = i
		}
	}
}

// indexValue reads a value for the indexer. Without a model, rows are read
// through the adapter and cast, so indexing does not materialize records.
func (rs *RecordSet) indexValue(i int, prop string) any {
	if rs.model == nil {
		if rec := rs.slots[i]; rec != nil {
			return rec.Get(prop)
		}
		if f, ok := rs.Format().Field(prop); ok && !f.Kind().IsEntity() {
			view := rs.rowView(i)
			if !view.Has(prop) {
				return nil
			}
			raw := view.Get(prop)
			if BaseAdapter(rs.adapter).Kind() == AdapterEntity {
				return raw
			}
			if v, err := castFromWire(raw, f, castContext{}); err == nil {
				return v
			}
			return raw
		}
	}
	return must(rs.At(i)).Get(prop)
}

func (rs *RecordSet) IndexByValue(prop string, value any) int {
	return rs.indexer.IndexByValue(prop, value)
}

func (rs *RecordSet) IndicesByValue(prop string, value any) []int {
	return rs.indexer.IndicesByValue(prop, value)
}

// RecordByID returns the record whose ID property equals id, or nil.
func (rs *RecordSet) RecordByID(id any) *Record {
	if rs.idProperty == "" {
		return nil
	}
	i := rs.indexer.IndexByValue(rs.idProperty, id)
	if i < 0 {
		return nil
	}
	return must(rs.At(i))
}

// adopt prepares rec for insertion and returns the record to store (a copy
// if rec belongs to a record set) and its row projected onto the format.
func (rs *RecordSet) adopt(rec *Record) (*Record, any, error) {
	if rec == nil {
		return nil, nil, dataErrf(rs.adapter.Kind(), nil, nil, "nil record")
	}
	if !Compatible(rec.adapter, rs.adapter) {
		return nil, nil, dataErrf(rs.adapter.Kind(), nil, ErrIncompatibleAdapter, "cannot add a %s record", rec.adapter.Kind())
	}
	if rec.owner != nil {
		rec = rec.Clone()
	}
	rs.establishFormat(rec)
	row, err := rs.project(rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, row, nil
}

// establishFormat lets the first record define the format of an empty set
// that has none.
func (rs *RecordSet) establishFormat(rec *Record) {
	if rs.format != nil || rs.table.Count() > 0 || len(rs.table.Fields()) > 0 {
		return
	}
	f := rec.Format().Clone()
	for _, fld := range f.items {
		if err := rs.table.AddField(fld, -1); err != nil {
			rs.log().Warn("rset: cannot add field", "field", fld.Name(), "err", err)
		}
	}
	rs.format = f
}

// project returns rec's raw data laid out by the set's format: as is when
// formats match, otherwise copied field by field into a new row, dropping
// extra fields and defaulting missing ones.
func (rs *RecordSet) project(rec *Record) (any, error) {
	target := rs.Format()
	src := rec.Format()
	if src.Fingerprint() == target.Fingerprint() && src.IsEqual(target) {
		return rec.RawData(), nil
	}
	view, err := rs.adapter.ForRecord(nil, rs.table.Data())
	if err != nil {
		return nil, err
	}
	logical := BaseAdapter(rs.adapter).Kind() == AdapterEntity
	for _, f := range target.items {
		var v any
		switch {
		case rec.Has(f.Name()):
			v = rec.Get(f.Name())
			if !logical {
				if v, err = castToWire(v, f); err != nil {
					return nil, err
				}
			}
		case logical:
			v = f.DefaultValue()
		default:
			v = wireDefault(f)
		}
		if err := view.Set(f.Name(), v); err != nil {
			return nil, err
		}
	}
	return view.Data(), nil
}

// insert adds recs at position at without notifying.
func (rs *RecordSet) insert(recs []*Record, at int) ([]*Record, error) {
	added := make([]*Record, 0, len(recs))
	defer func() {
		if len(added) > 0 {
			rs.renumber(at)
			rs.indexer.Inserted(at, len(added))
		}
	}()
	for _, rec := range recs {
		rec, row, err := rs.adopt(rec)
		if err != nil {
			return added, err
		}
		pos := at + len(added)
		if err := rs.table.Add(row, pos); err != nil {
			return added, err
		}
		rs.slots = insertAt(rs.slots, pos, rec)
		rec.attach(rs, pos, StateAdded)
		added = append(added, rec)
	}
	return added, nil
}

// Add inserts rec at position at (negative appends). The stored record is
// rec itself unless it belongs to a record set, in which case it is a copy.
func (rs *RecordSet) Add(rec *Record, at int) error {
	if at > rs.Count() {
		return posErrf("recordset", at, rs.Count())
	}
	if at < 0 {
		at = rs.Count()
	}
	added, err := rs.insert([]*Record{rec}, at)
	rs.emitAdded(added, at)
	return err
}

// Append adds records at the end with one notification.
func (rs *RecordSet) Append(recs ...*Record) error {
	at := rs.Count()
	added, err := rs.insert(recs, at)
	rs.emitAdded(added, at)
	return err
}

// Prepend adds records at the start with one notification.
func (rs *RecordSet) Prepend(recs ...*Record) error {
	added, err := rs.insert(recs, 0)
	rs.emitAdded(added, 0)
	return err
}

func (rs *RecordSet) emitAdded(added []*Record, at int) {
	if len(added) > 0 {
		rs.events.emit(CollectionChange[*Record]{Action: ActionAdd, NewItems: added, NewIndex: at, OldIndex: -1})
	}
}

// RemoveAt removes and returns the record at i. The record keeps its data
// and becomes detached.
func (rs *RecordSet) RemoveAt(i int) (*Record, error) {
	rec, err := rs.At(i)
	if err != nil {
		return nil, err
	}
	rs.remove(i)
	rs.events.emit(CollectionChange[*Record]{Action: ActionRemove, NewIndex: -1, OldItems: []*Record{rec}, OldIndex: i})
	return rec, nil
}

func (rs *RecordSet) remove(i int) {
	rec := rs.slots[i]
	if rec != nil {
		rec.detach()
	}
	if err := rs.table.Remove(i); err != nil {
		panic(fmt.Errorf("rset: table lost row %d: %w", i, err))
	}
	rs.slots = removeAt(rs.slots, i)
	rs.renumber(i)
	rs.indexer.Removed(i, 1)
}

// Remove removes rec and reports whether it was in the set.
func (rs *RecordSet) Remove(rec *Record) (bool, error) {
	i := rs.IndexOf(rec)
	if i < 0 {
		return false, nil
	}
	_, err := rs.RemoveAt(i)
	return err == nil, err
}

// Replace puts rec at position at and returns the detached previous record.
func (rs *RecordSet) Replace(rec *Record, at int) (*Record, error) {
	old, err := rs.At(at)
	if err != nil {
		return nil, err
	}
	if rec == old {
		return old, nil
	}
	rec, row, err := rs.adopt(rec)
	if err != nil {
		return nil, err
	}
	old.detach()
	if err := rs.table.Replace(row, at); err != nil {
		return nil, err
	}
	rs.slots[at] = rec
	rec.attach(rs, at, StateAdded)
	rs.indexer.Replaced(at, 1)
	rs.events.emit(CollectionChange[*Record]{
		Action:   ActionReplace,
		NewItems: []*Record{rec},
		NewIndex: at,
		OldItems: []*Record{old},
		OldIndex: at,
	})
	return old, nil
}

func (rs *RecordSet) Move(from, to int) error {
	if err := checkPos("recordset", from, rs.Count()); err != nil {
		return err
	}
	if err := checkPos("recordset", to, rs.Count()); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := rs.table.Move(from, to); err != nil {
		return err
	}
	moveItem(rs.slots, from, to)
	rs.renumber(min(from, to))
	rs.indexer.Moved(from, to)
	rec := must(rs.At(to))
	rs.events.emit(CollectionChange[*Record]{
		Action:   ActionMove,
		NewItems: []*Record{rec},
		NewIndex: to,
		OldItems: []*Record{rec},
		OldIndex: from,
	})
	return nil
}

// Assign replaces all records with one Reset notification. Without a
// declared format, the first new record defines the format again.
func (rs *RecordSet) Assign(recs ...*Record) error {
	old := rs.drop()
	if !rs.declared {
		rs.format = nil
		if table, err := rs.adapter.ForTable(nil); err == nil {
			rs.table = table
		}
	}
	added, err := rs.insert(recs, 0)
	rs.events.emit(CollectionChange[*Record]{Action: ActionReset, NewItems: added, OldItems: old})
	return err
}

// Clear removes all records with one Reset notification.
func (rs *RecordSet) Clear() {
	old := rs.drop()
	rs.events.emit(CollectionChange[*Record]{Action: ActionReset, OldItems: old})
}

// drop empties the table and returns the detached materialized records.
func (rs *RecordSet) drop() []*Record {
	old := rs.materialized()
	for _, rec := range old {
		rec.detach()
	}
	if err := rs.table.Clear(); err != nil {
		rs.log().Warn("rset: cannot clear table", "err", err)
	}
	rs.slots = rs.slots[:0]
	rs.indexer.ResetIndex()
	return old
}

// AddField adds a field to the format and to every row.
func (rs *RecordSet) AddField(f Field, at int) error {
	format := rs.ensureFormat()
	if _, exists := format.Field(f.Name()); exists {
		return fieldErrf("recordset", f.Name(), ErrFieldExists, "cannot add")
	}
	if err := rs.table.AddField(f, at); err != nil {
		return err
	}
	if at > format.Count() {
		at = -1
	}
	return format.Add(f, at)
}

func (rs *RecordSet) RemoveField(name string) error {
	format := rs.ensureFormat()
	if err := format.RemoveField(name); err != nil {
		return err
	}
	if err := rs.table.RemoveField(name); err != nil {
		return err
	}
	for _, rec := range rs.materialized() {
		delete(rec.changed, name)
		rec.invalidate(name)
	}
	rs.indexer.ResetProperty(name)
	return nil
}

func (rs *RecordSet) RemoveFieldAt(i int) error {
	format := rs.ensureFormat()
	if err := checkPos("recordset", i, format.Count()); err != nil {
		return err
	}
	return rs.RemoveField(format.items[i].Name())
}

// recordChanged is called by an owned record after its fields or state
// changed.
func (rs *RecordSet) recordChanged(rec *Record) {
	if rec.owner != rs {
		return
	}
	rs.indexer.Replaced(rec.pos, 1)
	rs.events.emit(CollectionChange[*Record]{
		Action:   ActionChange,
		NewItems: []*Record{rec},
		NewIndex: rec.pos,
		OldItems: []*Record{rec},
		OldIndex: rec.pos,
	})
}

func (rs *RecordSet) Subscribe(fn func(CollectionChange[*Record])) (unsubscribe func()) {
	return rs.events.Subscribe(fn)
}

func (rs *RecordSet) IsEventRaising() bool {
	return rs.events.IsEventRaising()
}

// SetEventRaising enables or disables notifications. With analyze, the
// changes made while disabled are reported on enabling: one Reset when
// the set changed structurally or too many records changed, otherwise a
// Change per run of adjacent changed records.
func (rs *RecordSet) SetEventRaising(enabled, analyze bool) {
	rs.events.setRaising(enabled, analyze, rs.Count(), rs.slice)
}

func (rs *RecordSet) SetResetThreshold(v float64) {
	rs.events.threshold = v
}

// batch runs fn with notifications collected into a summary.
func (rs *RecordSet) batch(fn func()) {
	if !rs.events.IsEventRaising() {
		fn()
		return
	}
	rs.SetEventRaising(false, true)
	defer rs.SetEventRaising(true, true)
	fn()
}

// AcceptChanges accepts changes of every record. Records marked Deleted
// are removed.
func (rs *RecordSet) AcceptChanges() {
	deleted := positionsPool.Get().([]int)
	defer func() { releasePositions(deleted) }()
	for i := len(rs.slots) - 1; i >= 0; i-- {
		if rec := rs.slots[i]; rec != nil && rec.state == StateDeleted {
			deleted = append(deleted, i)
		}
	}
	var removed []*Record
	for _, i := range deleted {
		rec := rs.slots[i]
		rs.remove(i)
		rec.accept()
		removed = append(removed, rec)
	}
	for _, rec := range rs.slots {
		if rec != nil {
			rec.accept()
		}
	}
	switch len(removed) {
	case 0:
	case 1:
		rs.events.emit(CollectionChange[*Record]{Action: ActionRemove, NewIndex: -1, OldItems: removed, OldIndex: deleted[0]})
	default:
		rs.events.emit(CollectionChange[*Record]{Action: ActionReset, NewItems: rs.Records(), OldItems: removed})
	}
}

// RejectChanges rejects changes of every materialized record.
func (rs *RecordSet) RejectChanges() {
	rs.batch(func() {
		for _, rec := range rs.materialized() {
			rec.RejectChanges()
		}
	})
}

// IsChanged reports whether any record has unaccepted changes.
func (rs *RecordSet) IsChanged() bool {
	for _, rec := range rs.slots {
		if rec != nil && (rec.IsChanged() || rec.state == StateAdded || rec.state == StateDeleted) {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own raw data. Materialized records are
// copied with their state and change tracking.
func (rs *RecordSet) Clone() *RecordSet {
	c := &RecordSet{
		adapter:    rs.adapter,
		table:      must(rs.adapter.ForTable(DeepCopy(rs.table.Data()))),
		idProperty: rs.idProperty,
		model:      rs.model,
		declared:   rs.declared,
		slots:      make([]*Record, len(rs.slots)),
		meta:       maps.Clone(rs.meta),
		logger:     rs.logger,
	}
	if rs.format != nil {
		c.format = rs.format.Clone()
	}
	c.events.threshold = rs.events.threshold
	c.indexer = NewIndexer(c.Count, c.indexValue)
	c.indexer.logger = rs.logger
	for i, rec := range rs.slots {
		if rec != nil {
			nr := must(c.At(i))
			nr.state = rec.state
			nr.acceptedState = rec.acceptedState
			nr.changed = maps.Clone(rec.changed)
		}
	}
	return c
}
