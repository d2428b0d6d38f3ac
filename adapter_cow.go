package rset

import (
	"log/slog"
	"strconv"
)

// CowAdapter wraps another adapter so that its views share the raw data
// they were built over until the first write. The first mutating call
// copies the data, reports it through onDirty and only then mutates the
// private copy. Reads never copy.
type CowAdapter struct {
	orig    Adapter
	onDirty func()
	logger  *slog.Logger
}

// NewCowAdapter wraps orig. onDirty, if given, is called once per view, on
// the write that triggers its copy.
func NewCowAdapter(orig Adapter, onDirty func()) *CowAdapter {
	if orig == nil {
		panic("rset: NewCowAdapter with nil adapter")
	}
	return &CowAdapter{orig: orig, onDirty: onDirty}
}

func (a *CowAdapter) withLogger(l *slog.Logger) Adapter {
	return &CowAdapter{orig: adapterWithLogger(a.orig, l), onDirty: a.onDirty, logger: l}
}

func (a *CowAdapter) Kind() string    { return a.orig.Kind() }
func (a *CowAdapter) Unwrap() Adapter { return a.orig }

func (a *CowAdapter) ForTable(data any) (TableAdapter, error) {
	view, err := a.orig.ForTable(data)
	if err != nil {
		return nil, err
	}
	return &CowTable{cow: cow{adapter: a.orig, onDirty: a.onDirty, logger: a.logger}, view: view}, nil
}

func (a *CowAdapter) ForRecord(data any, tableData any) (RecordAdapter, error) {
	view, err := a.orig.ForRecord(data, tableData)
	if err != nil {
		return nil, err
	}
	return &CowRecord{cow: cow{adapter: a.orig, onDirty: a.onDirty, logger: a.logger}, view: view}, nil
}

func (a *CowAdapter) KeyField(data any) string {
	return a.orig.KeyField(data)
}

func (a *CowAdapter) GetProperty(data any, path string) any {
	return a.orig.GetProperty(data, path)
}

// SetProperty writes into a copy of data; the returned error reports the
// write, the copy itself is not observable. Use a view to keep the result.
func (a *CowAdapter) SetProperty(data any, path string, value any) error {
	return a.orig.SetProperty(DeepCopy(data), path, value)
}

type cow struct {
	adapter Adapter
	onDirty func()
	copied  bool
	logger  *slog.Logger
}

// IsDirty reports whether the view has made its private copy.
func (c *cow) IsDirty() bool { return c.copied }

func (c *cow) markCopied(kind string, data any) {
	c.copied = true
	loggerOr(c.logger).Debug("rset: copy on write", "adapter", c.adapter.Kind(), "view", kind, "data", describeData(data))
	if fn := c.onDirty; fn != nil {
		c.onDirty = nil
		fn()
	}
}

func describeData(data any) string {
	switch v := data.(type) {
	case []map[string]any:
		return "rows:" + strconv.Itoa(len(v))
	case *ColumnarTable:
		return "rows:" + strconv.Itoa(len(v.D))
	case map[string]any:
		return "keys:" + strconv.Itoa(len(v))
	case *ColumnarRow:
		return "values:" + strconv.Itoa(len(v.D))
	}
	return "?"
}

// CowTable is a copy-on-write table view.
type CowTable struct {
	cow
	view TableAdapter
}

// Original returns the view currently backing reads: the shared original
// until the first write, the private copy after it.
func (t *CowTable) Original() TableAdapter { return t.view }

func (t *CowTable) mutable() (TableAdapter, error) {
	if t.copied {
		return t.view, nil
	}
	var copied TableAdapter
	if cl, ok := t.view.(Cloner); ok {
		v, err := cl.CloneView()
		if err != nil {
			return nil, err
		}
		copied = v.(TableAdapter)
	} else {
		v, err := t.adapter.ForTable(DeepCopy(t.view.Data()))
		if err != nil {
			return nil, err
		}
		copied = v
	}
	t.view = copied
	t.markCopied("table", copied.Data())
	return copied, nil
}

func (t *CowTable) Fields() []string                  { return t.view.Fields() }
func (t *CowTable) Count() int                        { return t.view.Count() }
func (t *CowTable) Data() any                         { return t.view.Data() }
func (t *CowTable) At(i int) (any, error)             { return t.view.At(i) }
func (t *CowTable) Format(name string) (Field, error) { return t.view.Format(name) }
func (t *CowTable) SharedFormat(name string) (*UniversalField, error) {
	return t.view.SharedFormat(name)
}

func (t *CowTable) MetaData() map[string]any {
	if md, ok := t.view.(metaDataSource); ok {
		return md.MetaData()
	}
	return nil
}

func (t *CowTable) decodeNested(raw any) any {
	if nd, ok := t.view.(nestedDecoder); ok {
		return nd.decodeNested(raw)
	}
	return raw
}

// RecordAt returns a row view whose writes go through the table's copy
// check first.
func (t *CowTable) RecordAt(i int) (RecordAdapter, error) {
	if _, err := t.view.RecordAt(i); err != nil {
		return nil, err
	}
	return &cowRow{t: t, i: i}, nil
}

func (t *CowTable) Add(row any, at int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Add(row, at)
}

func (t *CowTable) Remove(at int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Remove(at)
}

func (t *CowTable) Replace(row any, at int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Replace(row, at)
}

func (t *CowTable) Move(from, to int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Move(from, to)
}

func (t *CowTable) Merge(acceptor, donor int, idField string) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Merge(acceptor, donor, idField)
}

func (t *CowTable) Copy(i int) (any, error) {
	v, err := t.mutable()
	if err != nil {
		return nil, err
	}
	return v.Copy(i)
}

func (t *CowTable) Clear() error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.Clear()
}

func (t *CowTable) AddField(f Field, at int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.AddField(f, at)
}

func (t *CowTable) RemoveField(name string) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.RemoveField(name)
}

func (t *CowTable) RemoveFieldAt(at int) error {
	v, err := t.mutable()
	if err != nil {
		return err
	}
	return v.RemoveFieldAt(at)
}

// cowRow is row i of a CowTable.
type cowRow struct {
	t *CowTable
	i int
}

func (r *cowRow) current() RecordAdapter {
	return must(r.t.view.RecordAt(r.i))
}

func (r *cowRow) writable() (RecordAdapter, error) {
	v, err := r.t.mutable()
	if err != nil {
		return nil, err
	}
	return v.RecordAt(r.i)
}

func (r *cowRow) Fields() []string                  { return r.current().Fields() }
func (r *cowRow) Data() any                         { return r.current().Data() }
func (r *cowRow) Has(name string) bool              { return r.current().Has(name) }
func (r *cowRow) Get(name string) any               { return r.current().Get(name) }
func (r *cowRow) Format(name string) (Field, error) { return r.current().Format(name) }
func (r *cowRow) SharedFormat(name string) (*UniversalField, error) {
	return r.current().SharedFormat(name)
}

func (r *cowRow) decodeNested(raw any) any {
	return r.t.decodeNested(raw)
}

func (r *cowRow) Set(name string, value any) error {
	v, err := r.writable()
	if err != nil {
		return err
	}
	return v.Set(name, value)
}

func (r *cowRow) Clear() error {
	v, err := r.writable()
	if err != nil {
		return err
	}
	return v.Clear()
}

func (r *cowRow) AddField(f Field, at int) error {
	v, err := r.writable()
	if err != nil {
		return err
	}
	return v.AddField(f, at)
}

func (r *cowRow) RemoveField(name string) error {
	v, err := r.writable()
	if err != nil {
		return err
	}
	return v.RemoveField(name)
}

func (r *cowRow) RemoveFieldAt(at int) error {
	v, err := r.writable()
	if err != nil {
		return err
	}
	return v.RemoveFieldAt(at)
}

// CowRecord is a copy-on-write record view.
type CowRecord struct {
	cow
	view RecordAdapter
}

// Original returns the view currently backing reads.
func (r *CowRecord) Original() RecordAdapter { return r.view }

func (r *CowRecord) mutable() (RecordAdapter, error) {
	if r.copied {
		return r.view, nil
	}
	var copied RecordAdapter
	if cl, ok := r.view.(Cloner); ok {
		v, err := cl.CloneView()
		if err != nil {
			return nil, err
		}
		copied = v.(RecordAdapter)
	} else {
		v, err := r.adapter.ForRecord(DeepCopy(r.view.Data()), nil)
		if err != nil {
			return nil, err
		}
		copied = v
	}
	r.view = copied
	r.markCopied("record", copied.Data())
	return copied, nil
}

func (r *CowRecord) Fields() []string                  { return r.view.Fields() }
func (r *CowRecord) Data() any                         { return r.view.Data() }
func (r *CowRecord) Has(name string) bool              { return r.view.Has(name) }
func (r *CowRecord) Get(name string) any               { return r.view.Get(name) }
func (r *CowRecord) Format(name string) (Field, error) { return r.view.Format(name) }
func (r *CowRecord) SharedFormat(name string) (*UniversalField, error) {
	return r.view.SharedFormat(name)
}

func (r *CowRecord) decodeNested(raw any) any {
	if nd, ok := r.view.(nestedDecoder); ok {
		return nd.decodeNested(raw)
	}
	return raw
}

func (r *CowRecord) Set(name string, value any) error {
	v, err := r.mutable()
	if err != nil {
		return err
	}
	return v.Set(name, value)
}

func (r *CowRecord) Clear() error {
	v, err := r.mutable()
	if err != nil {
		return err
	}
	return v.Clear()
}

func (r *CowRecord) AddField(f Field, at int) error {
	v, err := r.mutable()
	if err != nil {
		return err
	}
	return v.AddField(f, at)
}

func (r *CowRecord) RemoveField(name string) error {
	v, err := r.mutable()
	if err != nil {
		return err
	}
	return v.RemoveField(name)
}

func (r *CowRecord) RemoveFieldAt(at int) error {
	v, err := r.mutable()
	if err != nil {
		return err
	}
	return v.RemoveFieldAt(at)
}
