package rset

// EntityAdapter lets a fully typed entity serve as raw data: a table is a
// *RecordSet and a record is a *Record. Writes go through the nested
// entity's own API, so its casts, change tracking and notifications apply.
type EntityAdapter struct{}

func NewEntityAdapter() *EntityAdapter { return &EntityAdapter{} }

func (*EntityAdapter) Kind() string { return AdapterEntity }

func (a *EntityAdapter) ForTable(data any) (TableAdapter, error) {
	switch rs := data.(type) {
	case nil:
		return &entityTable{rs: must(NewRecordSet(RecordSetOptions{}))}, nil
	case *RecordSet:
		return &entityTable{rs: rs}, nil
	default:
		return nil, dataErrf(AdapterEntity, data, nil, "table must be a record set")
	}
}

func (a *EntityAdapter) ForRecord(data any, tableData any) (RecordAdapter, error) {
	switch rec := data.(type) {
	case nil:
		opts := RecordOptions{}
		if rs, ok := tableData.(*RecordSet); ok {
			opts.Adapter = rs.Adapter()
			opts.Format = rs.Format().Clone()
		}
		r, err := NewRecord(opts)
		if err != nil {
			return nil, err
		}
		return &entityRecord{rec: r}, nil
	case *Record:
		return &entityRecord{rec: rec}, nil
	default:
		return nil, dataErrf(AdapterEntity, data, nil, "record must be a record")
	}
}

func (a *EntityAdapter) KeyField(data any) string {
	switch v := data.(type) {
	case *Record:
		return v.KeyField()
	case *RecordSet:
		return v.IDProperty()
	}
	return ""
}

func (a *EntityAdapter) GetProperty(data any, path string) any {
	return getPath(data, path)
}

func (a *EntityAdapter) SetProperty(data any, path string, value any) error {
	return setPath(AdapterEntity, data, path, value)
}

type entityTable struct {
	rs *RecordSet
	uf UniversalField
}

func (t *entityTable) Fields() []string { return t.rs.Format().Names() }
func (t *entityTable) Count() int       { return t.rs.Count() }
func (t *entityTable) Data() any        { return t.rs }

func (t *entityTable) Format(name string) (Field, error) {
	f, ok := t.rs.Format().Field(name)
	if !ok {
		return Field{}, fieldErrf(AdapterEntity, name, ErrUnknownField, "no such field")
	}
	return f, nil
}

func (t *entityTable) SharedFormat(name string) (*UniversalField, error) {
	f, err := t.Format(name)
	if err != nil {
		return nil, err
	}
	return t.uf.fill(f), nil
}

func (t *entityTable) AddField(f Field, at int) error { return t.rs.AddField(f, at) }
func (t *entityTable) RemoveField(name string) error  { return t.rs.RemoveField(name) }
func (t *entityTable) RemoveFieldAt(at int) error     { return t.rs.RemoveFieldAt(at) }

func (t *entityTable) At(i int) (any, error) {
	rec, err := t.rs.At(i)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (t *entityTable) RecordAt(i int) (RecordAdapter, error) {
	rec, err := t.rs.At(i)
	if err != nil {
		return nil, err
	}
	return &entityRecord{rec: rec}, nil
}

func (t *entityTable) record(row any) (*Record, error) {
	if rec, ok := row.(*Record); ok {
		return rec, nil
	}
	return nil, dataErrf(AdapterEntity, row, nil, "row must be a record")
}

func (t *entityTable) Add(row any, at int) error {
	rec, err := t.record(row)
	if err != nil {
		return err
	}
	return t.rs.Add(rec, at)
}

func (t *entityTable) Remove(at int) error {
	_, err := t.rs.RemoveAt(at)
	return err
}

func (t *entityTable) Replace(row any, at int) error {
	rec, err := t.record(row)
	if err != nil {
		return err
	}
	_, err = t.rs.Replace(rec, at)
	return err
}

func (t *entityTable) Move(from, to int) error {
	return t.rs.Move(from, to)
}

func (t *entityTable) Merge(acceptor, donor int, idField string) error {
	dst, err := t.rs.At(acceptor)
	if err != nil {
		return err
	}
	src, err := t.rs.At(donor)
	if err != nil {
		return err
	}
	values := make(map[string]any)
	for _, name := range src.Format().Names() {
		if name != idField {
			values[name] = src.Get(name)
		}
	}
	if err := dst.SetMany(values); err != nil {
		return err
	}
	_, err = t.rs.RemoveAt(donor)
	return err
}

func (t *entityTable) Copy(i int) (any, error) {
	rec, err := t.rs.At(i)
	if err != nil {
		return nil, err
	}
	c := rec.Clone()
	if err := t.rs.Add(c, i+1); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *entityTable) Clear() error {
	t.rs.Clear()
	return nil
}

func (t *entityTable) CloneView() (any, error) {
	return &entityTable{rs: t.rs.Clone()}, nil
}

type entityRecord struct {
	rec *Record
	uf  UniversalField
}

func (r *entityRecord) Fields() []string             { return r.rec.Format().Names() }
func (r *entityRecord) Data() any                    { return r.rec }
func (r *entityRecord) Has(name string) bool         { return r.rec.Has(name) }
func (r *entityRecord) Get(name string) any          { return r.rec.Get(name) }
func (r *entityRecord) Set(name string, v any) error { return r.rec.Set(name, v) }

// Clear resets every field to its default.
func (r *entityRecord) Clear() error {
	values := make(map[string]any)
	for _, f := range r.rec.Format().Items() {
		values[f.Name()] = f.DefaultValue()
	}
	return r.rec.SetMany(values)
}

func (r *entityRecord) Format(name string) (Field, error) {
	f, ok := r.rec.Format().Field(name)
	if !ok {
		return Field{}, fieldErrf(AdapterEntity, name, ErrUnknownField, "no such field")
	}
	return f, nil
}

func (r *entityRecord) SharedFormat(name string) (*UniversalField, error) {
	f, err := r.Format(name)
	if err != nil {
		return nil, err
	}
	return r.uf.fill(f), nil
}

func (r *entityRecord) AddField(f Field, at int) error { return r.rec.AddField(f, at) }
func (r *entityRecord) RemoveField(name string) error  { return r.rec.RemoveField(name) }
func (r *entityRecord) RemoveFieldAt(at int) error     { return r.rec.RemoveFieldAt(at) }

func (r *entityRecord) CloneView() (any, error) {
	return &entityRecord{rec: r.rec.Clone()}, nil
}
