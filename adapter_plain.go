package rset

import (
	"slices"
	"sort"
)

// PlainAdapter handles plain data: a record is a map[string]any, a table is
// a slice of such maps. There is no declared schema; the fields of a table
// are the union of its rows' keys.
//
// Go maps are unordered, so views order fields as follows: keys present at
// construction are sorted, fields added later keep their insertion position.
type PlainAdapter struct{}

func NewPlainAdapter() *PlainAdapter { return &PlainAdapter{} }

func (*PlainAdapter) Kind() string { return AdapterPlain }

func (a *PlainAdapter) ForTable(data any) (TableAdapter, error) {
	rows, err := plainRows(data)
	if err != nil {
		return nil, err
	}
	t := &plainTable{rows: rows}
	t.order = unionKeys(nil, rows...)
	return t, nil
}

func (a *PlainAdapter) ForRecord(data any, tableData any) (RecordAdapter, error) {
	switch row := data.(type) {
	case nil:
		return &plainRecord{row: make(map[string]any)}, nil
	case map[string]any:
		return newPlainRecord(row, nil), nil
	default:
		if m, ok := asStringMap(data); ok {
			return newPlainRecord(m, nil), nil
		}
		return nil, dataErrf(AdapterPlain, data, nil, "record must be an object")
	}
}

func (a *PlainAdapter) KeyField(data any) string { return "" }

func (a *PlainAdapter) GetProperty(data any, path string) any {
	return getPath(data, path)
}

func (a *PlainAdapter) SetProperty(data any, path string, value any) error {
	return setPath(AdapterPlain, data, path, value)
}

func plainRows(data any) ([]map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		rows := make([]map[string]any, len(v))
		for i, item := range v {
			m, ok := asStringMap(item)
			if !ok {
				return nil, dataErrf(AdapterPlain, data, nil, "row %d must be an object, got %T", i, item)
			}
			rows[i] = m
		}
		return rows, nil
	default:
		return nil, dataErrf(AdapterPlain, data, nil, "table must be an array of objects")
	}
}

// unionKeys appends keys of rows not yet in order; keys new to each row are
// appended in sorted order.
func unionKeys(order []string, rows ...map[string]any) []string {
	var fresh []string
	for _, row := range rows {
		fresh = fresh[:0]
		for k := range row {
			if !slices.Contains(order, k) {
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		order = append(order, fresh...)
	}
	return order
}

type plainTable struct {
	rows  []map[string]any
	order []string
	uf    UniversalField
}

func (t *plainTable) Fields() []string { return slices.Clone(t.order) }
func (t *plainTable) Count() int       { return len(t.rows) }
func (t *plainTable) Data() any        { return t.rows }

func (t *plainTable) Format(name string) (Field, error) {
	if !slices.Contains(t.order, name) {
		return Field{}, fieldErrf(AdapterPlain, name, ErrUnknownField, "no such field")
	}
	var sample any
	for _, row := range t.rows {
		if v := row[name]; v != nil {
			sample = v
			break
		}
	}
	return NewField(name, inferKind(sample)), nil
}

func (t *plainTable) SharedFormat(name string) (*UniversalField, error) {
	f, err := t.Format(name)
	if err != nil {
		return nil, err
	}
	return t.uf.fill(f), nil
}

func (t *plainTable) AddField(f Field, at int) error {
	if slices.Contains(t.order, f.Name()) {
		return fieldErrf(AdapterPlain, f.Name(), ErrFieldExists, "cannot add")
	}
	def := wireDefault(f)
	for _, row := range t.rows {
		row[f.Name()] = DeepCopy(def)
	}
	t.order = insertAt(t.order, at, f.Name())
	return nil
}

func (t *plainTable) RemoveField(name string) error {
	i := slices.Index(t.order, name)
	if i < 0 {
		return fieldErrf(AdapterPlain, name, ErrUnknownField, "cannot remove")
	}
	return t.RemoveFieldAt(i)
}

func (t *plainTable) RemoveFieldAt(at int) error {
	if err := checkPos(AdapterPlain, at, len(t.order)); err != nil {
		return err
	}
	name := t.order[at]
	for _, row := range t.rows {
		delete(row, name)
	}
	t.order = removeAt(t.order, at)
	return nil
}

func (t *plainTable) At(i int) (any, error) {
	if err := checkPos(AdapterPlain, i, len(t.rows)); err != nil {
		return nil, err
	}
	return t.rows[i], nil
}

func (t *plainTable) RecordAt(i int) (RecordAdapter, error) {
	if err := checkPos(AdapterPlain, i, len(t.rows)); err != nil {
		return nil, err
	}
	return newPlainRecord(t.rows[i], t.order), nil
}

func (t *plainTable) row(v any) (map[string]any, error) {
	if row, ok := asStringMap(v); ok {
		return row, nil
	}
	return nil, dataErrf(AdapterPlain, v, nil, "row must be an object")
}

func (t *plainTable) Add(v any, at int) error {
	if at > len(t.rows) {
		return posErrf(AdapterPlain, at, len(t.rows))
	}
	row, err := t.row(v)
	if err != nil {
		return err
	}
	t.rows = insertAt(t.rows, at, row)
	t.order = unionKeys(t.order, row)
	return nil
}

func (t *plainTable) Remove(at int) error {
	if err := checkPos(AdapterPlain, at, len(t.rows)); err != nil {
		return err
	}
	t.rows = removeAt(t.rows, at)
	return nil
}

func (t *plainTable) Replace(v any, at int) error {
	if err := checkPos(AdapterPlain, at, len(t.rows)); err != nil {
		return err
	}
	row, err := t.row(v)
	if err != nil {
		return err
	}
	t.rows[at] = row
	t.order = unionKeys(t.order, row)
	return nil
}

func (t *plainTable) Move(from, to int) error {
	if err := checkPos(AdapterPlain, from, len(t.rows)); err != nil {
		return err
	}
	if err := checkPos(AdapterPlain, to, len(t.rows)); err != nil {
		return err
	}
	moveItem(t.rows, from, to)
	return nil
}

func (t *plainTable) Merge(acceptor, donor int, idField string) error {
	if err := checkPos(AdapterPlain, acceptor, len(t.rows)); err != nil {
		return err
	}
	if err := checkPos(AdapterPlain, donor, len(t.rows)); err != nil {
		return err
	}
	dst, src := t.rows[acceptor], t.rows[donor]
	for k, v := range src {
		if k != idField {
			dst[k] = v
		}
	}
	return t.Remove(donor)
}

func (t *plainTable) Copy(i int) (any, error) {
	if err := checkPos(AdapterPlain, i, len(t.rows)); err != nil {
		return nil, err
	}
	c := DeepCopy(t.rows[i]).(map[string]any)
	t.rows = insertAt(t.rows, i+1, c)
	return c, nil
}

func (t *plainTable) Clear() error {
	t.rows = nil
	return nil
}

func (t *plainTable) CloneView() (any, error) {
	rows := make([]map[string]any, len(t.rows))
	for i, row := range t.rows {
		rows[i] = DeepCopy(row).(map[string]any)
	}
	return &plainTable{rows: rows, order: slices.Clone(t.order)}, nil
}

type plainRecord struct {
	row   map[string]any
	order []string
	uf    UniversalField
}

// newPlainRecord orders fields by tableOrder first, then remaining keys sorted.
func newPlainRecord(row map[string]any, tableOrder []string) *plainRecord {
	var order []string
	for _, k := range tableOrder {
		if _, ok := row[k]; ok {
			order = append(order, k)
		}
	}
	return &plainRecord{row: row, order: unionKeys(order, row)}
}

func (r *plainRecord) Fields() []string { return slices.Clone(r.order) }
func (r *plainRecord) Data() any        { return r.row }

func (r *plainRecord) Has(name string) bool {
	_, ok := r.row[name]
	return ok
}

func (r *plainRecord) Get(name string) any {
	return r.row[name]
}

func (r *plainRecord) Set(name string, value any) error {
	if _, ok := r.row[name]; !ok {
		r.order = append(r.order, name)
	}
	r.row[name] = value
	return nil
}

func (r *plainRecord) Clear() error {
	clear(r.row)
	r.order = r.order[:0]
	return nil
}

func (r *plainRecord) Format(name string) (Field, error) {
	v, ok := r.row[name]
	if !ok {
		return Field{}, fieldErrf(AdapterPlain, name, ErrUnknownField, "no such field")
	}
	return NewField(name, inferKind(v)), nil
}

func (r *plainRecord) SharedFormat(name string) (*UniversalField, error) {
	f, err := r.Format(name)
	if err != nil {
		return nil, err
	}
	return r.uf.fill(f), nil
}

func (r *plainRecord) AddField(f Field, at int) error {
	if r.Has(f.Name()) {
		return fieldErrf(AdapterPlain, f.Name(), ErrFieldExists, "cannot add")
	}
	r.row[f.Name()] = wireDefault(f)
	r.order = insertAt(r.order, at, f.Name())
	return nil
}

func (r *plainRecord) RemoveField(name string) error {
	i := slices.Index(r.order, name)
	if i < 0 {
		return fieldErrf(AdapterPlain, name, ErrUnknownField, "cannot remove")
	}
	return r.RemoveFieldAt(i)
}

func (r *plainRecord) RemoveFieldAt(at int) error {
	if err := checkPos(AdapterPlain, at, len(r.order)); err != nil {
		return err
	}
	delete(r.row, r.order[at])
	r.order = removeAt(r.order, at)
	return nil
}

func (r *plainRecord) CloneView() (any, error) {
	return &plainRecord{row: DeepCopy(r.row).(map[string]any), order: slices.Clone(r.order)}, nil
}
