package rset

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ColumnarTable is decoded columnar table data: rows of values positioned
// by one spec array shared with every row.
type ColumnarTable struct {
	D    [][]any
	S    *FieldSpecs
	Meta map[string]any
	res  *FormatResolver
}

// ColumnarRow is decoded columnar record data.
type ColumnarRow struct {
	D   []any
	S   *FieldSpecs
	res *FormatResolver
}

// columnarNode is a not yet decoded nested {d, s|f} payload, kept together
// with the resolver of the payload it came from.
type columnarNode struct {
	m   map[string]any
	res *FormatResolver
}

var columnarMetaKeys = []string{"r", "p", "n", "m"}

func NewColumnarTable(specs *FieldSpecs, rows ...[]any) *ColumnarTable {
	if specs == nil {
		specs = NewFieldSpecs()
	}
	return &ColumnarTable{D: rows, S: specs}
}

func NewColumnarRow(specs *FieldSpecs, values ...any) *ColumnarRow {
	if specs == nil {
		specs = NewFieldSpecs()
	}
	return &ColumnarRow{D: values, S: specs}
}

// Clone copies rows and specs; the clone does not share its spec array.
func (t *ColumnarTable) Clone() *ColumnarTable {
	c := &ColumnarTable{
		D:   make([][]any, len(t.D)),
		S:   t.S.Clone(),
		res: t.res,
	}
	for i, row := range t.D {
		c.D[i] = DeepCopy(row).([]any)
	}
	if t.Meta != nil {
		c.Meta = DeepCopy(t.Meta).(map[string]any)
	}
	return c
}

func (r *ColumnarRow) Clone() *ColumnarRow {
	return &ColumnarRow{D: DeepCopy(r.D).([]any), S: r.S.Clone(), res: r.res}
}

// Get returns the raw value of the named column, or nil.
func (r *ColumnarRow) Get(name string) any {
	if i := r.S.IndexOf(name); i >= 0 && i < len(r.D) {
		return r.D[i]
	}
	return nil
}

// Wire returns the table in its generic {d, s} form.
func (t *ColumnarTable) Wire() map[string]any {
	rows := make([]any, len(t.D))
	for i, row := range t.D {
		rows[i] = wireValue(row)
	}
	m := map[string]any{"d": rows, "s": t.S.wire()}
	for k, v := range t.Meta {
		m[k] = wireValue(v)
	}
	return m
}

func (r *ColumnarRow) Wire() map[string]any {
	return map[string]any{"d": wireValue(r.D), "s": r.S.wire()}
}

func (t *ColumnarTable) MarshalJSON() ([]byte, error) { return json.Marshal(t.Wire()) }
func (r *ColumnarRow) MarshalJSON() ([]byte, error)   { return json.Marshal(r.Wire()) }

func (s *FieldSpecs) wire() []any {
	res := make([]any, len(s.list))
	for i, spec := range s.list {
		res[i] = spec.wire()
	}
	return res
}

// wireValue converts decoded columnar values back to generic maps and slices.
func wireValue(v any) any {
	switch v := v.(type) {
	case *ColumnarTable:
		return v.Wire()
	case *ColumnarRow:
		return v.Wire()
	case *columnarNode:
		return v.m
	case *Record:
		return wireValue(v.RawData())
	case *RecordSet:
		return wireValue(v.RawData())
	case []any:
		res := make([]any, len(v))
		for i, x := range v {
			res[i] = wireValue(x)
		}
		return res
	default:
		return v
	}
}

const specIndexCacheSize = 1024

type specIndex struct {
	version uint64
	pos     map[string]int
}

// specIndexCache maps a spec array (by identity) to its name index.
var specIndexCache = must(lru.New[*FieldSpecs, specIndex](specIndexCacheSize))

// IndexOf returns the position of the named field, or -1.
func (s *FieldSpecs) IndexOf(name string) int {
	if len(s.list) < 8 {
		return s.indexOfSlow(name)
	}
	idx, ok := specIndexCache.Get(s)
	if !ok || idx.version != s.version {
		idx = specIndex{version: s.version, pos: make(map[string]int, len(s.list))}
		for i, spec := range s.list {
			if _, dup := idx.pos[spec.Name]; !dup {
				idx.pos[spec.Name] = i
			}
		}
		specIndexCache.Add(s, idx)
	}
	if i, ok := idx.pos[name]; ok {
		return i
	}
	return -1
}

func (s *FieldSpecs) names() []string {
	res := make([]string, len(s.list))
	for i, spec := range s.list {
		res[i] = spec.Name
	}
	return res
}

func (s *FieldSpecs) field(name string) (Field, error) {
	i := s.IndexOf(name)
	if i < 0 {
		return Field{}, fieldErrf(AdapterColumnar, name, ErrUnknownField, "no such field")
	}
	return s.list[i].Field()
}

// wireDefault is the raw value stored for a field nobody has set.
func wireDefault(f Field) any {
	def := f.DefaultValue()
	if w, err := castToWire(def, f); err == nil {
		return w
	}
	return def
}

func (s *FieldSpecs) defaults() []any {
	res := make([]any, len(s.list))
	for i, spec := range s.list {
		if f, err := spec.Field(); err == nil {
			res[i] = wireDefault(f)
		}
	}
	return res
}

func isColumnarNode(m map[string]any) bool {
	if _, ok := m["d"]; !ok {
		return false
	}
	_, hasS := m["s"]
	_, hasF := m["f"]
	return hasS || hasF
}

func decodeColumnarTable(m map[string]any, res *FormatResolver) (*ColumnarTable, error) {
	if res == nil {
		res = NewFormatResolver(m)
	}
	specs, err := res.specsOf(m)
	if err != nil {
		return nil, err
	}
	t := &ColumnarTable{S: specs, res: res}
	if d := m["d"]; d != nil {
		items, ok := asAnySlice(d)
		if !ok {
			return nil, dataErrf(AdapterColumnar, m, nil, "d must be an array of rows")
		}
		t.D = make([][]any, len(items))
		for i, item := range items {
			row, err := decodeColumnarValues(item, specs)
			if err != nil {
				return nil, dataErrf(AdapterColumnar, m, err, "row %d", i)
			}
			t.D[i] = row
		}
	}
	for _, k := range columnarMetaKeys {
		if v, ok := m[k]; ok {
			if t.Meta == nil {
				t.Meta = make(map[string]any)
			}
			t.Meta[k] = v
		}
	}
	return t, nil
}

func decodeColumnarRow(m map[string]any, res *FormatResolver) (*ColumnarRow, error) {
	if res == nil {
		res = NewFormatResolver(m)
	}
	specs, err := res.specsOf(m)
	if err != nil {
		return nil, err
	}
	values, err := decodeColumnarValues(m["d"], specs)
	if err != nil {
		return nil, dataErrf(AdapterColumnar, m, err, "bad record")
	}
	return &ColumnarRow{D: values, S: specs, res: res}, nil
}

// decodeColumnarValues accepts a values array no longer than specs and pads
// it with nils.
func decodeColumnarValues(v any, specs *FieldSpecs) ([]any, error) {
	if v == nil {
		return make([]any, specs.Len()), nil
	}
	values, ok := asAnySlice(v)
	if !ok {
		return nil, ErrShape
	}
	if len(values) > specs.Len() {
		return nil, ErrShape
	}
	for len(values) < specs.Len() {
		values = append(values, nil)
	}
	return values, nil
}

// ColumnarAdapter handles the compact {d, s} encoding, where s is a spec
// array shared by every row and may be replaced by a numeric reference f to
// a spec array sent elsewhere in the same payload.
type ColumnarAdapter struct {
	logger *slog.Logger
}

func NewColumnarAdapter() *ColumnarAdapter { return &ColumnarAdapter{} }

func (*ColumnarAdapter) Kind() string { return AdapterColumnar }

func (a *ColumnarAdapter) withLogger(l *slog.Logger) Adapter {
	return &ColumnarAdapter{logger: l}
}

func (a *ColumnarAdapter) resolver(m map[string]any) *FormatResolver {
	res := NewFormatResolver(m)
	res.Logger = a.logger
	return res
}

func (a *ColumnarAdapter) table(data any) (*ColumnarTable, error) {
	switch v := data.(type) {
	case nil:
		return NewColumnarTable(nil), nil
	case *ColumnarTable:
		return v, nil
	case *columnarNode:
		return decodeColumnarTable(v.m, v.res)
	default:
		if m, ok := asStringMap(data); ok && isColumnarNode(m) {
			return decodeColumnarTable(m, a.resolver(m))
		}
		return nil, dataErrf(AdapterColumnar, data, nil, "table must be {d, s}")
	}
}

func (a *ColumnarAdapter) row(data any) (*ColumnarRow, error) {
	switch v := data.(type) {
	case nil:
		return NewColumnarRow(nil), nil
	case *ColumnarRow:
		return v, nil
	case *columnarNode:
		return decodeColumnarRow(v.m, v.res)
	case []any:
		return nil, dataErrf(AdapterColumnar, data, nil, "record must be {d, s}, got a bare values array")
	default:
		if m, ok := asStringMap(data); ok && isColumnarNode(m) {
			return decodeColumnarRow(m, a.resolver(m))
		}
		return nil, dataErrf(AdapterColumnar, data, nil, "record must be {d, s}")
	}
}

func (a *ColumnarAdapter) ForTable(data any) (TableAdapter, error) {
	t, err := a.table(data)
	if err != nil {
		return nil, err
	}
	return &columnarTableView{t: t}, nil
}

// ForRecord with nil data and a table builds a row of defaults sharing the
// table's spec array.
func (a *ColumnarAdapter) ForRecord(data any, tableData any) (RecordAdapter, error) {
	if data == nil && tableData != nil {
		t, err := a.table(tableData)
		if err != nil {
			return nil, err
		}
		return &columnarRowView{r: &ColumnarRow{D: t.S.defaults(), S: t.S, res: t.res}}, nil
	}
	r, err := a.row(data)
	if err != nil {
		return nil, err
	}
	return &columnarRowView{r: r}, nil
}

// KeyField is the first field whose name starts with @, else the first
// identity field.
func (a *ColumnarAdapter) KeyField(data any) string {
	var specs *FieldSpecs
	switch v := data.(type) {
	case *ColumnarTable:
		specs = v.S
	case *ColumnarRow:
		specs = v.S
	default:
		if t, err := a.table(data); err == nil {
			specs = t.S
		}
	}
	if specs == nil {
		return ""
	}
	for _, spec := range specs.list {
		if strings.HasPrefix(spec.Name, "@") {
			return spec.Name
		}
	}
	identity := KindIdentity.Token()
	for _, spec := range specs.list {
		if spec.Type == identity {
			return spec.Name
		}
	}
	return ""
}

func (a *ColumnarAdapter) GetProperty(data any, path string) any {
	return getPath(a.decoded(data), path)
}

func (a *ColumnarAdapter) SetProperty(data any, path string, value any) error {
	return setPath(AdapterColumnar, a.decoded(data), path, value)
}

// decoded turns a generic {d, s|f} map into a table or a row; a map whose
// d holds arrays is taken for a table.
func (a *ColumnarAdapter) decoded(data any) any {
	m, ok := asStringMap(data)
	if !ok || !isColumnarNode(m) {
		return data
	}
	if looksLikeTable(m) {
		if t, err := a.table(m); err == nil {
			return t
		}
	}
	if r, err := a.row(m); err == nil {
		return r
	}
	return data
}

func looksLikeTable(m map[string]any) bool {
	d, ok := asAnySlice(m["d"])
	if !ok || len(d) == 0 {
		return false
	}
	_, ok = asAnySlice(d[0])
	return ok
}

type columnarTableView struct {
	t  *ColumnarTable
	uf UniversalField
}

func (v *columnarTableView) Fields() []string { return v.t.S.names() }
func (v *columnarTableView) Count() int       { return len(v.t.D) }
func (v *columnarTableView) Data() any        { return v.t }

func (v *columnarTableView) MetaData() map[string]any {
	if v.t.Meta == nil {
		return nil
	}
	res := make(map[string]any, len(v.t.Meta))
	for k, x := range v.t.Meta {
		res[k] = v.decodeNested(x)
	}
	return res
}

func (v *columnarTableView) decodeNested(raw any) any {
	return decodeNested(raw, v.t.res)
}

func decodeNested(raw any, res *FormatResolver) any {
	if m, ok := raw.(map[string]any); ok && isColumnarNode(m) {
		return &columnarNode{m: m, res: res}
	}
	return raw
}

func (v *columnarTableView) Format(name string) (Field, error) {
	return v.t.S.field(name)
}

func (v *columnarTableView) SharedFormat(name string) (*UniversalField, error) {
	f, err := v.Format(name)
	if err != nil {
		return nil, err
	}
	return v.uf.fill(f), nil
}

func (v *columnarTableView) AddField(f Field, at int) error {
	s := v.t.S
	if s.IndexOf(f.Name()) >= 0 {
		return fieldErrf(AdapterColumnar, f.Name(), ErrFieldExists, "cannot add")
	}
	if at < 0 || at > s.Len() {
		at = s.Len()
	}
	def := wireDefault(f)
	for i, row := range v.t.D {
		v.t.D[i] = insertAt(row, at, DeepCopy(def))
	}
	s.insert(SpecOf(f), at)
	return nil
}

func (v *columnarTableView) RemoveField(name string) error {
	i := v.t.S.IndexOf(name)
	if i < 0 {
		return fieldErrf(AdapterColumnar, name, ErrUnknownField, "cannot remove")
	}
	return v.RemoveFieldAt(i)
}

func (v *columnarTableView) RemoveFieldAt(at int) error {
	if err := checkPos(AdapterColumnar, at, v.t.S.Len()); err != nil {
		return err
	}
	for i, row := range v.t.D {
		if at < len(row) {
			v.t.D[i] = removeAt(row, at)
		}
	}
	v.t.S.remove(at)
	return nil
}

func (v *columnarTableView) At(i int) (any, error) {
	if err := checkPos(AdapterColumnar, i, len(v.t.D)); err != nil {
		return nil, err
	}
	return &ColumnarRow{D: v.t.D[i], S: v.t.S, res: v.t.res}, nil
}

func (v *columnarTableView) RecordAt(i int) (RecordAdapter, error) {
	if err := checkPos(AdapterColumnar, i, len(v.t.D)); err != nil {
		return nil, err
	}
	return &columnarBoundRow{t: v.t, i: i}, nil
}

// values converts an incoming row to a values array laid out by the
// table's specs. Rows with a different layout are matched by name.
func (v *columnarTableView) values(row any) ([]any, error) {
	var r *ColumnarRow
	switch x := row.(type) {
	case *ColumnarRow:
		r = x
	case []any:
		if len(x) != v.t.S.Len() {
			return nil, dataErrf(AdapterColumnar, row, nil, "row has %d values, want %d", len(x), v.t.S.Len())
		}
		return x, nil
	default:
		m, ok := asStringMap(row)
		if !ok || !isColumnarNode(m) {
			return nil, dataErrf(AdapterColumnar, row, nil, "row must be {d, s}")
		}
		var err error
		r, err = decodeColumnarRow(m, v.t.res)
		if err != nil {
			return nil, err
		}
	}
	if r.S == v.t.S || slices.Equal(r.S.names(), v.t.S.names()) {
		return r.D, nil
	}
	res := v.t.S.defaults()
	for i, spec := range v.t.S.list {
		if j := r.S.IndexOf(spec.Name); j >= 0 && j < len(r.D) {
			res[i] = r.D[j]
		}
	}
	return res, nil
}

func (v *columnarTableView) Add(row any, at int) error {
	if at > len(v.t.D) {
		return posErrf(AdapterColumnar, at, len(v.t.D))
	}
	values, err := v.values(row)
	if err != nil {
		return err
	}
	v.t.D = insertAt(v.t.D, at, values)
	return nil
}

func (v *columnarTableView) Remove(at int) error {
	if err := checkPos(AdapterColumnar, at, len(v.t.D)); err != nil {
		return err
	}
	v.t.D = removeAt(v.t.D, at)
	return nil
}

func (v *columnarTableView) Replace(row any, at int) error {
	if err := checkPos(AdapterColumnar, at, len(v.t.D)); err != nil {
		return err
	}
	values, err := v.values(row)
	if err != nil {
		return err
	}
	v.t.D[at] = values
	return nil
}

func (v *columnarTableView) Move(from, to int) error {
	if err := checkPos(AdapterColumnar, from, len(v.t.D)); err != nil {
		return err
	}
	if err := checkPos(AdapterColumnar, to, len(v.t.D)); err != nil {
		return err
	}
	moveItem(v.t.D, from, to)
	return nil
}

func (v *columnarTableView) Merge(acceptor, donor int, idField string) error {
	if err := checkPos(AdapterColumnar, acceptor, len(v.t.D)); err != nil {
		return err
	}
	if err := checkPos(AdapterColumnar, donor, len(v.t.D)); err != nil {
		return err
	}
	dst, src := v.t.D[acceptor], v.t.D[donor]
	for j, spec := range v.t.S.list {
		if spec.Name != idField && j < len(dst) && j < len(src) {
			dst[j] = src[j]
		}
	}
	return v.Remove(donor)
}

func (v *columnarTableView) Copy(i int) (any, error) {
	if err := checkPos(AdapterColumnar, i, len(v.t.D)); err != nil {
		return nil, err
	}
	c := DeepCopy(v.t.D[i]).([]any)
	v.t.D = insertAt(v.t.D, i+1, c)
	return &ColumnarRow{D: c, S: v.t.S, res: v.t.res}, nil
}

func (v *columnarTableView) Clear() error {
	v.t.D = nil
	return nil
}

func (v *columnarTableView) CloneView() (any, error) {
	return &columnarTableView{t: v.t.Clone()}, nil
}

// columnarBoundRow is a record view over row i of a table. It reads the
// row slice from the table on each access, so field changes on the table
// are seen immediately.
type columnarBoundRow struct {
	t  *ColumnarTable
	i  int
	uf UniversalField
}

func (b *columnarBoundRow) row() *ColumnarRow {
	return &ColumnarRow{D: b.t.D[b.i], S: b.t.S, res: b.t.res}
}

func (b *columnarBoundRow) Fields() []string { return b.t.S.names() }
func (b *columnarBoundRow) Data() any        { return b.row() }
func (b *columnarBoundRow) Has(name string) bool {
	return b.t.S.IndexOf(name) >= 0
}

func (b *columnarBoundRow) Get(name string) any {
	return b.row().Get(name)
}

func (b *columnarBoundRow) Set(name string, value any) error {
	j := b.t.S.IndexOf(name)
	if j < 0 {
		return fieldErrf(AdapterColumnar, name, ErrUnknownField, "cannot set")
	}
	b.t.D[b.i][j] = value
	return nil
}

func (b *columnarBoundRow) Clear() error {
	clear(b.t.D[b.i])
	return nil
}

func (b *columnarBoundRow) Format(name string) (Field, error) {
	return b.t.S.field(name)
}

func (b *columnarBoundRow) SharedFormat(name string) (*UniversalField, error) {
	f, err := b.Format(name)
	if err != nil {
		return nil, err
	}
	return b.uf.fill(f), nil
}

func (b *columnarBoundRow) decodeNested(raw any) any {
	return decodeNested(raw, b.t.res)
}

func (b *columnarBoundRow) AddField(f Field, at int) error {
	return fieldErrf(AdapterColumnar, f.Name(), ErrReadOnly, "table row fields follow the table")
}

func (b *columnarBoundRow) RemoveField(name string) error {
	return fieldErrf(AdapterColumnar, name, ErrReadOnly, "table row fields follow the table")
}

func (b *columnarBoundRow) RemoveFieldAt(at int) error {
	return fieldErrf(AdapterColumnar, "", ErrReadOnly, "table row fields follow the table")
}

type columnarRowView struct {
	r  *ColumnarRow
	uf UniversalField
	// own is set once the spec array has been copied for this row alone.
	own bool
}

func (v *columnarRowView) Fields() []string { return v.r.S.names() }
func (v *columnarRowView) Data() any        { return v.r }

func (v *columnarRowView) Has(name string) bool {
	return v.r.S.IndexOf(name) >= 0
}

func (v *columnarRowView) Get(name string) any {
	return v.r.Get(name)
}

func (v *columnarRowView) Set(name string, value any) error {
	j := v.r.S.IndexOf(name)
	if j < 0 {
		return fieldErrf(AdapterColumnar, name, ErrUnknownField, "cannot set")
	}
	for len(v.r.D) <= j {
		v.r.D = append(v.r.D, nil)
	}
	v.r.D[j] = value
	return nil
}

func (v *columnarRowView) Clear() error {
	v.r.D = v.r.D[:0]
	v.r.S = NewFieldSpecs()
	v.own = true
	return nil
}

func (v *columnarRowView) Format(name string) (Field, error) {
	return v.r.S.field(name)
}

func (v *columnarRowView) SharedFormat(name string) (*UniversalField, error) {
	f, err := v.Format(name)
	if err != nil {
		return nil, err
	}
	return v.uf.fill(f), nil
}

func (v *columnarRowView) decodeNested(raw any) any {
	return decodeNested(raw, v.r.res)
}

// ownSpecs detaches the row's spec array before a structural change, so
// that rows of a table never see a field added to one of them.
func (v *columnarRowView) ownSpecs() {
	if !v.own {
		v.r.S = v.r.S.Clone()
		v.own = true
	}
}

func (v *columnarRowView) AddField(f Field, at int) error {
	if v.r.S.IndexOf(f.Name()) >= 0 {
		return fieldErrf(AdapterColumnar, f.Name(), ErrFieldExists, "cannot add")
	}
	v.ownSpecs()
	if at < 0 || at > v.r.S.Len() {
		at = v.r.S.Len()
	}
	v.r.D = insertAt(v.r.D, at, wireDefault(f))
	v.r.S.insert(SpecOf(f), at)
	return nil
}

func (v *columnarRowView) RemoveField(name string) error {
	i := v.r.S.IndexOf(name)
	if i < 0 {
		return fieldErrf(AdapterColumnar, name, ErrUnknownField, "cannot remove")
	}
	return v.RemoveFieldAt(i)
}

func (v *columnarRowView) RemoveFieldAt(at int) error {
	if err := checkPos(AdapterColumnar, at, v.r.S.Len()); err != nil {
		return err
	}
	v.ownSpecs()
	if at < len(v.r.D) {
		v.r.D = removeAt(v.r.D, at)
	}
	v.r.S.remove(at)
	return nil
}

func (v *columnarRowView) CloneView() (any, error) {
	return &columnarRowView{r: v.r.Clone(), own: true}, nil
}
