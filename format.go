package rset

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Format is an ordered collection of uniquely named fields.
type Format struct {
	List[Field]
}

func NewFormat(fields ...Field) (*Format, error) {
	f := &Format{}
	for _, fld := range fields {
		if err := f.Add(fld, -1); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustFormat is NewFormat for declarations known to be valid.
func MustFormat(fields ...Field) *Format {
	return must(NewFormat(fields...))
}

// Add inserts field at the given position (negative appends). A field with
// the same name at the same position is replaced; the same name elsewhere
// is an error.
func (f *Format) Add(field Field, at int) error {
	if i := f.IndexOf(field.Name()); i >= 0 {
		if i != at {
			return fieldErrf("format", field.Name(), ErrFieldExists, "at position %d", i)
		}
		f.items[i] = field
		return nil
	}
	return f.List.Add(field, at)
}

// Replace puts field at position i. The name must not collide with another
// position.
func (f *Format) Replace(field Field, i int) (Field, error) {
	if j := f.IndexOf(field.Name()); j >= 0 && j != i {
		return Field{}, fieldErrf("format", field.Name(), ErrFieldExists, "at position %d", j)
	}
	return f.List.Replace(field, i)
}

// IndexOf returns the position of the named field, or -1.
func (f *Format) IndexOf(name string) int {
	for i, fld := range f.items {
		if fld.name == name {
			return i
		}
	}
	return -1
}

func (f *Format) Field(name string) (Field, bool) {
	if i := f.IndexOf(name); i >= 0 {
		return f.items[i], true
	}
	return Field{}, false
}

func (f *Format) Names() []string {
	names := make([]string, len(f.items))
	for i, fld := range f.items {
		names[i] = fld.name
	}
	return names
}

func (f *Format) RemoveField(name string) error {
	i := f.IndexOf(name)
	if i < 0 {
		return fieldErrf("format", name, ErrUnknownField, "cannot remove")
	}
	_, err := f.RemoveAt(i)
	return err
}

func (f *Format) RemoveFieldAt(i int) (Field, error) {
	return f.RemoveAt(i)
}

// IsEqual reports whether both formats have the same fields in the same order.
func (f *Format) IsEqual(o *Format) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil || len(f.items) != len(o.items) {
		return false
	}
	for i := range f.items {
		if !f.items[i].IsEqual(o.items[i]) {
			return false
		}
	}
	return true
}

// Fingerprint hashes names and kinds. Equal formats have equal
// fingerprints; the converse needs IsEqual.
func (f *Format) Fingerprint() uint64 {
	if f == nil {
		return 0
	}
	d := xxhash.New()
	var b [1]byte
	for _, fld := range f.items {
		d.WriteString(fld.name)
		b[0] = byte(fld.kind)
		d.Write(b[:])
	}
	return d.Sum64()
}

func (f *Format) Clone() *Format {
	if f == nil {
		return nil
	}
	return &Format{List[Field]{items: f.Items()}}
}

func (f *Format) String() string {
	if f == nil {
		return "<nil>"
	}
	var buf strings.Builder
	buf.WriteByte('[')
	for i, fld := range f.items {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(fld.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

// formatSource is implemented by both table and record views.
type formatSource interface {
	Fields() []string
	Format(name string) (Field, error)
}

// InferFormat builds a format from whatever fields a view exposes.
func InferFormat(src formatSource) (*Format, error) {
	f := &Format{}
	for _, name := range src.Fields() {
		fld, err := src.Format(name)
		if err != nil {
			return nil, err
		}
		f.items = append(f.items, fld)
	}
	return f, nil
}
