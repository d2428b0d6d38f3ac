package rset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldDecl is the declarative form of a Field, as found in format
// declaration files.
type FieldDecl struct {
	Name            string   `json:"name,omitempty" yaml:"name,omitempty"`
	Type            string   `json:"type" yaml:"type"`
	Default         any      `json:"default,omitempty" yaml:"default,omitempty"`
	Nullable        *bool    `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Precision       int      `json:"precision,omitempty" yaml:"precision,omitempty"`
	Large           bool     `json:"large,omitempty" yaml:"large,omitempty"`
	Dictionary      []string `json:"dictionary,omitempty" yaml:"dictionary,omitempty"`
	Kind            string   `json:"kind,omitempty" yaml:"kind,omitempty"`
	WithoutTimeZone bool     `json:"withoutTimeZone,omitempty" yaml:"withoutTimeZone,omitempty"`
}

func (d FieldDecl) Field() (Field, error) {
	if d.Name == "" {
		return Field{}, fmt.Errorf("%w: field declaration without name", ErrFieldType)
	}
	kind, err := ParseKind(d.Type)
	if err != nil {
		return Field{}, fieldErrf("format", d.Name, err, "bad type")
	}
	var opts []FieldOption
	if d.Default != nil {
		opts = append(opts, Default(d.Default))
	}
	if d.Nullable != nil {
		opts = append(opts, Nullable(*d.Nullable))
	}
	if d.Precision != 0 {
		opts = append(opts, Precision(d.Precision))
	}
	if d.Large {
		opts = append(opts, Large(true))
	}
	if len(d.Dictionary) > 0 {
		opts = append(opts, WithDictionary(DictionaryOf(d.Dictionary...)))
	}
	if d.Kind != "" {
		ek, err := ParseKind(d.Kind)
		if err != nil {
			return Field{}, fieldErrf("format", d.Name, err, "bad element kind")
		}
		opts = append(opts, ElementKind(ek))
	}
	if d.WithoutTimeZone {
		opts = append(opts, WithoutTimeZone(true))
	}
	return NewField(d.Name, kind, opts...), nil
}

// FormatDecl is either a complete ordered declaration (array form) or a
// partial one (object form) meant to be laid over an inferred format.
type FormatDecl struct {
	Fields  []FieldDecl
	Partial bool
}

// Build produces the declared format. Partial declarations are merged over
// base, which may be nil.
func (d FormatDecl) Build(base *Format) (*Format, error) {
	if d.Partial {
		return MergeFormat(base, d.Fields)
	}
	return BuildFormat(d.Fields)
}

// BuildFormat makes one field per declaration, in order.
func BuildFormat(decls []FieldDecl) (*Format, error) {
	f := &Format{}
	for _, d := range decls {
		fld, err := d.Field()
		if err != nil {
			return nil, err
		}
		if err := f.Add(fld, -1); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MergeFormat overlays decls onto a copy of base: an existing name is
// replaced at its position, a new name is appended.
func MergeFormat(base *Format, decls []FieldDecl) (*Format, error) {
	f := base.Clone()
	if f == nil {
		f = &Format{}
	}
	for _, d := range decls {
		fld, err := d.Field()
		if err != nil {
			return nil, err
		}
		if i := f.IndexOf(fld.Name()); i >= 0 {
			f.items[i] = fld
		} else {
			f.items = append(f.items, fld)
		}
	}
	return f, nil
}

// ParseFormatYAML reads a declaration: a sequence means array form, a
// mapping of name to declaration means partial form.
func ParseFormatYAML(data []byte) (FormatDecl, error) {
	var d FormatDecl
	err := yaml.Unmarshal(data, &d)
	return d, err
}

func (d *FormatDecl) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		d.Partial = false
		return value.Decode(&d.Fields)
	case yaml.MappingNode:
		d.Partial = true
		d.Fields = d.Fields[:0]
		for i := 0; i+1 < len(value.Content); i += 2 {
			var fd FieldDecl
			if err := value.Content[i+1].Decode(&fd); err != nil {
				return err
			}
			fd.Name = value.Content[i].Value
			d.Fields = append(d.Fields, fd)
		}
		return nil
	default:
		return fmt.Errorf("%w: format declaration must be a sequence or a mapping (line %d)", ErrShape, value.Line)
	}
}

func (d *FormatDecl) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		d.Partial = false
		return json.Unmarshal(data, &d.Fields)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: format declaration must be an array or an object", ErrShape)
	}
	d.Partial = true
	d.Fields = d.Fields[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		var fd FieldDecl
		if err := dec.Decode(&fd); err != nil {
			return err
		}
		fd.Name = tok.(string)
		d.Fields = append(d.Fields, fd)
	}
	return nil
}

func (d FormatDecl) MarshalJSON() ([]byte, error) {
	if !d.Partial {
		return json.Marshal(d.Fields)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fd := range d.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name := fd.Name
		fd.Name = ""
		buf.Write(must(json.Marshal(name)))
		buf.WriteByte(':')
		raw, err := json.Marshal(fd)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
