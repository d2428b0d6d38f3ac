package rset

import (
	"encoding/json"
	"testing"
)

func TestNewField_Validation(t *testing.T) {
	assertPanics(t, func() { NewField("", KindString) })
	assertPanics(t, func() { NewField("x", KindUnknown) })

	f := NewField("tags", KindArray)
	eq(t, f.ElementKind(), KindString)
	eq(t, f.IsNullable(), true)
	eq(t, f.String(), "tags:array<string>")
}

func TestField_DefaultValue(t *testing.T) {
	eq(t, NewField("n", KindInteger).DefaultValue(), any(int64(0)))
	eq(t, NewField("s", KindString).DefaultValue(), any(nil))
	eq(t, NewField("s", KindString, Default("x")).DefaultValue(), any("x"))
	eq(t, NewField("s", KindString, Default("x")).HasDeclaredDefault(), true)
}

func TestField_IsEqual(t *testing.T) {
	a := NewField("sum", KindMoney, Precision(2))
	eq(t, a.IsEqual(NewField("sum", KindMoney, Precision(2))), true)
	eq(t, a.IsEqual(NewField("sum", KindMoney, Precision(4))), false)
	eq(t, a.IsEqual(NewField("sum", KindReal)), false)
	eq(t, a.IsEqual(a.WithName("total")), false)

	e1 := NewField("e", KindEnum, WithDictionary(DictionaryOf("a", "b")))
	e2 := NewField("e", KindEnum, WithDictionary(DictionaryOf("a", "c")))
	eq(t, e1.IsEqual(e2), false)
	eq(t, NewField("x", KindString, Default("a")).IsEqual(NewField("x", KindString)), false)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("integer")
	noerr(t, err)
	eq(t, k, KindInteger)

	k, err = ParseKind(KindRecordSet.Token())
	noerr(t, err)
	eq(t, k, KindRecordSet)

	k, err = ParseKind("Набор записей")
	noerr(t, err)
	eq(t, k, KindRecordSet)

	_, err = ParseKind("nope")
	isErr(t, err, ErrFieldType)
	isErr(t, err, ErrTypeMismatch)
}

func TestFormat_AddRemove(t *testing.T) {
	f := MustFormat(NewField("a", KindString), NewField("b", KindInteger))
	noerr(t, f.Add(NewField("c", KindBoolean), 1))
	deepEqual(t, f.Names(), []string{"a", "c", "b"})

	isErr(t, f.Add(NewField("a", KindInteger), 2), ErrFieldExists)
	noerr(t, f.Add(NewField("a", KindInteger), 0))
	fld, _ := f.Field("a")
	eq(t, fld.Kind(), KindInteger)

	isErr(t, f.Add(NewField("z", KindString), 10), ErrOutOfBounds)

	noerr(t, f.RemoveField("c"))
	isErr(t, f.RemoveField("c"), ErrUnknownField)
	deepEqual(t, f.Names(), []string{"a", "b"})

	_, err := f.RemoveFieldAt(5)
	isErr(t, err, ErrRange)
}

func TestFormat_EqualityAndFingerprint(t *testing.T) {
	a := MustFormat(NewField("id", KindInteger), NewField("name", KindString))
	b := MustFormat(NewField("id", KindInteger), NewField("name", KindString))
	c := MustFormat(NewField("name", KindString), NewField("id", KindInteger))

	eq(t, a.IsEqual(b), true)
	eq(t, a.Fingerprint(), b.Fingerprint())
	eq(t, a.IsEqual(c), false)
	if a.Fingerprint() == c.Fingerprint() {
		t.Errorf("** field order does not affect fingerprint")
	}

	d := a.Clone()
	noerr(t, d.RemoveField("name"))
	eq(t, a.Count(), 2)
	eq(t, d.Count(), 1)
}

func TestFormatDecl_YAML(t *testing.T) {
	decl, err := ParseFormatYAML([]byte(`
- name: id
  type: integer
- name: title
  type: string
  default: untitled
- name: state
  type: enum
  dictionary: [draft, sent]
`))
	noerr(t, err)
	eq(t, decl.Partial, false)

	f, err := decl.Build(nil)
	noerr(t, err)
	deepEqual(t, f.Names(), []string{"id", "title", "state"})
	title, _ := f.Field("title")
	eq(t, title.DefaultValue(), any("untitled"))
	state, _ := f.Field("state")
	eq(t, state.Dictionary().NameOf("1"), "sent")
}

func TestFormatDecl_PartialMerge(t *testing.T) {
	decl, err := ParseFormatYAML([]byte(`
sum: {type: money, precision: 2}
extra: {type: boolean}
`))
	noerr(t, err)
	eq(t, decl.Partial, true)

	base := MustFormat(NewField("id", KindInteger), NewField("sum", KindReal))
	f, err := decl.Build(base)
	noerr(t, err)
	deepEqual(t, f.Names(), []string{"id", "sum", "extra"})
	sum, _ := f.Field("sum")
	eq(t, sum.Kind(), KindMoney)
	eq(t, sum.Precision(), 2)

	fld, _ := base.Field("sum")
	eq(t, fld.Kind(), KindReal)
}

func TestFormatDecl_JSON(t *testing.T) {
	var decl FormatDecl
	noerr(t, json.Unmarshal([]byte(`{"b": {"type": "string"}, "a": {"type": "integer"}}`), &decl))
	eq(t, decl.Partial, true)
	eq(t, len(decl.Fields), 2)
	eq(t, decl.Fields[0].Name, "b")

	raw, err := json.Marshal(decl)
	noerr(t, err)
	eq(t, string(raw), `{"b":{"type":"string"},"a":{"type":"integer"}}`)

	noerr(t, json.Unmarshal([]byte(`[{"name": "x", "type": "real"}]`), &decl))
	eq(t, decl.Partial, false)
	f, err := decl.Build(nil)
	noerr(t, err)
	deepEqual(t, f.Names(), []string{"x"})
}
