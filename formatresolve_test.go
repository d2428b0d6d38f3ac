package rset

import "testing"

func TestFormatResolver_Resolve(t *testing.T) {
	payload := map[string]any{
		"a": map[string]any{"f": float64(1), "s": []any{spec("x", KindInteger)}},
		"b": []any{
			map[string]any{"f": float64(2), "s": []any{spec("y", KindString)}},
			map[string]any{"f": float64(1), "d": []any{float64(5)}},
		},
	}
	r := NewFormatResolver(payload)

	specs, err := r.Resolve(2)
	noerr(t, err)
	deepEqual(t, specs.names(), []string{"y"})
	visited := r.visited

	again, err := r.Resolve(2)
	noerr(t, err)
	eq(t, again, specs)
	eq(t, r.visited, visited)

	_, err = r.Resolve(99)
	isErr(t, err, ErrUnknownFormat)
	eq(t, r.visited, 6)

	specs, err = r.Resolve(1)
	noerr(t, err)
	deepEqual(t, specs.names(), []string{"x"})

	_, err = r.Resolve(99)
	isErr(t, err, ErrUnknownFormat)
	eq(t, r.visited, 6)
}

func TestFormatResolver_Register(t *testing.T) {
	r := NewFormatResolver(nil)
	s1 := NewFieldSpecs(FieldSpec{Name: "a", Type: KindString.Token()})
	s2 := NewFieldSpecs(FieldSpec{Name: "b", Type: KindString.Token()})
	eq(t, r.Register(1, s1), s1)
	eq(t, r.Register(1, s2), s1)
	eq(t, must(r.Resolve(1)), s1)
}

func TestFormatResolver_NestedRecords(t *testing.T) {
	payload := map[string]any{
		"s": []any{spec("id", KindInteger), spec("item", KindRecord)},
		"d": []any{
			[]any{float64(1), map[string]any{"f": float64(7), "s": []any{spec("sku", KindString)}, "d": []any{"A-1"}}},
			[]any{float64(2), map[string]any{"f": float64(7), "d": []any{"B-2"}}},
		},
	}
	rs, err := NewRecordSet(RecordSetOptions{Adapter: NewColumnarAdapter(), RawData: payload})
	noerr(t, err)

	second := must(rs.At(1)).Get("item").(*Record)
	eq(t, second.Get("sku"), any("B-2"))
	first := must(rs.At(0)).Get("item").(*Record)
	eq(t, first.Get("sku"), any("A-1"))
	eq(t, first.RawData().(*ColumnarRow).S, second.RawData().(*ColumnarRow).S)
}

func TestFormatResolver_DeepPayload(t *testing.T) {
	const depth = 100_000
	var node any = map[string]any{"f": float64(3), "s": []any{spec("leaf", KindString)}}
	for range depth {
		node = map[string]any{"d": []any{node}}
	}
	r := NewFormatResolver(node)
	specs, err := r.Resolve(3)
	noerr(t, err)
	deepEqual(t, specs.names(), []string{"leaf"})
	eq(t, r.visited, 2*depth+1)
	eq(t, len(r.stack), 0)
}
