package rset

import (
	"math/rand"
	"slices"
	"strings"
	"testing"
)

func threeRows(t testing.TB) *RecordSet {
	return plainRS(t,
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
		map[string]any{"id": 3, "name": "c"},
	)
}

func ids(rs *RecordSet) []any {
	var res []any
	for _, rec := range rs.All() {
		res = append(res, rec.Get("id"))
	}
	return res
}

func TestRecordSet_LazyMaterialization(t *testing.T) {
	rs := threeRows(t)
	eq(t, rs.Count(), 3)
	eq(t, rs.Stats().Materialized, 0)

	eq(t, rs.IndexByValue("id", 2), 1)
	eq(t, rs.IndexByValue("name", "c"), 2)
	eq(t, rs.Stats().Materialized, 0)

	rec, err := rs.At(1)
	noerr(t, err)
	eq(t, rec.State(), StateUnchanged)
	eq(t, rec.Owner(), rs)
	eq(t, rec.Get("name"), any("b"))
	eq(t, must(rs.At(1)), rec)
	eq(t, rs.Stats().Materialized, 1)

	_, err = rs.At(3)
	isErr(t, err, ErrOutOfBounds)
}

func TestRecordSet_StructuralEvents(t *testing.T) {
	rs := plainRS(t,
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
	)
	log := watch(rs)

	rec := plainRec(t, map[string]any{"id": 3, "name": "c"})
	noerr(t, rs.Add(rec, 1))
	eq(t, rec.Owner(), rs)
	eq(t, rec.State(), StateAdded)
	eq(t, rs.IndexOf(rec), 1)
	deepEqual(t, ids(rs), []any{int64(1), int64(3), int64(2)})

	first, err := rs.RemoveAt(0)
	noerr(t, err)
	isnil(t, first.Owner())
	eq(t, first.State(), StateDetached)
	eq(t, first.Get("name"), any("a"))
	eq(t, rs.IndexOf(rec), 0)

	old, err := rs.Replace(plainRec(t, map[string]any{"id": 9, "name": "z"}), 0)
	noerr(t, err)
	eq(t, old, rec)
	isnil(t, rec.Owner())

	noerr(t, rs.Move(0, 1))
	deepEqual(t, ids(rs), []any{int64(2), int64(9)})

	removed, err := rs.Remove(rec)
	noerr(t, err)
	eq(t, removed, false)

	deepEqual(t, log.actions(), []Action{ActionAdd, ActionRemove, ActionReplace, ActionMove})
	eq(t, log.events[0].NewIndex, 1)
	eq(t, log.events[1].OldIndex, 0)
	eq(t, log.events[3].OldIndex, 0)
	eq(t, log.events[3].NewIndex, 1)
}

func TestRecordSet_AddValidation(t *testing.T) {
	rs := threeRows(t)
	isErr(t, rs.Add(nil, 0), ErrShape)
	isErr(t, rs.Add(plainRec(t, nil), 9), ErrOutOfBounds)

	col := must(NewRecord(RecordOptions{Adapter: NewColumnarAdapter()}))
	isErr(t, rs.Add(col, 0), ErrIncompatibleAdapter)
	eq(t, rs.Count(), 3)
}

func TestRecordSet_AddOwnedRecordStoresCopy(t *testing.T) {
	src, dst := threeRows(t), threeRows(t)
	rec := must(src.At(0))
	noerr(t, dst.Add(rec, -1))
	eq(t, dst.Count(), 4)
	eq(t, rec.Owner(), src)
	added := must(dst.At(3))
	if added == rec {
		t.Fatalf("** owned record was moved instead of copied")
	}
	noerr(t, added.Set("name", "copy"))
	eq(t, rec.Get("name"), any("a"))
}

func TestRecordSet_Projection(t *testing.T) {
	rs := plainRS(t, map[string]any{"id": 1, "name": "a"})
	orig := map[string]any{"id": 2, "extra": true}
	rec := plainRec(t, orig)
	noerr(t, rs.Append(rec))

	deepEqual(t, must(rs.At(1)).RawData(), any(map[string]any{"id": int64(2), "name": nil}))
	eq(t, rec.Has("extra"), false)
	eq(t, rec.Get("id"), any(int64(2)))
	eq(t, orig["extra"], any(true))
	isErr(t, rec.Set("extra", false), ErrUnknownField)
}

func TestRecordSet_FirstRecordDefinesFormat(t *testing.T) {
	rs := must(NewRecordSet(RecordSetOptions{}))
	eq(t, rs.Format().Count(), 0)
	noerr(t, rs.Append(plainRec(t, map[string]any{"b": 1, "a": "x"})))
	deepEqual(t, rs.Format().Names(), []string{"a", "b"})

	noerr(t, rs.Append(plainRec(t, map[string]any{"c": 1})))
	deepEqual(t, must(rs.At(1)).RawData(), any(map[string]any{"a": nil, "b": int64(0)}))
}

func TestRecordSet_DeclaredFormat(t *testing.T) {
	rs := must(NewRecordSet(RecordSetOptions{
		RawData: []map[string]any{{"id": 1}},
		Format:  MustFormat(NewField("id", KindInteger), NewField("qty", KindInteger, Default(1))),
	}))
	eq(t, must(rs.At(0)).Get("qty"), any(int64(1)))

	noerr(t, rs.Assign(plainRec(t, map[string]any{"other": "x"})))
	deepEqual(t, rs.Format().Names(), []string{"id", "qty"})
	deepEqual(t, must(rs.At(0)).RawData(), any(map[string]any{"id": int64(0), "qty": int64(1)}))
}

func TestRecordSet_AssignAndClear(t *testing.T) {
	rs := threeRows(t)
	held := must(rs.At(0))
	log := watch(rs)

	noerr(t, rs.Assign(plainRec(t, map[string]any{"k": "v"})))
	eq(t, rs.Count(), 1)
	deepEqual(t, rs.Format().Names(), []string{"k"})
	isnil(t, held.Owner())
	eq(t, held.Get("name"), any("a"))

	rs.Clear()
	eq(t, rs.Count(), 0)
	deepEqual(t, log.actions(), []Action{ActionReset, ActionReset})
	eq(t, len(log.events[0].OldItems), 1)
	eq(t, len(log.events[1].OldItems), 1)
}

func TestRecordSet_FieldsAndPositions(t *testing.T) {
	rs := threeRows(t)
	rec := must(rs.At(2))
	noerr(t, rs.AddField(NewField("ok", KindBoolean), 1))
	deepEqual(t, rs.Format().Names(), []string{"id", "ok", "name"})
	eq(t, rec.Get("ok"), any(nil))
	isErr(t, rs.AddField(NewField("ok", KindString), -1), ErrFieldExists)
	isErr(t, rec.AddField(NewField("x", KindString), -1), ErrReadOnly)

	noerr(t, rs.RemoveFieldAt(0))
	deepEqual(t, rs.Format().Names(), []string{"ok", "name"})
	eq(t, rec.Has("id"), false)
	isErr(t, rs.RemoveField("id"), ErrUnknownField)
}

func TestRecordSet_RecordByID(t *testing.T) {
	rs := threeRows(t)
	eq(t, rs.RecordByID(2).Get("name"), any("b"))
	isnil(t, rs.RecordByID(7))

	rec := rs.RecordByID(2)
	noerr(t, rec.Set("id", 20))
	eq(t, rs.RecordByID(20), rec)
	isnil(t, rs.RecordByID(2))

	_, err := rs.RemoveAt(0)
	noerr(t, err)
	eq(t, rs.IndexByValue("id", 3), 1)

	noerr(t, rs.Add(plainRec(t, map[string]any{"id": 7, "name": "c"}), 0))
	eq(t, rs.RecordByID(7).Get("name"), any("c"))
	deepEqual(t, rs.IndicesByValue("name", "c"), []int{0, 2})

	rs.SetIDProperty("")
	isnil(t, rs.RecordByID(7))
}

func TestRecordSet_ModelIndices(t *testing.T) {
	model := &Model{
		IDProperty: "code",
		Properties: map[string]Property{
			"code": {Get: func(rec *Record, _ any) any { return "C" + rec.Get("name").(string) }},
		},
	}
	rs := must(NewRecordSet(RecordSetOptions{
		RawData: []map[string]any{{"name": "a"}, {"name": "b"}},
		Model:   model,
	}))
	eq(t, rs.IDProperty(), "code")
	eq(t, rs.RecordByID("Cb"), must(rs.At(1)))
}

func TestRecordSet_AcceptChanges(t *testing.T) {
	rs := threeRows(t)
	noerr(t, must(rs.At(0)).Set("name", "A"))
	must(rs.At(1)).SetState(StateDeleted)
	eq(t, rs.IsChanged(), true)
	st := rs.Stats()
	eq(t, st.Changed, 1)
	eq(t, st.Deleted, 1)
	eq(t, st.Pending(), 2)

	log := watch(rs)
	deleted := must(rs.At(1))
	rs.AcceptChanges()
	eq(t, rs.Count(), 2)
	eq(t, rs.IsChanged(), false)
	eq(t, must(rs.At(0)).State(), StateUnchanged)
	eq(t, deleted.State(), StateDetached)
	deepEqual(t, log.actions(), []Action{ActionRemove})
	eq(t, log.events[0].OldIndex, 1)

	must(rs.At(0)).SetState(StateDeleted)
	must(rs.At(1)).SetState(StateDeleted)
	rs.AcceptChanges()
	eq(t, rs.Count(), 0)
	eq(t, log.events[len(log.events)-1].Action, ActionReset)
}

func TestRecordSet_AcceptDeletedRecord(t *testing.T) {
	rs := threeRows(t)
	rec := must(rs.At(1))
	rec.SetState(StateDeleted)
	rec.AcceptChanges()
	eq(t, rs.Count(), 2)
	eq(t, rec.State(), StateDetached)
	isnil(t, rec.Owner())
}

func TestRecordSet_RejectChangesBatched(t *testing.T) {
	rs := plainRS(t,
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
		map[string]any{"id": 3, "name": "c"},
		map[string]any{"id": 4, "name": "d"},
	)
	noerr(t, must(rs.At(0)).Set("name", "x"))
	noerr(t, must(rs.At(1)).Set("name", "y"))

	log := watch(rs)
	rs.RejectChanges()
	eq(t, must(rs.At(0)).Get("name"), any("a"))
	eq(t, must(rs.At(1)).Get("name"), any("b"))
	eq(t, rs.IsChanged(), false)
	deepEqual(t, log.actions(), []Action{ActionChange})
	eq(t, log.events[0].NewIndex, 0)
	eq(t, len(log.events[0].NewItems), 2)
	eq(t, rs.IsEventRaising(), true)
}

func TestRecordSet_SilentMode(t *testing.T) {
	rs := threeRows(t)
	log := watch(rs)

	rs.SetEventRaising(false, false)
	eq(t, rs.IsEventRaising(), false)
	noerr(t, must(rs.At(0)).Set("name", "q"))
	noerr(t, rs.Append(plainRec(t, map[string]any{"id": 4, "name": "d"})))
	rs.SetEventRaising(true, false)
	eq(t, len(log.events), 0)

	rs.SetEventRaising(false, true)
	noerr(t, rs.Move(0, 2))
	rs.SetEventRaising(true, true)
	deepEqual(t, log.actions(), []Action{ActionReset})
	eq(t, len(log.events[0].NewItems), 4)

	rs.SetResetThreshold(0.1)
	rs.SetEventRaising(false, true)
	noerr(t, must(rs.At(3)).Set("name", "w"))
	rs.SetEventRaising(true, true)
	eq(t, log.events[len(log.events)-1].Action, ActionReset)
}

func TestRecordSet_ChangeEvents(t *testing.T) {
	rs := threeRows(t)
	log := watch(rs)
	rec := must(rs.At(2))
	noerr(t, rec.SetMany(map[string]any{"name": "z", "id": 30}))
	deepEqual(t, log.actions(), []Action{ActionChange})
	eq(t, log.events[0].NewIndex, 2)
	eq(t, log.events[0].NewItems[0], rec)
}

func TestRecordSet_Clone(t *testing.T) {
	rs := threeRows(t)
	noerr(t, must(rs.At(0)).Set("name", "A"))

	c := rs.Clone()
	eq(t, c.Count(), 3)
	eq(t, c.IDProperty(), "id")
	crec := must(c.At(0))
	eq(t, crec.State(), StateChanged)
	eq(t, crec.IsChanged("name"), true)

	noerr(t, must(c.At(1)).Set("name", "B"))
	eq(t, must(rs.At(1)).Get("name"), any("b"))

	crec.RejectChanges()
	eq(t, crec.Get("name"), any("a"))
	eq(t, must(rs.At(0)).Get("name"), any("A"))
}

func TestRecordSet_Iteration(t *testing.T) {
	rs := threeRows(t)
	var seen []int
	rs.Each(func(i int, rec *Record) bool {
		seen = append(seen, i)
		return i < 1
	})
	deepEqual(t, seen, []int{0, 1})
	eq(t, len(rs.Records()), 3)
}

func TestRecordSet_ColumnarMetaData(t *testing.T) {
	payload := columnarPayload()
	payload["r"] = float64(42)
	payload["n"] = map[string]any{"s": []any{spec("total", KindInteger)}, "d": []any{float64(8)}}
	payload["p"] = map[string]any{"s": []any{spec("page", KindInteger)}, "d": []any{[]any{float64(1)}, []any{float64(2)}}}

	rs, err := NewRecordSet(RecordSetOptions{Adapter: NewColumnarAdapter(), RawData: payload})
	noerr(t, err)
	eq(t, rs.IDProperty(), "@id")
	eq(t, rs.RecordByID(2).Get("name"), any("pear"))

	meta := rs.MetaData()
	eq(t, meta["r"], any(float64(42)))
	eq(t, meta["n"].(*Record).Get("total"), any(int64(8)))
	eq(t, meta["p"].(*RecordSet).Count(), 2)
	eq(t, rs.MetaData()["n"], meta["n"])
}

func TestRecordSet_ColumnarMutations(t *testing.T) {
	rs := must(NewRecordSet(RecordSetOptions{Adapter: NewColumnarAdapter(), RawData: columnarPayload()}))
	rec := must(rs.At(0))
	noerr(t, rec.Set("qty", "10"))
	eq(t, rs.RawData().(*ColumnarTable).D[0][2], any(int64(10)))
	isErr(t, rec.Set("color", "red"), ErrUnknownField)

	noerr(t, rs.Append(must(NewRecord(RecordOptions{
		Adapter: NewColumnarAdapter(),
		RawData: map[string]any{"s": []any{spec("name", KindString)}, "d": []any{"kiwi"}},
	}))))
	eq(t, rs.Count(), 3)
	eq(t, must(rs.At(2)).Get("name"), any("kiwi"))
	eq(t, must(rs.At(2)).Get("qty"), any(int64(0)))

	removed := must(rs.RemoveAt(0))
	eq(t, removed.Get("qty"), any(int64(10)))
	noerr(t, rs.AddField(NewField("note", KindString), -1))
	eq(t, removed.Has("note"), false)
}

func TestRecordSet_Dump(t *testing.T) {
	rs := plainRS(t,
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
	)
	rs.IndexByValue("id", 1)
	must(rs.At(1))

	st := rs.Stats()
	eq(t, st.Rows, 2)
	eq(t, st.Fields, 2)
	eq(t, st.Indices, 1)
	eq(t, st.IndexValues, 2)
	eq(t, st.IndexEntries, 2)

	s := rs.Dump(DumpAll)
	for _, want := range []string{
		`plain (2 rows, id "id")`,
		`plain.f.0 = id:integer`,
		`plain.0 = (-) {"id":1,"name":"a"}`,
		`plain.1 = (unchanged) {"id":2,"name":"b"}`,
		`plain.i.id (2 values)`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("** dump lacks %q:\n%s", want, s)
		}
	}
	if strings.Contains(rs.Dump(DumpHeader), "plain.0") {
		t.Errorf("** header-only dump has rows")
	}
}

func TestRecordSet_IndicesFollowRandomEdits(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	values := []int{1, 2, 3}
	pick := func() int { return values[rnd.Intn(len(values))] }

	var rows []map[string]any
	for range 8 {
		rows = append(rows, map[string]any{"k": pick()})
	}
	rs := plainRS(t, rows...)
	rs.IndexByValue("k", 1)

	bruteForce := func(v any) []int {
		var res []int
		for i := 0; i < rs.Count(); i++ {
			if IndexKey(must(rs.At(i)).Get("k")) == IndexKey(v) {
				res = append(res, i)
			}
		}
		return res
	}

	for step := range 300 {
		n := rs.Count()
		switch op := rnd.Intn(5); {
		case op == 0 || n == 0:
			noerr(t, rs.Add(plainRec(t, map[string]any{"k": pick()}), rnd.Intn(n+1)))
		case op == 1:
			must(rs.RemoveAt(rnd.Intn(n)))
		case op == 2:
			must(rs.Replace(plainRec(t, map[string]any{"k": pick()}), rnd.Intn(n)))
		case op == 3:
			noerr(t, rs.Move(rnd.Intn(n), rnd.Intn(n)))
		default:
			noerr(t, must(rs.At(rnd.Intn(n))).Set("k", pick()))
		}
		for _, v := range values {
			got := rs.IndicesByValue("k", v)
			if want := bruteForce(v); !slices.Equal(got, want) {
				t.Fatalf("step %d: IndicesByValue(%v) = %v, wanted %v", step, v, got, want)
			}
		}
	}
}
