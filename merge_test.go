package rset

import "testing"

func names(rs *RecordSet) []any {
	var res []any
	for _, rec := range rs.All() {
		res = append(res, rec.Get("name"))
	}
	return res
}

func incoming(t testing.TB) *RecordSet {
	return plainRS(t,
		map[string]any{"id": 2, "name": "B"},
		map[string]any{"id": 3, "name": "c"},
		map[string]any{"id": 4, "name": "d"},
	)
}

func TestMerge_All(t *testing.T) {
	rs := threeRows(t)
	second, third := must(rs.At(1)), must(rs.At(2))
	log := watch(rs)

	noerr(t, rs.Merge(incoming(t), MergeAll))
	deepEqual(t, ids(rs), []any{int64(2), int64(3), int64(4)})
	deepEqual(t, names(rs), []any{"B", "c", "d"})

	if must(rs.At(0)) == second {
		t.Errorf("** replaced record kept its identity")
	}
	isnil(t, second.Owner())
	eq(t, must(rs.At(1)), third)
	eq(t, third.State(), StateUnchanged)
	eq(t, must(rs.At(2)).State(), StateAdded)

	deepEqual(t, log.actions(), []Action{ActionReset})
}

func TestMerge_AddOnly(t *testing.T) {
	rs := threeRows(t)
	noerr(t, rs.Merge(incoming(t), MergeOptions{Add: true}))
	deepEqual(t, ids(rs), []any{int64(1), int64(2), int64(3), int64(4)})
	deepEqual(t, names(rs), []any{"a", "b", "c", "d"})
}

func TestMerge_RemoveOnly(t *testing.T) {
	rs := threeRows(t)
	noerr(t, rs.Merge(incoming(t), MergeOptions{Remove: true}))
	deepEqual(t, names(rs), []any{"b", "c"})
}

func TestMerge_Inject(t *testing.T) {
	rs := threeRows(t)
	second := must(rs.At(1))
	log := watch(rs)

	noerr(t, rs.Merge(incoming(t), MergeOptions{Replace: true, Inject: true}))
	eq(t, must(rs.At(1)), second)
	eq(t, second.Get("name"), any("B"))
	eq(t, second.State(), StateUnchanged)
	deepEqual(t, names(rs), []any{"a", "B", "c"})

	deepEqual(t, log.actions(), []Action{ActionChange})
	eq(t, log.events[0].NewIndex, 1)
}

func TestMerge_InjectDoesNotShareRows(t *testing.T) {
	rs, other := threeRows(t), incoming(t)
	noerr(t, rs.Merge(other, MergeOptions{Replace: true, Inject: true}))
	noerr(t, must(rs.At(1)).Set("name", "mine"))
	eq(t, must(other.At(0)).Get("name"), any("B"))
}

func TestMerge_Errors(t *testing.T) {
	rs := must(NewRecordSet(RecordSetOptions{RawData: []map[string]any{{"id": 1}}}))
	isErr(t, rs.Merge(incoming(t), MergeAll), ErrUnknownField)

	col := must(NewRecordSet(RecordSetOptions{Adapter: NewColumnarAdapter(), RawData: columnarPayload()}))
	isErr(t, threeRows(t).Merge(col, MergeAll), ErrIncompatibleAdapter)

	noerr(t, threeRows(t).Merge(nil, MergeAll))
}

func TestMerge_LargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	rs := plainRS(t, map[string]any{"id": 1, "n": big})
	other := plainRS(t, map[string]any{"id": 1, "n": big + 1})
	noerr(t, rs.Merge(other, MergeAll))
	eq(t, must(rs.At(0)).Get("n"), any(big+1))
}

func TestMerge_InjectImpliesReplace(t *testing.T) {
	rs := threeRows(t)
	second := must(rs.At(1))
	noerr(t, rs.Merge(incoming(t), MergeOptions{Inject: true}))
	eq(t, must(rs.At(1)), second)
	deepEqual(t, names(rs), []any{"a", "B", "c"})

	noerr(t, rs.Merge(incoming(t), MergeOptions{}))
	deepEqual(t, names(rs), []any{"a", "B", "c"})
}
