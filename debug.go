package rset

import (
	"fmt"
	"sort"
	"strings"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndices
	DumpFormat

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var dumpSep2 = strings.Repeat("-", 60)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the record set for debugging. Rows are shown as raw data;
// materialized records also show their state.
func (rs *RecordSet) Dump(f DumpFlags) string {
	var w strings.Builder
	prefix := BaseAdapter(rs.adapter).Kind()
	s := rs.Stats()

	if f.Contains(DumpHeader) {
		fmt.Fprintln(&w, rpadf('=', "%s (%d rows, id %q) ", prefix, s.Rows, rs.idProperty))
	}
	if f.Contains(DumpFormat) {
		for i, fld := range rs.Format().Items() {
			fmt.Fprintf(&w, "%s.f.%d = %s\n", prefix, i, fld)
		}
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(&w, "%s.stats: materialized = %d, added = %d, changed = %d, deleted = %d, indices = %d, index_values = %d\n", prefix, s.Materialized, s.Added, s.Changed, s.Deleted, s.Indices, s.IndexValues)
	}
	if f.Contains(DumpRows) {
		fmt.Fprintln(&w, dumpSep2)
		for i := 0; i < rs.Count(); i++ {
			rs.dumpRow(&w, prefix, i)
		}
	}
	if f.Contains(DumpIndices) {
		props := make([]string, 0, len(rs.indexer.indices))
		for prop := range rs.indexer.indices {
			props = append(props, prop)
		}
		sort.Strings(props)
		for _, prop := range props {
			rs.dumpIndex(&w, prefix, prop)
		}
	}
	return w.String()
}

func (rs *RecordSet) dumpRow(w *strings.Builder, prefix string, i int) {
	row, err := rs.table.At(i)
	if err != nil {
		fmt.Fprintf(w, "%s.%d = ** ERROR: %v\n", prefix, i, err)
		return
	}
	state := "-"
	if rec := rs.slots[i]; rec != nil {
		state = rec.state.String()
	}
	fmt.Fprintf(w, "%s.%d = (%s) %s\n", prefix, i, state, loggableValue(row))
}

func (rs *RecordSet) dumpIndex(w *strings.Builder, prefix, prop string) {
	fmt.Fprintln(w, dumpSep2)
	idx := rs.indexer.indices[prop]
	prefix = prefix + ".i." + prop
	fmt.Fprintf(w, "%s (%d values)\n", prefix, len(idx))
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s => %v\n", prefix, k, idx[k])
	}
}

func rpadf(pad rune, format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	return rpad(s, 80, pad)
}
