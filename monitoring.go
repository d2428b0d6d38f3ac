package rset

import (
	"encoding/json"
	"fmt"
)

type RecordSetStats struct {
	Rows         int
	Materialized int
	Fields       int

	Added     int
	Changed   int
	Deleted   int
	Unchanged int

	Indices      int
	IndexValues  int
	IndexEntries int
}

// Pending returns the number of records with unaccepted state.
func (st *RecordSetStats) Pending() int {
	return st.Added + st.Changed + st.Deleted
}

func (rs *RecordSet) Stats() RecordSetStats {
	result := RecordSetStats{
		Rows:   rs.Count(),
		Fields: rs.Format().Count(),
	}
	for _, rec := range rs.slots {
		if rec == nil {
			result.Unchanged++
			continue
		}
		result.Materialized++
		switch rec.state {
		case StateAdded:
			result.Added++
		case StateChanged:
			result.Changed++
		case StateDeleted:
			result.Deleted++
		default:
			result.Unchanged++
		}
	}
	for _, idx := range rs.indexer.indices {
		result.Indices++
		result.IndexValues += len(idx)
		for _, positions := range idx {
			result.IndexEntries += len(positions)
		}
	}
	return result
}

func loggableValue(v any) string {
	if v == nil {
		return "<none>"
	}
	raw, err := json.Marshal(wireValue(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
