package rset

import "fmt"

// MergeOptions select what Merge does with records matched by ID.
type MergeOptions struct {
	// Add appends records of the other set missing from this one.
	Add bool
	// Remove drops records missing from the other set.
	Remove bool
	// Replace updates records present in both sets that differ.
	Replace bool
	// Inject updates records present in both sets by overwriting raw data
	// in place, so the existing *Record values stay in the set. It implies
	// Replace. Without it Replace swaps in copies of the other set's records.
	Inject bool
}

// The zero MergeOptions touches nothing; MergeAll is the usual choice.

// MergeAll adds, removes and replaces.
var MergeAll = MergeOptions{Add: true, Remove: true, Replace: true}

// Merge brings this set in line with other, matching records by the ID
// property. Subscribers receive one notification for the whole merge.
func (rs *RecordSet) Merge(other *RecordSet, opts MergeOptions) error {
	if other == nil {
		return nil
	}
	if !Compatible(other.adapter, rs.adapter) {
		return dataErrf(rs.adapter.Kind(), nil, ErrIncompatibleAdapter, "cannot merge %s records", other.adapter.Kind())
	}
	key := rs.idProperty
	if key == "" {
		return fieldErrf("recordset", "", ErrUnknownField, "merge needs an id property")
	}
	otherKey := other.idProperty
	if otherKey == "" {
		otherKey = key
	}

	incoming := make(map[string]bool, other.Count())
	for i := 0; i < other.Count(); i++ {
		incoming[IndexKey(other.indexValue(i, otherKey))] = true
	}

	var err error
	rs.batch(func() {
		if opts.Remove {
			for i := rs.Count() - 1; i >= 0; i-- {
				if !incoming[IndexKey(rs.indexValue(i, key))] {
					if _, err = rs.RemoveAt(i); err != nil {
						return
					}
				}
			}
		}
		var missing []*Record
		for _, orec := range other.All() {
			i := rs.IndexByValue(key, orec.Get(otherKey))
			switch {
			case i < 0:
				if opts.Add {
					missing = append(missing, orec)
				}
			case opts.Replace || opts.Inject:
				rec := must(rs.At(i))
				if rs.sameValues(rec, orec) {
					continue
				}
				if opts.Inject {
					err = rs.inject(i, orec)
				} else {
					_, err = rs.Replace(orec, i)
				}
				if err != nil {
					return
				}
			}
		}
		if len(missing) > 0 {
			err = rs.Append(missing...)
		}
	})
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

// sameValues compares two records over this set's format.
func (rs *RecordSet) sameValues(a, b *Record) bool {
	for _, name := range rs.Format().Names() {
		if a.Has(name) != b.Has(name) {
			return false
		}
		if !valuesEqual(a.Get(name), b.Get(name)) {
			return false
		}
	}
	return true
}

// inject overwrites the row at i with donor's values. The record at i
// keeps its identity and state.
func (rs *RecordSet) inject(i int, donor *Record) error {
	row, err := rs.project(donor)
	if err != nil {
		return err
	}
	if donor.owner != nil {
		row = DeepCopy(row)
	}
	if err := rs.table.Replace(row, i); err != nil {
		return err
	}
	if rec := rs.slots[i]; rec != nil {
		rec.forgetAll()
	}
	rs.indexer.Replaced(i, 1)
	rec := must(rs.At(i))
	rs.events.emit(CollectionChange[*Record]{
		Action:   ActionChange,
		NewItems: []*Record{rec},
		NewIndex: i,
		OldItems: []*Record{rec},
		OldIndex: i,
	})
	return nil
}
