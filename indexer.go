package rset

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Indexer maps field values to the positions holding them, per field. An
// index is built on the first query for its field and then patched by the
// maintenance calls, which the owner must make after every structural
// change of the sequence.
//
// Positions in every bucket are kept sorted.
type Indexer struct {
	count   func() int
	value   func(i int, prop string) any
	indices map[string]map[string][]int
	logger  *slog.Logger
}

// NewIndexer returns an indexer over a sequence of count() items, reading
// item i's property through value.
func NewIndexer(count func() int, value func(i int, prop string) any) *Indexer {
	return &Indexer{
		count:   count,
		value:   value,
		indices: make(map[string]map[string][]int),
	}
}

func (ix *Indexer) log() *slog.Logger { return loggerOr(ix.logger) }

// IndexByValue returns the first position whose prop equals value, or -1.
func (ix *Indexer) IndexByValue(prop string, value any) int {
	bucket := ix.index(prop)[IndexKey(value)]
	if len(bucket) == 0 {
		return -1
	}
	return bucket[0]
}

// IndicesByValue returns all positions whose prop equals value, ascending.
func (ix *Indexer) IndicesByValue(prop string, value any) []int {
	return slices.Clone(ix.index(prop)[IndexKey(value)])
}

// IsBuilt reports whether the index for prop exists.
func (ix *Indexer) IsBuilt(prop string) bool {
	_, ok := ix.indices[prop]
	return ok
}

// ResetIndex drops all indices; they are rebuilt on the next query.
func (ix *Indexer) ResetIndex() {
	clear(ix.indices)
}

// ResetProperty drops the index for one field.
func (ix *Indexer) ResetProperty(prop string) {
	delete(ix.indices, prop)
}

func (ix *Indexer) index(prop string) map[string][]int {
	idx, ok := ix.indices[prop]
	if !ok {
		n := ix.count()
		idx = make(map[string][]int)
		for i := 0; i < n; i++ {
			key := IndexKey(ix.value(i, prop))
			idx[key] = append(idx[key], i)
		}
		ix.indices[prop] = idx
		ix.log().Debug("rset: index built", "prop", prop, "rows", n, "values", len(idx))
	}
	return idx
}

// UpdateIndex adds positions start..start+count-1 to every built index,
// reading their current values.
func (ix *Indexer) UpdateIndex(start, count int) {
	for prop, idx := range ix.indices {
		for i := start; i < start+count; i++ {
			key := IndexKey(ix.value(i, prop))
			bucket := idx[key]
			at, found := slices.BinarySearch(bucket, i)
			if !found {
				idx[key] = slices.Insert(bucket, at, i)
			}
		}
	}
}

// ShiftIndex adds offset to every indexed position in start..start+count-1.
func (ix *Indexer) ShiftIndex(start, count, offset int) {
	if offset == 0 || count <= 0 {
		return
	}
	end := start + count
	for _, idx := range ix.indices {
		for key, bucket := range idx {
			shifted := false
			for j, pos := range bucket {
				if pos >= start && pos < end {
					bucket[j] = pos + offset
					shifted = true
				}
			}
			if shifted && !sort.IntsAreSorted(bucket) {
				sort.Ints(bucket)
			}
			idx[key] = bucket
		}
	}
}

// RemoveFromIndex removes positions start..start+count-1 from every built
// index.
func (ix *Indexer) RemoveFromIndex(start, count int) {
	if count <= 0 {
		return
	}
	end := start + count
	for _, idx := range ix.indices {
		for key, bucket := range idx {
			lo, _ := slices.BinarySearch(bucket, start)
			hi, _ := slices.BinarySearch(bucket, end)
			if lo == hi {
				continue
			}
			bucket = slices.Delete(bucket, lo, hi)
			if len(bucket) == 0 {
				delete(idx, key)
			} else {
				idx[key] = bucket
			}
		}
	}
}

// Inserted patches indices after n items were inserted at position at.
// Call it once the sequence already holds the new items.
func (ix *Indexer) Inserted(at, n int) {
	if len(ix.indices) == 0 || n <= 0 {
		return
	}
	oldCount := ix.count() - n
	ix.ShiftIndex(at, oldCount-at, n)
	ix.UpdateIndex(at, n)
}

// Removed patches indices after n items were removed from position at.
func (ix *Indexer) Removed(at, n int) {
	if len(ix.indices) == 0 || n <= 0 {
		return
	}
	oldCount := ix.count() + n
	ix.RemoveFromIndex(at, n)
	ix.ShiftIndex(at+n, oldCount-at-n, -n)
}

// Replaced patches indices after items at..at+n-1 got new values.
func (ix *Indexer) Replaced(at, n int) {
	if len(ix.indices) == 0 || n <= 0 {
		return
	}
	ix.RemoveFromIndex(at, n)
	ix.UpdateIndex(at, n)
}

// Moved patches indices after the item at from moved to to.
func (ix *Indexer) Moved(from, to int) {
	if len(ix.indices) == 0 || from == to {
		return
	}
	ix.RemoveFromIndex(from, 1)
	if from < to {
		ix.ShiftIndex(from+1, to-from, -1)
	} else {
		ix.ShiftIndex(to, from-to, 1)
	}
	ix.UpdateIndex(to, 1)
}

// IndexKey returns the bucket key of a value. Numbers are keyed by numeric
// value, so 1, int64(1) and 1.0 share a bucket while "1" does not. Strings
// and map keys are quoted. Arrays key as [a,b,c] and maps as {"k":v} with
// sorted keys, so structurally equal values share one.
func IndexKey(v any) string {
	buf := keyBytesPool.Get().([]byte)
	buf = appendIndexKey(buf, v)
	s := string(buf)
	releaseKeyBytes(buf)
	return s
}

func appendIndexKey(buf []byte, v any) []byte {
	switch v := v.(type) {
	case nil:
		return append(buf, "null"...)
	case string:
		return strconv.AppendQuote(buf, v)
	case bool:
		return strconv.AppendBool(buf, v)
	case int:
		return strconv.AppendInt(buf, int64(v), 10)
	case int64:
		return strconv.AppendInt(buf, v, 10)
	case int32:
		return strconv.AppendInt(buf, int64(v), 10)
	case uint64:
		return strconv.AppendUint(buf, v, 10)
	case float64:
		return appendFloatKey(buf, v)
	case float32:
		return appendFloatKey(buf, float64(v))
	case decimal.Decimal:
		return append(buf, v.String()...)
	case time.Time:
		return v.UTC().AppendFormat(buf, time.RFC3339Nano)
	case time.Duration:
		return append(buf, formatISODuration(v)...)
	case uuid.UUID:
		return append(buf, v.String()...)
	case []byte:
		buf = append(buf, 'x')
		return hex.AppendEncode(buf, v)
	case Identity:
		return appendIndexKey(buf, v.Value)
	case Enum:
		return append(buf, v.Key...)
	case *Record, *RecordSet:
		return fmt.Appendf(buf, "&%p", v)
	case []any:
		buf = append(buf, '[')
		for i, x := range v {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendIndexKey(buf, x)
		}
		return append(buf, ']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendQuote(buf, k)
			buf = append(buf, ':')
			buf = appendIndexKey(buf, v[k])
		}
		return append(buf, '}')
	case Flags:
		m := make(map[string]any, len(v))
		for k, b := range v {
			m[k] = b
		}
		return appendIndexKey(buf, m)
	}
	if n, ok := toInt64(v); ok {
		return strconv.AppendInt(buf, n, 10)
	}
	if f, ok := toFloat(v); ok {
		return appendFloatKey(buf, f)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		items, _ := asAnySlice(v)
		return appendIndexKey(buf, items)
	}
	return fmt.Append(buf, v)
}

func appendFloatKey(buf []byte, f float64) []byte {
	if n, ok := floatToInt64(f); ok {
		return strconv.AppendInt(buf, n, 10)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64)
}
