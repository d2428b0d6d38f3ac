/*
Package rset implements records and record sets over raw data of several
shapes, with change tracking and value indices.

We implement:

1. Records, single entities with named fields, per-field change tracking,
a state machine and computed properties supplied by a Model.

2. Record sets, ordered collections of records sharing one format. Records
are materialized from raw rows on first access.

3. Adapters, translating field access into operations on raw data. Plain
adapters work with objects and arrays of objects, columnar adapters with
the compact {d, s} encoding, entity adapters with records nested in records.
A copy-on-write adapter wraps any of them.

4. Indexers, mapping property values to sorted positions. An index is built
on first lookup and patched as rows are inserted, removed, replaced and moved.

# Technical Details

**Formats.**
A Format is an ordered list of uniquely named Fields. It is either declared,
inferred from the first row, or a partial declaration merged over the
inferred one: known names are replaced in place, new names are appended.

**Columnar encoding.**
A table is {d: rows, s: specs}. A spec is either a field description
{n, t, ...} or a reference {f: id} to a format described elsewhere in the
same payload. Nested values carry their own {d, s}. References are resolved
by FormatResolver, which walks the payload with an explicit stack and
remembers every format it has seen, so each id is looked up at most once.

**Wire and logical values.**
Plain and columnar rows hold wire values (float64 numbers, strings for
dates and large money). Records cast them to logical values on read
(int64, decimal.Decimal, time.Time, Identity, Enum, Flags) and back on write.
Entity rows hold logical values.

**Change tracking.**
A record remembers the original value of every field changed since the last
AcceptChanges. Setting a field back to its original value clears the change.
Changes of nested records and record sets are propagated to the parent field
and marked as such; rejecting them cascades into the child.

**Notifications.**
Record sets report structural changes as CollectionChange values with an
Action of Add, Remove, Replace, Move, Reset or Change. In silent mode
changes are accumulated and reported once when event raising is restored,
as a Reset when too large a share of the set has changed.

**Serialization.**
Serializer converts a graph of records and record sets into a tree of
plain values: {"$serialized$": "inst", module, id, state} for an instance,
{"$serialized$": "link", id} when the instance was already written, plus
markers for infinities, NaN and Undefined. The tree is encoded as JSON or
msgpack.
*/
package rset
