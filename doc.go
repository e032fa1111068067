/*
Package kvrows stores table schemas and rows of a row-oriented query engine in
a single ordered byte-keyed key-value store.

The engine sees two contracts: Store for reads and StoreMut for writes.
Storage implements both on top of Bolt, Pebble, Redis, or process memory.

# Technical Details

**Key space.**
One flat key space holds every table. There are two namespaces:

1. Schema key: "schema/" + table name. Value is the encoded Schema.

2. Data key: "data/" + table name + "/" + 8-byte big-endian row id. Value is
the encoded Row.

Byte order of data keys within a table equals numeric order of ids, so a
prefix scan over "data/<table>/" returns rows in id order.
Table names are not validated; a name containing "/" breaks prefix isolation.

**Identifiers.**
Ids come from a single store-wide counter. They are never reused, even when
a table is deleted and recreated.

**Backends.**
Bolt keeps every key in one bucket and uses the bucket sequence as the counter.
Pebble keeps the keys as is, with the counter under a reserved key below the
"data/" and "schema/" ranges. Redis keeps keys in a sorted set with equal
scores (so members sort by bytes), values in a hash, and the counter in a
separate key.

**Deleting a table** removes its rows in batches and then the schema record,
within one write transaction. Redis has no such transaction; an interrupted
delete leaves rows without a schema, which Storage.OrphanedTables reports.

## Value encoding

Values are msgpack by default (JSON is available for debugging).
A Value is encoded as [type] for NULL and [type, payload] otherwise.
*/
package kvrows
