package kvrows

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"slices"
	"time"
)

// FetchSchema returns the schema stored for table, or nil with a nil error if
// the table has none.
func (s *Storage) FetchSchema(table string) (_ *Schema, err error) {
	const op = "fetch_schema"
	defer s.observe(op, table, time.Now(), &err)

	key := SchemaKey(table)
	var raw []byte
	err = s.view(func(tx storageTx) error {
		v, err := tx.Get(key)
		raw = slices.Clone(v)
		return err
	})
	if err != nil {
		return nil, storageErr(op, table, key, err)
	}
	if raw == nil {
		return nil, nil
	}
	schema := new(Schema)
	err = s.enc.Decode(raw, schema)
	if err != nil {
		return nil, encodingErr(op, table, key, err)
	}
	return schema, nil
}

const scanOp = "scan_data"

// ScanData returns a lazy cursor over the rows of table in ascending key
// (and therefore id) order. Nothing is read until the first Next.
//
// The cursor holds a read transaction open until it is exhausted or closed.
// On the Bolt backend, close it before issuing large writes from the same
// goroutine, since a growing file waits for readers to finish.
func (s *Storage) ScanData(table string) RowIter {
	return &RowCursor{
		s:      s,
		table:  table,
		prefix: DataPrefix(table),
	}
}

// RowCursor is the RowIter returned by Storage.ScanData.
//
// After Next returns true, Err reports whether that element's row could be
// decoded; Key is always valid. After Next returns false, Err reports the
// error that stopped the scan, if any. A cursor cannot be restarted.
type RowCursor struct {
	s      *Storage
	table  string
	prefix []byte

	tx      storageTx
	c       storageCursor
	start   time.Time
	started bool
	done    bool

	key Key
	row Row
	err error
}

var _ RowIter = (*RowCursor)(nil)

func (rc *RowCursor) Next() bool {
	if rc.done {
		return false
	}
	rc.key, rc.row, rc.err = nil, nil, nil

	var k, v []byte
	if !rc.started {
		rc.started = true
		rc.start = time.Now()
		tx, err := rc.s.backend.BeginTx(false)
		if err != nil {
			rc.end(err)
			return false
		}
		rc.tx = tx
		rc.c = tx.Cursor()
		k, v = rc.c.Seek(rc.prefix)
	} else {
		k, v = rc.c.Next()
	}

	if k == nil || !bytes.HasPrefix(k, rc.prefix) {
		rc.end(rc.c.Err())
		return false
	}

	rc.key = Key(slices.Clone(k))
	var row Row
	if err := rc.s.enc.Decode(v, &row); err != nil {
		rc.err = encodingErr(scanOp, rc.table, rc.key, err)
		rc.s.logger.LogAttrs(context.Background(), slog.LevelWarn, "kvrows: undecodable row",
			slog.String("table", rc.table), hexAttr("key", k), slog.Any("err", err))
	} else {
		rc.row = row
	}
	rc.s.metrics.scannedRows.Inc()
	return true
}

// end stops the scan at the end of the table or on a storage error.
func (rc *RowCursor) end(err error) {
	if err != nil {
		rc.err = storageErr(scanOp, rc.table, nil, err)
	}
	rc.s.metrics.observe(scanOp, rc.start, rc.err)
	if rc.s.verbose {
		rc.s.logf("kvrows: %s %s ended after %v: err=%v", scanOp, rc.table, time.Since(rc.start), rc.err)
	}
	rc.finish()
}

func (rc *RowCursor) finish() {
	rc.done = true
	if rc.tx != nil {
		rc.tx.Rollback()
		rc.tx, rc.c = nil, nil
	}
}

// Key returns the key of the current element.
func (rc *RowCursor) Key() Key { return rc.key }

// Row returns the decoded row of the current element, or nil if Err is set.
func (rc *RowCursor) Row() Row { return rc.row }

func (rc *RowCursor) Err() error { return rc.err }

// Close releases the read transaction. It is safe to call more than once and
// after the cursor is exhausted.
func (rc *RowCursor) Close() error {
	if rc.done {
		return nil
	}
	rc.key, rc.row, rc.err = nil, nil, nil
	if rc.started {
		rc.end(nil)
		return nil
	}
	rc.started = true
	rc.finish()
	return nil
}

// Entry is one element of a scan.
type Entry struct {
	Key Key
	Row Row
}

// Entries adapts a RowIter to a range-over-func sequence. Per-element decode
// errors are yielded alongside the key and do not end the sequence; a
// terminal error is yielded last with a zero Entry. The iterator is closed
// when the loop ends.
func Entries(it RowIter) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		defer it.Close()
		for it.Next() {
			if !yield(Entry{Key: it.Key(), Row: it.Row()}, it.Err()) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Entry{}, err)
		}
	}
}

// CollectEntries drains it and returns all entries, stopping at the first
// error of any kind.
func CollectEntries(it RowIter) ([]Entry, error) {
	var result []Entry
	for e, err := range Entries(it) {
		if err != nil {
			return result, err
		}
		result = append(result, e)
	}
	return result, nil
}
