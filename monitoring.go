package kvrows

import (
	"bytes"
	"context"
	"log/slog"
	"time"
)

type TableStats struct {
	Rows      int
	KeySize   int
	DataSize  int
	MinID     uint64
	MaxID     uint64
	HasSchema bool
}

func (ts *TableStats) TotalSize() int {
	return ts.KeySize + ts.DataSize
}

// TableStats counts the rows of table and their encoded sizes. Rows are not
// decoded.
func (s *Storage) TableStats(table string) (_ TableStats, err error) {
	const op = "table_stats"
	defer s.observe(op, table, time.Now(), &err)

	var result TableStats
	err = s.view(func(tx storageTx) error {
		raw, err := tx.Get(SchemaKey(table))
		if err != nil {
			return err
		}
		result.HasSchema = raw != nil

		prefix := DataPrefix(table)
		c := tx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			id, ok := Key(k).ID()
			if !ok {
				continue
			}
			if result.Rows == 0 {
				result.MinID = id
			}
			result.MaxID = id
			result.Rows++
			result.KeySize += len(k)
			result.DataSize += len(v)
		}
		return c.Err()
	})
	if err != nil {
		return TableStats{}, storageErr(op, table, nil, err)
	}
	return result, nil
}

// Tables lists the tables that have a schema, in name order.
func (s *Storage) Tables() (_ []string, err error) {
	const op = "tables"
	defer s.observe(op, "", time.Now(), &err)

	var tables []string
	err = s.view(func(tx storageTx) error {
		prefix := []byte(schemaPrefix)
		c := tx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			tables = append(tables, string(k[len(prefix):]))
		}
		return c.Err()
	})
	if err != nil {
		return nil, storageErr(op, "", nil, err)
	}
	return tables, nil
}

// OrphanedTables lists the tables that have rows but no schema. Such rows
// remain when DeleteSchema fails part way on a backend that cannot apply it
// atomically. Keys under data/ that do not parse as data keys are logged and
// skipped.
func (s *Storage) OrphanedTables() (_ []string, err error) {
	const op = "orphaned_tables"
	defer s.observe(op, "", time.Now(), &err)

	var orphans []string
	err = s.view(func(tx storageTx) error {
		root := []byte(dataRootPrefix)
		c := tx.Cursor()
		k, _ := c.Seek(root)
		for k != nil && bytes.HasPrefix(k, root) {
			parts, err := ParseKey(k)
			if err != nil {
				s.logger.LogAttrs(context.Background(), slog.LevelWarn, "kvrows: malformed data key",
					hexAttr("key", k), slog.Any("err", err))
				k, _ = c.Next()
				continue
			}
			schema, err := tx.Get(SchemaKey(parts.Table))
			if err != nil {
				return err
			}
			if schema == nil {
				orphans = append(orphans, parts.Table)
			}
			next := prefixUpperBound(DataPrefix(parts.Table))
			if next == nil {
				break
			}
			k, _ = c.Seek(next)
		}
		return c.Err()
	})
	if err != nil {
		return nil, storageErr(op, "", nil, err)
	}
	return orphans, nil
}
