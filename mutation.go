package kvrows

import (
	"bytes"
	"errors"
	"slices"
	"time"
)

const deleteBatchSize = 1024

// GenerateID allocates the next store-wide identifier and returns the data
// key for it under table. Identifiers are never reused, even across tables
// or after a table is deleted.
func (s *Storage) GenerateID(table string) (_ *Storage, key Key, err error) {
	const op = "generate_id"
	defer s.observe(op, table, time.Now(), &err)

	var id uint64
	err = s.update(func(tx storageTx) error {
		var err error
		id, err = tx.NextSequence()
		return err
	})
	if err != nil {
		return s, nil, storageErr(op, table, nil, err)
	}
	return s, DataKey(table, id), nil
}

// InsertSchema stores schema under SchemaKey(schema.TableName), replacing
// any previous schema of that table.
func (s *Storage) InsertSchema(schema *Schema) (_ *Storage, err error) {
	const op = "insert_schema"
	var table string
	if schema != nil {
		table = schema.TableName
	}
	defer s.observe(op, table, time.Now(), &err)
	if schema == nil {
		return s, encodingErr(op, "", nil, errors.New("nil schema"))
	}

	key := SchemaKey(table)
	value, err := s.enc.Encode(valueBytesPool.Get().([]byte), schema)
	if err != nil {
		return s, encodingErr(op, table, key, err)
	}
	defer releaseValueBytes(value)
	err = s.update(func(tx storageTx) error {
		return tx.Put(key, value)
	})
	if err != nil {
		return s, storageErr(op, table, key, err)
	}
	return s, nil
}

// DeleteSchema removes every row of table and then its schema. Deleting a
// table that does not exist succeeds.
//
// On backends without multi-key transactions (Redis) a failure part way
// leaves rows without a schema; OrphanedTables finds them.
func (s *Storage) DeleteSchema(table string) (_ *Storage, err error) {
	const op = "delete_schema"
	defer s.observe(op, table, time.Now(), &err)

	var removed int
	err = s.update(func(tx storageTx) error {
		var err error
		removed, err = deletePrefix(tx, DataPrefix(table))
		if err != nil {
			return err
		}
		return tx.Delete(SchemaKey(table))
	})
	if err != nil {
		return s, storageErr(op, table, nil, err)
	}
	if s.verbose {
		s.logf("kvrows: %s %s removed %d rows", op, table, removed)
	}
	return s, nil
}

// deletePrefix removes all keys starting with prefix. Keys are collected in
// batches before deletion, never deleted under a live cursor.
func deletePrefix(tx storageTx, prefix []byte) (int, error) {
	var total int
	keys := arrayOfBytesPool.Get().([][]byte)
	defer func() { releaseArrayOfBytes(keys) }()
	for {
		keys = keys[:0]
		c := tx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, slices.Clone(k))
			if len(keys) == deleteBatchSize {
				break
			}
		}
		if err := c.Err(); err != nil {
			return total, err
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return total, err
			}
		}
		total += len(keys)
		if len(keys) < deleteBatchSize {
			return total, nil
		}
	}
}

// InsertData stores row at key, overwriting any existing row.
func (s *Storage) InsertData(key Key, row Row) (_ *Storage, err error) {
	const op = "insert_data"
	defer s.observe(op, "", time.Now(), &err)

	value, err := s.enc.Encode(valueBytesPool.Get().([]byte), row)
	if err != nil {
		return s, encodingErr(op, "", key, err)
	}
	defer releaseValueBytes(value)
	err = s.update(func(tx storageTx) error {
		return tx.Put(key, value)
	})
	if err != nil {
		return s, storageErr(op, "", key, err)
	}
	return s, nil
}

// DeleteData removes the row at key. Removing an absent key succeeds.
func (s *Storage) DeleteData(key Key) (_ *Storage, err error) {
	const op = "delete_data"
	defer s.observe(op, "", time.Now(), &err)

	err = s.update(func(tx storageTx) error {
		return tx.Delete(key)
	})
	if err != nil {
		return s, storageErr(op, "", key, err)
	}
	return s, nil
}
