package kvrows

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const defaultBoltBucket = "kvrows"

type boltStorage struct {
	bdb    *bbolt.DB
	bucket []byte
}

func openBoltStorage(path string, opt Options) (storage, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		// Readers hold the mmap lock while scans are open; a large initial
		// mapping avoids writers waiting on remap.
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}

	name := opt.Bucket
	if name == "" {
		name = defaultBoltBucket
	}
	s := &boltStorage{bdb: bdb, bucket: []byte(name)}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("bolt: creating bucket %q: %w", name, err)
	}
	return s, nil
}

func (s *boltStorage) BeginTx(writable bool) (storageTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		if err == bbolt.ErrDatabaseNotOpen {
			return nil, ErrClosed
		}
		return nil, err
	}
	b := btx.Bucket(s.bucket)
	if b == nil {
		btx.Rollback()
		return nil, fmt.Errorf("bolt: bucket %q not found", s.bucket)
	}
	return &boltStorageTx{btx: btx, b: b}, nil
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}

type boltStorageTx struct {
	btx *bbolt.Tx
	b   *bbolt.Bucket
}

func (tx *boltStorageTx) Writable() bool { return tx.btx.Writable() }

func (tx *boltStorageTx) Get(key []byte) ([]byte, error) { return tx.b.Get(key), nil }

func (tx *boltStorageTx) Put(key, value []byte) error { return tx.b.Put(key, value) }

func (tx *boltStorageTx) Delete(key []byte) error { return tx.b.Delete(key) }

func (tx *boltStorageTx) Cursor() storageCursor { return boltCursor{c: tx.b.Cursor()} }

func (tx *boltStorageTx) NextSequence() (uint64, error) { return tx.b.NextSequence() }

func (tx *boltStorageTx) Commit() error { return tx.btx.Commit() }

func (tx *boltStorageTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltCursor struct {
	c *bbolt.Cursor
}

func (c boltCursor) Seek(seek []byte) ([]byte, []byte) { return c.c.Seek(seek) }

func (c boltCursor) Next() ([]byte, []byte) { return c.c.Next() }

func (c boltCursor) Err() error { return nil }
