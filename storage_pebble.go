package kvrows

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
)

// pebbleSeqKey holds the store-wide counter. It sorts before and lies outside
// both the schema/ and data/ namespaces.
var (
	pebbleSeqKey        = []byte("\x00seq")
	pebbleUserKeysStart = []byte{0x01}
)

type pebbleStorage struct {
	db      *pebble.DB
	mu      sync.RWMutex
	closed  bool
	writeMu sync.Mutex
}

func openPebbleStorage(path string, opt Options) (storage, error) {
	cache := pebble.NewCache(64 * 1024 * 1024)
	defer cache.Unref()
	popts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                32 * 1024 * 1024,
		MemTableStopWritesThreshold: 4,
	}
	if opt.PebbleFS != nil {
		popts.FS = opt.PebbleFS
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, fmt.Errorf("pebble: %w", err)
	}
	return &pebbleStorage{db: db}, nil
}

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
	Close() error
}

func (s *pebbleStorage) BeginTx(writable bool) (storageTx, error) {
	if writable {
		// Indexed batches do not detect conflicts, so writers take turns.
		s.writeMu.Lock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		if writable {
			s.writeMu.Unlock()
		}
		return nil, ErrClosed
	}
	tx := &pebbleTx{s: s, writable: writable}
	if writable {
		tx.batch = s.db.NewIndexedBatch()
		tx.r = tx.batch
	} else {
		tx.r = s.db.NewSnapshot()
	}
	return tx, nil
}

func (s *pebbleStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type pebbleTx struct {
	s        *pebbleStorage
	writable bool
	batch    *pebble.Batch
	r        pebbleReader
	iters    []*pebble.Iterator
	done     bool
}

func (tx *pebbleTx) Writable() bool { return tx.writable }

func (tx *pebbleTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, fmt.Errorf("tx is closed")
	}
	value, closer, err := tx.r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (tx *pebbleTx) Put(key, value []byte) error {
	if !tx.writable || tx.done {
		return fmt.Errorf("tx not writable")
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *pebbleTx) Delete(key []byte) error {
	if !tx.writable || tx.done {
		return fmt.Errorf("tx not writable")
	}
	return tx.batch.Delete(key, nil)
}

func (tx *pebbleTx) NextSequence() (uint64, error) {
	if !tx.writable || tx.done {
		return 0, fmt.Errorf("tx not writable")
	}
	raw, err := tx.Get(pebbleSeqKey)
	if err != nil {
		return 0, err
	}
	var seq uint64
	if raw != nil {
		if len(raw) != 8 {
			return 0, dataErrf(raw, 0, nil, "invalid sequence value")
		}
		seq = binary.BigEndian.Uint64(raw)
	}
	seq++
	err = tx.batch.Set(pebbleSeqKey, binary.BigEndian.AppendUint64(nil, seq), nil)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Cursor only sees the schema/ and data/ key space, never the counter.
func (tx *pebbleTx) Cursor() storageCursor {
	c := &pebbleCursor{}
	if tx.done {
		c.err = fmt.Errorf("tx is closed")
		return c
	}
	iter, err := tx.r.NewIter(&pebble.IterOptions{
		LowerBound: pebbleUserKeysStart,
	})
	if err != nil {
		c.err = fmt.Errorf("pebble: creating iterator: %w", err)
		return c
	}
	tx.iters = append(tx.iters, iter)
	c.iter = iter
	return c
}

func (tx *pebbleTx) finish() error {
	if tx.done {
		return nil
	}
	tx.done = true
	var errs []error
	for _, iter := range tx.iters {
		errs = append(errs, iter.Close())
	}
	tx.iters = nil
	errs = append(errs, tx.r.Close())
	if tx.writable {
		tx.s.writeMu.Unlock()
	}
	return errors.Join(errs...)
}

func (tx *pebbleTx) Commit() error {
	if tx.done {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	for _, iter := range tx.iters {
		iter.Close()
	}
	tx.iters = nil
	err := tx.batch.Commit(pebble.Sync)
	return errors.Join(err, tx.finish())
}

func (tx *pebbleTx) Rollback() error {
	return tx.finish()
}

type pebbleCursor struct {
	iter *pebble.Iterator
	err  error
}

func (c *pebbleCursor) current(ok bool) ([]byte, []byte) {
	if !ok {
		if err := c.iter.Error(); err != nil {
			c.err = err
		}
		return nil, nil
	}
	val, err := c.iter.ValueAndErr()
	if err != nil {
		c.err = fmt.Errorf("pebble: reading value: %w", err)
		return nil, nil
	}
	return c.iter.Key(), val
}

func (c *pebbleCursor) Seek(seek []byte) ([]byte, []byte) {
	if c.iter == nil {
		return nil, nil
	}
	return c.current(c.iter.SeekGE(seek))
}

func (c *pebbleCursor) Next() ([]byte, []byte) {
	if c.iter == nil || !c.iter.Valid() {
		return nil, nil
	}
	return c.current(c.iter.Next())
}

func (c *pebbleCursor) Err() error { return c.err }
