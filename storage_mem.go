package kvrows

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

type memStorage struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []memKV // sorted by key, never mutated in place
	seq    uint64
	closed bool
	writer bool
}

// newMemStorage returns a transient in-memory storage, used for tests and
// for ephemeral stores.
func newMemStorage() storage {
	s := &memStorage{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, ErrClosed
		}
		s.writer = true
	}

	// Snapshot by reference; a writer copies the slice on its first mutation.
	return &memTx{
		base:     s,
		writable: writable,
		items:    s.items,
		seq:      s.seq,
	}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
	if s.cond != nil {
		s.cond.Broadcast()
	}
	return nil
}

type memKV struct {
	key   []byte
	value []byte
}

type memTx struct {
	base     *memStorage
	writable bool
	items    []memKV
	owned    bool
	seq      uint64
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) checkWritable() error {
	if tx.closed {
		return fmt.Errorf("tx is closed")
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if !tx.owned {
		tx.items = slices.Clone(tx.items)
		tx.owned = true
	}
	return nil
}

func (tx *memTx) find(key []byte) (idx int, ok bool) {
	items := tx.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	if i < len(items) && bytes.Equal(items[i].key, key) {
		return i, true
	}
	return i, false
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, fmt.Errorf("tx is closed")
	}
	i, ok := tx.find(key)
	if !ok {
		return nil, nil
	}
	return tx.items[i].value, nil
}

func (tx *memTx) Put(key, value []byte) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	kv := memKV{key: slices.Clone(key), value: slices.Clone(value)}
	if kv.value == nil {
		kv.value = []byte{}
	}
	i, ok := tx.find(key)
	if ok {
		tx.items[i] = kv
		return nil
	}
	tx.items = slices.Insert(tx.items, i, kv)
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	i, ok := tx.find(key)
	if !ok {
		return nil
	}
	tx.items = slices.Delete(tx.items, i, i+1)
	return nil
}

func (tx *memTx) NextSequence() (uint64, error) {
	if err := tx.checkWritable(); err != nil {
		return 0, err
	}
	tx.seq++
	return tx.seq, nil
}

// Cursor iterates over the items as they were when the cursor was created.
func (tx *memTx) Cursor() storageCursor {
	tx.owned = false
	return &memCursor{items: tx.items, pos: -1}
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return ErrClosed
	}
	tx.base.items = tx.items
	tx.base.seq = tx.seq
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	items := c.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, seek) >= 0
	})
	c.pos = i
	if i >= len(items) {
		return nil, nil
	}
	kv := items[i]
	return kv.key, kv.value
}

func (c *memCursor) Next() ([]byte, []byte) {
	c.pos++
	if c.pos >= len(c.items) {
		c.pos = len(c.items)
		return nil, nil
	}
	kv := c.items[c.pos]
	return kv.key, kv.value
}

func (c *memCursor) Err() error { return nil }
