package kvrows

// storage is an ordered, byte-keyed key-value backend (Bolt, Pebble,
// in-memory, Redis). Keys live in one flat space; the adapter partitions it
// with key prefixes.
type storage interface {
	// BeginTx starts a new transaction. Only one writable transaction may be
	// active at a time; backends block or serialize as needed.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Get retrieves a value by key. Returns nil, nil if not found.
	// The returned slice is only valid until the end of the transaction.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair, overwriting any previous value.
	Put(key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// Cursor returns a cursor for ascending iteration.
	Cursor() storageCursor

	// NextSequence atomically allocates the next value of the store-wide
	// counter. The first value is 1. Writable transactions only.
	NextSequence() (uint64, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple
	// times and after Commit.
	Rollback() error
}

// storageCursor iterates over the keys in ascending byte order.
// Returned slices are only valid until the next cursor call.
type storageCursor interface {
	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)

	// Err reports a failure that ended the iteration early.
	Err() error
}
