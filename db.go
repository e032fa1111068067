package kvrows

import (
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"
)

// Storage is the handle to an open store. It implements Store and
// StoreMut[*Storage].
//
// Mutation methods hand the handle back alongside their result, including on
// failure, so a chain of mutations reads as
//
//	st, key, err := st.GenerateID("users")
//	st, err = st.InsertData(key, row)
//
// Storage adds no locking of its own; concurrency guarantees are those of the
// backend.
type Storage struct {
	backend     storage
	backendName string
	enc         encodingMethod
	logf        func(format string, args ...any)
	verbose     bool
	logger      *slog.Logger
	metrics     *metrics
}

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
	// Logger receives warnings such as undecodable rows met during scans.
	// Defaults to slog.Default().
	Logger *slog.Logger

	IsTesting bool
	Encoding  encodingMethod

	// Registerer, if set, receives the operation metrics.
	Registerer prometheus.Registerer

	// Bolt only.
	MmapSize int
	Bucket   string

	// Pebble only; nil means the OS filesystem.
	PebbleFS vfs.FS
}

const (
	BoltBackend   = "bolt"
	PebbleBackend = "pebble"
	RedisBackend  = "redis"
	MemoryBackend = "memory"
)

// OpenBolt opens (creating if needed) a Bolt database file.
func OpenBolt(path string, opt Options) (*Storage, error) {
	backend, err := openBoltStorage(path, opt)
	if err != nil {
		return nil, fmt.Errorf("kvrows: %w", err)
	}
	return newStorage(backend, BoltBackend, opt), nil
}

// OpenPebble opens (creating if needed) a Pebble database directory.
func OpenPebble(path string, opt Options) (*Storage, error) {
	backend, err := openPebbleStorage(path, opt)
	if err != nil {
		return nil, fmt.Errorf("kvrows: %w", err)
	}
	return newStorage(backend, PebbleBackend, opt), nil
}

// OpenRedis connects to a Redis server. Mutations that touch several keys,
// like DeleteSchema, are not atomic on this backend.
func OpenRedis(cfg RedisConfig, opt Options) (*Storage, error) {
	backend, err := openRedisStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("kvrows: %w", err)
	}
	return newStorage(backend, RedisBackend, opt), nil
}

// OpenMemory returns a transient store living in process memory.
func OpenMemory(opt Options) *Storage {
	return newStorage(newMemStorage(), MemoryBackend, opt)
}

func newStorage(backend storage, name string, opt Options) *Storage {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logf := opt.Logf
	if logf == nil {
		logf = func(format string, args ...any) {}
	}
	return &Storage{
		backend:     backend,
		backendName: name,
		enc:         opt.Encoding,
		logf:        logf,
		verbose:     opt.Verbose,
		logger:      logger.With("backend", name),
		metrics:     newMetrics(opt.Registerer),
	}
}

func (s *Storage) Backend() string {
	return s.backendName
}

func (s *Storage) Close() error {
	err := s.backend.Close()
	if err != nil {
		return fmt.Errorf("kvrows: closing: %w", err)
	}
	return nil
}
