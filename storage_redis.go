package kvrows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix   = "kvrows"
	defaultRedisTimeout  = 5 * time.Second
	redisCursorBatchSize = 256
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL string
	// Prefix namespaces the three Redis keys used by the store.
	Prefix           string
	MaxConns         int
	OperationTimeout time.Duration
}

// redisStorage keeps the ordered key index in a sorted set (all scores 0, so
// members are ordered by raw bytes), values in a hash, and the counter in a
// plain integer key.
//
// Writes are applied immediately; Rollback does not undo them.
type redisStorage struct {
	client  *redis.Client
	timeout time.Duration
	keysKey string
	valsKey string
	seqKey  string
}

func openRedisStorage(cfg RedisConfig) (storage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStorage{
		client:  client,
		timeout: timeout,
		keysKey: prefix + ":keys",
		valsKey: prefix + ":vals",
		seqKey:  prefix + ":seq",
	}, nil
}

func (s *redisStorage) BeginTx(writable bool) (storageTx, error) {
	return &redisTx{s: s, writable: writable}, nil
}

func (s *redisStorage) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func (s *redisStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

type redisTx struct {
	s        *redisStorage
	writable bool
	done     bool
}

func (tx *redisTx) Writable() bool { return tx.writable }

func (tx *redisTx) check(write bool) error {
	if tx.done {
		return fmt.Errorf("tx is closed")
	}
	if write && !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	return nil
}

func (tx *redisTx) Get(key []byte) ([]byte, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	ctx, cancel := tx.s.ctx()
	defer cancel()
	v, err := tx.s.client.HGet(ctx, tx.s.valsKey, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (tx *redisTx) Put(key, value []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	ctx, cancel := tx.s.ctx()
	defer cancel()
	member := string(key)
	_, err := tx.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tx.s.valsKey, member, value)
		pipe.ZAdd(ctx, tx.s.keysKey, redis.Z{Score: 0, Member: member})
		return nil
	})
	return err
}

func (tx *redisTx) Delete(key []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	ctx, cancel := tx.s.ctx()
	defer cancel()
	member := string(key)
	_, err := tx.s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, tx.s.keysKey, member)
		pipe.HDel(ctx, tx.s.valsKey, member)
		return nil
	})
	return err
}

func (tx *redisTx) NextSequence() (uint64, error) {
	if err := tx.check(true); err != nil {
		return 0, err
	}
	ctx, cancel := tx.s.ctx()
	defer cancel()
	return tx.s.client.Incr(ctx, tx.s.seqKey).Uint64()
}

func (tx *redisTx) Cursor() storageCursor {
	return &redisCursor{s: tx.s}
}

func (tx *redisTx) Commit() error {
	tx.done = true
	return nil
}

func (tx *redisTx) Rollback() error {
	tx.done = true
	return nil
}

// redisCursor pages through the sorted set with ZRANGEBYLEX, resuming after
// the last key of the previous page.
type redisCursor struct {
	s    *redisStorage
	page []memKV
	pos  int
	last string
	eof  bool
	err  error
}

func (c *redisCursor) Seek(seek []byte) ([]byte, []byte) {
	c.page, c.pos, c.eof, c.err = nil, 0, false, nil
	c.fetch("[" + string(seek))
	return c.current()
}

func (c *redisCursor) Next() ([]byte, []byte) {
	if c.page == nil {
		return nil, nil
	}
	c.pos++
	if c.pos >= len(c.page) {
		if c.eof {
			c.page = nil
			return nil, nil
		}
		c.fetch("(" + c.last)
	}
	return c.current()
}

func (c *redisCursor) Err() error { return c.err }

func (c *redisCursor) current() ([]byte, []byte) {
	if c.pos >= len(c.page) {
		c.page = nil
		return nil, nil
	}
	kv := c.page[c.pos]
	return kv.key, kv.value
}

func (c *redisCursor) fetch(from string) {
	c.page, c.pos = c.page[:0], 0
	for {
		ctx, cancel := c.s.ctx()
		members, err := c.s.client.ZRangeByLex(ctx, c.s.keysKey, &redis.ZRangeBy{
			Min:   from,
			Max:   "+",
			Count: redisCursorBatchSize,
		}).Result()
		if err != nil {
			cancel()
			c.err = err
			c.eof = true
			return
		}
		if len(members) < redisCursorBatchSize {
			c.eof = true
		}
		if len(members) == 0 {
			cancel()
			return
		}
		c.last = members[len(members)-1]
		values, err := c.s.client.HMGet(ctx, c.s.valsKey, members...).Result()
		cancel()
		if err != nil {
			c.err = err
			c.eof = true
			return
		}
		for i, m := range members {
			// A nil value means the key was deleted between the two calls.
			if v, ok := values[i].(string); ok {
				c.page = append(c.page, memKV{key: []byte(m), value: []byte(v)})
			}
		}
		if len(c.page) > 0 || c.eof {
			return
		}
		from = "(" + c.last
	}
}
