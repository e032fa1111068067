package kvrows

import (
	"fmt"
	"runtime/debug"
	"time"
)

// update runs f in one writable backend transaction and commits it. Each
// adapter mutation is exactly one call, so durability is per call.
func (s *Storage) update(f func(tx storageTx) error) error {
	stx, err := s.backend.BeginTx(true)
	if err != nil {
		return err
	}
	defer stx.Rollback()
	err = safelyCall(f, stx)
	if err != nil {
		return err
	}
	return stx.Commit()
}

func (s *Storage) view(f func(tx storageTx) error) error {
	stx, err := s.backend.BeginTx(false)
	if err != nil {
		return err
	}
	defer stx.Rollback()
	return safelyCall(f, stx)
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(storageTx) error, tx storageTx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

// observe records the outcome of one adapter call. Use with a named error
// result: defer s.observe(op, table, time.Now(), &err).
func (s *Storage) observe(op, table string, start time.Time, errp *error) {
	err := *errp
	s.metrics.observe(op, start, err)
	if s.verbose {
		if err != nil {
			s.logf("kvrows: %s %s failed in %v: %v", op, table, time.Since(start), err)
		} else {
			s.logf("kvrows: %s %s done in %v", op, table, time.Since(start))
		}
	}
}
