package kvrows

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStorage marks failures of the underlying key-value engine: I/O,
	// corruption, counter allocation.
	ErrStorage = errors.New("storage failure")

	// ErrEncoding marks failures to serialize or deserialize a schema or a row.
	ErrEncoding = errors.New("encoding failure")

	ErrClosed = errors.New("storage closed")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

// OpError is returned by every adapter operation. Kind is ErrStorage or
// ErrEncoding; both Kind and Err match errors.Is.
type OpError struct {
	Op    string
	Table string
	Key   Key
	Kind  error
	Err   error
}

func storageErr(op, table string, key Key, err error) error {
	return &OpError{Op: op, Table: table, Key: key, Kind: ErrStorage, Err: err}
}

func encodingErr(op, table string, key Key, err error) error {
	return &OpError{Op: op, Table: table, Key: key, Kind: ErrEncoding, Err: err}
}

func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func (e *OpError) Error() string {
	var buf strings.Builder
	buf.WriteString("kvrows: ")
	buf.WriteString(e.Op)
	if e.Key != nil {
		buf.WriteByte(' ')
		buf.WriteString(e.Key.String())
	} else if e.Table != "" {
		buf.WriteByte(' ')
		buf.WriteString(e.Table)
	}
	if e.Kind != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
