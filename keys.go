package kvrows

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	schemaPrefix   = "schema/"
	dataRootPrefix = "data/"
	keySep         = '/'

	// idLen is the width of the big-endian row identifier at the end of a data key.
	idLen = 8
)

type KeyKind int

const (
	UnknownKeyKind KeyKind = iota
	SchemaKeyKind
	DataKeyKind
)

func (k KeyKind) String() string {
	switch k {
	case SchemaKeyKind:
		return "schema"
	case DataKeyKind:
		return "data"
	default:
		return "unknown"
	}
}

// Key addresses a value in the underlying store. It is either a schema key
// (`schema/<table>`) or a data key (`data/<table>/<id:8 BE>`).
//
// Table names are not checked for the '/' separator. A table named "a/b"
// shares the `data/a/` prefix with table "a", so scans of "a" would see its
// rows. Callers must not use such names.
type Key []byte

// SchemaKey returns `schema/<table>`.
func SchemaKey(table string) Key {
	buf := make([]byte, 0, len(schemaPrefix)+len(table))
	buf = append(buf, schemaPrefix...)
	buf = append(buf, table...)
	return buf
}

// DataPrefix returns `data/<table>/`, the lower bound and the shared prefix
// of every data key of the table.
func DataPrefix(table string) Key {
	buf := make([]byte, 0, len(dataRootPrefix)+len(table)+1+idLen)
	return appendDataPrefix(buf, table)
}

// DataKey returns `data/<table>/` followed by the big-endian id, so that byte
// order of keys within a table equals numeric order of ids.
func DataKey(table string, id uint64) Key {
	buf := make([]byte, 0, len(dataRootPrefix)+len(table)+1+idLen)
	buf = appendDataPrefix(buf, table)
	return binary.BigEndian.AppendUint64(buf, id)
}

func appendDataPrefix(buf []byte, table string) []byte {
	buf = append(buf, dataRootPrefix...)
	buf = append(buf, table...)
	return append(buf, keySep)
}

type KeyParts struct {
	Kind  KeyKind
	Table string
	ID    uint64
}

// Key re-encodes the parts. It returns nil for UnknownKeyKind, including the
// zero KeyParts.
func (p KeyParts) Key() Key {
	switch p.Kind {
	case SchemaKeyKind:
		return SchemaKey(p.Table)
	case DataKeyKind:
		return DataKey(p.Table, p.ID)
	default:
		return nil
	}
}

// ParseKey splits a raw key into its parts. Data keys are parsed from the
// right, the id having a fixed width.
func ParseKey(raw []byte) (KeyParts, error) {
	if rest, ok := bytes.CutPrefix(raw, []byte(schemaPrefix)); ok {
		return KeyParts{Kind: SchemaKeyKind, Table: string(rest)}, nil
	}
	if rest, ok := bytes.CutPrefix(raw, []byte(dataRootPrefix)); ok {
		n := len(rest)
		if n < idLen+1 || rest[n-idLen-1] != keySep {
			return KeyParts{}, dataErrf(raw, len(dataRootPrefix), nil, "malformed data key")
		}
		return KeyParts{
			Kind:  DataKeyKind,
			Table: string(rest[:n-idLen-1]),
			ID:    binary.BigEndian.Uint64(rest[n-idLen:]),
		}, nil
	}
	return KeyParts{}, dataErrf(raw, 0, nil, "unknown key namespace")
}

func (k Key) Kind() KeyKind {
	p, err := ParseKey(k)
	if err != nil {
		return UnknownKeyKind
	}
	return p.Kind
}

func (k Key) Table() string {
	p, _ := ParseKey(k)
	return p.Table
}

// ID returns the row identifier of a data key.
func (k Key) ID() (uint64, bool) {
	p, err := ParseKey(k)
	if err != nil || p.Kind != DataKeyKind {
		return 0, false
	}
	return p.ID, true
}

func (k Key) Equal(other Key) bool {
	return bytes.Equal(k, other)
}

func (k Key) String() string {
	if k == nil {
		return "<nil>"
	}
	p, err := ParseKey(k)
	if err != nil {
		return strconv.Quote(string(k))
	}
	var buf strings.Builder
	buf.WriteString(p.Kind.String())
	buf.WriteByte(keySep)
	buf.WriteString(p.Table)
	if p.Kind == DataKeyKind {
		buf.WriteString("/#")
		buf.WriteString(strconv.FormatUint(p.ID, 10))
	}
	return buf.String()
}
