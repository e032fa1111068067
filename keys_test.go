package kvrows

import (
	"bytes"
	"errors"
	"testing"
)

func TestSchemaKey(t *testing.T) {
	deepEqual(t, []byte(SchemaKey("users")), []byte("schema/users"))
	deepEqual(t, []byte(SchemaKey("")), []byte("schema/"))
}

func TestDataKey(t *testing.T) {
	deepEqual(t, []byte(DataKey("users", 1)), append([]byte("data/users/"), x("00 00 00 00 00 00 00 01")...))
	deepEqual(t, []byte(DataKey("t", 0x0102030405060708)), append([]byte("data/t/"), x("01 02 03 04 05 06 07 08")...))
	deepEqual(t, []byte(DataPrefix("users")), []byte("data/users/"))

	k := DataKey("users", 42)
	if !bytes.HasPrefix(k, DataPrefix("users")) {
		t.Errorf("** %v does not start with its table prefix", k)
	}
	if bytes.HasPrefix(k, DataPrefix("user")) {
		t.Errorf("** %v starts with the prefix of another table", k)
	}
}

func TestDataKey_order(t *testing.T) {
	ids := []uint64{0, 1, 2, 255, 256, 1 << 32, 1<<64 - 1}
	for i := 1; i < len(ids); i++ {
		a, b := DataKey("t", ids[i-1]), DataKey("t", ids[i])
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("** DataKey(%d) = %x is not below DataKey(%d) = %x", ids[i-1], a, ids[i], b)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		raw  []byte
		want KeyParts
	}{
		{[]byte("schema/users"), KeyParts{Kind: SchemaKeyKind, Table: "users"}},
		{DataKey("users", 7), KeyParts{Kind: DataKeyKind, Table: "users", ID: 7}},
		{DataKey("", 7), KeyParts{Kind: DataKeyKind, Table: "", ID: 7}},
		// The id may itself contain the separator byte.
		{DataKey("t", 0x2f2f2f2f2f2f2f2f), KeyParts{Kind: DataKeyKind, Table: "t", ID: 0x2f2f2f2f2f2f2f2f}},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.raw)
		if err != nil {
			t.Errorf("** ParseKey(%x) failed: %v", tt.raw, err)
			continue
		}
		deepEqual(t, got, tt.want)
		deepEqual(t, []byte(got.Key()), tt.raw)
	}
}

func TestParseKey_errors(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte("other/x"),
		[]byte("data/users"),
		[]byte("data/users/1234"),
		append([]byte("data/users"), x("00 00 00 00 00 00 00 01")...),
	} {
		_, err := ParseKey(raw)
		var de *DataError
		if !errors.As(err, &de) {
			t.Errorf("** ParseKey(%q) = %v, wanted *DataError", raw, err)
		}
	}
}

func TestKey_accessors(t *testing.T) {
	k := DataKey("users", 1)
	deepEqual(t, k.Kind(), DataKeyKind)
	deepEqual(t, k.Table(), "users")
	id, ok := k.ID()
	if !ok || id != 1 {
		t.Errorf("** ID() = (%d, %v), wanted (1, true)", id, ok)
	}
	deepEqual(t, k.String(), "data/users/#1")

	s := SchemaKey("users")
	deepEqual(t, s.Kind(), SchemaKeyKind)
	deepEqual(t, s.String(), "schema/users")
	if _, ok := s.ID(); ok {
		t.Errorf("** schema key has an id")
	}

	deepEqual(t, Key("junk").Kind(), UnknownKeyKind)
	deepEqual(t, Key("junk").String(), `"junk"`)
	deepEqual(t, Key(nil).String(), "<nil>")
	if !k.Equal(DataKey("users", 1)) || k.Equal(DataKey("users", 2)) {
		t.Errorf("** Equal is broken")
	}
}

func TestKeyParts_unknownKind(t *testing.T) {
	if k := (KeyParts{}).Key(); k != nil {
		t.Errorf("** zero KeyParts.Key() = %v, wanted nil", k)
	}
	if k := (KeyParts{Kind: UnknownKeyKind, Table: "t", ID: 1}).Key(); k != nil {
		t.Errorf("** unknown KeyParts.Key() = %v, wanted nil", k)
	}
}
