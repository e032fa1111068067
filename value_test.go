package kvrows

import (
	"errors"
	"math"
	"testing"
	"time"
)

func sampleRow() Row {
	return Row{
		Null(),
		Bool(true),
		Bool(false),
		Int(-42),
		Int(math.MaxInt64),
		Float(3.25),
		Text("héllo"),
		Text(""),
		Bytes([]byte{0, 1, 0xFF}),
		Timestamp(time.Date(2024, 2, 29, 12, 30, 0, 123456789, time.UTC)),
	}
}

func TestValue_roundTrip(t *testing.T) {
	for _, enc := range []encodingMethod{MsgPack, JSON} {
		t.Run(enc.String(), func(t *testing.T) {
			row := sampleRow()
			raw := must(enc.Encode(nil, row))
			var got Row
			ensure(enc.Decode(raw, &got))
			if !got.Equal(row) {
				t.Fatalf("** got %v, wanted %v", got, row)
			}

			schema := must(enc.Encode(nil, usersSchema))
			var s Schema
			ensure(enc.Decode(schema, &s))
			deepEqual(t, &s, usersSchema)
		})
	}
}

func TestValue_nan(t *testing.T) {
	row := Row{Float(math.NaN())}
	var got Row
	ensure(MsgPack.Decode(must(MsgPack.Encode(nil, row)), &got))
	if !got.Equal(row) {
		t.Fatalf("** got %v, wanted NaN", got)
	}
}

func TestValue_msgpackLayout(t *testing.T) {
	deepEqual(t, must(MsgPack.Encode(nil, Null())), x("91 00"))
	deepEqual(t, must(MsgPack.Encode(nil, Int(1))), x("92 02 01"))
	deepEqual(t, must(MsgPack.Encode(nil, Text("a"))), x("92 04 a1 61"))
	deepEqual(t, must(MsgPack.Encode(nil, Row{Bool(true)})), x("91 92 01 c3"))
}

func TestValue_encodingIsDeterministic(t *testing.T) {
	a := must(MsgPack.Encode(nil, sampleRow()))
	b := must(MsgPack.Encode(nil, sampleRow()))
	deepEqual(t, a, b)
}

func TestValue_decodeErrors(t *testing.T) {
	for _, raw := range [][]byte{
		x("c1"),          // reserved msgpack code
		x("91 92 63 00"), // unknown type 99
		x("91 92 00 00"), // null with payload
		x("91 91 02"),    // int without payload
		x("91 91 00 00"), // trailing bytes
	} {
		var row Row
		err := MsgPack.Decode(raw, &row)
		var de *DataError
		if !errors.As(err, &de) {
			t.Errorf("** Decode(%x) = %v, wanted *DataError", raw, err)
		}
	}

	var row Row
	if err := JSON.Decode([]byte(`[{"t":99}]`), &row); err == nil {
		t.Errorf("** JSON decode of unknown type succeeded")
	}
}

func TestValue_accessors(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	deepEqual(t, Timestamp(ts).Time(), ts)
	deepEqual(t, Bool(true).Bool(), true)
	deepEqual(t, Int(5).Bool(), false)
	deepEqual(t, Null().IsNull(), true)
	deepEqual(t, Text("x").Type(), TextType)

	deepEqual(t, Null().String(), "NULL")
	deepEqual(t, Int(-3).String(), "-3")
	deepEqual(t, Text("a b").String(), `"a b"`)
	deepEqual(t, Bytes([]byte{0xAB}).String(), "0xab")

	if Int(1).Equal(Float(1)) {
		t.Errorf("** values of different types compare equal")
	}
	if (Row{Int(1)}).Equal(Row{Int(1), Null()}) {
		t.Errorf("** rows of different length compare equal")
	}
}

func TestParseDataType(t *testing.T) {
	for i := range dataTypeNames {
		typ := DataType(i)
		deepEqual(t, must(ParseDataType(typ.String())), typ)
	}
	if _, err := ParseDataType("decimal"); err == nil {
		t.Errorf("** ParseDataType(decimal) succeeded")
	}
	deepEqual(t, DataType(200).String(), "type(200)")
}

func TestParseEncoding(t *testing.T) {
	deepEqual(t, must(ParseEncoding("")), MsgPack)
	deepEqual(t, must(ParseEncoding("msgpack")), MsgPack)
	deepEqual(t, must(ParseEncoding("json")), JSON)
	if _, err := ParseEncoding("xml"); err == nil {
		t.Errorf("** ParseEncoding(xml) succeeded")
	}
}

func TestSchema_check(t *testing.T) {
	ensure(usersSchema.Check(userRow(1, "a@example.com", "")))
	ensure(usersSchema.Check(userRow(1, "a@example.com", "Alice")))
	if err := usersSchema.Check(Row{Int(1)}); err == nil {
		t.Errorf("** short row passed")
	}
	if err := usersSchema.Check(Row{Int(1), Null(), Null()}); err == nil {
		t.Errorf("** NULL in non-nullable column passed")
	}
	if err := usersSchema.Check(Row{Text("1"), Text("a"), Null()}); err == nil {
		t.Errorf("** mistyped value passed")
	}
	deepEqual(t, usersSchema.ColumnIndex("email"), 1)
	deepEqual(t, usersSchema.ColumnIndex("nope"), -1)
	deepEqual(t, usersSchema.String(), "users[id int email text name text NULL]")
}
