package kvrows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type DataType uint8

const (
	NullType DataType = iota
	BoolType
	IntType
	FloatType
	TextType
	BytesType
	TimestampType
)

var dataTypeNames = [...]string{
	NullType:      "null",
	BoolType:      "bool",
	IntType:       "int",
	FloatType:     "float",
	TextType:      "text",
	BytesType:     "bytes",
	TimestampType: "timestamp",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

func (t DataType) valid() bool {
	return int(t) < len(dataTypeNames)
}

func ParseDataType(s string) (DataType, error) {
	for i, name := range dataTypeNames {
		if name == s {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// Value is one column value of a row. The zero Value is NULL.
//
// Bool and Timestamp (UTC unix nanoseconds) share the integer slot.
type Value struct {
	typ DataType
	i   int64
	f   float64
	s   string
	b   []byte
}

// Row is an ordered sequence of column values belonging to one table.
type Row []Value

func Null() Value                 { return Value{} }
func Bool(v bool) Value           { return Value{typ: BoolType, i: boolInt(v)} }
func Int(v int64) Value           { return Value{typ: IntType, i: v} }
func Float(v float64) Value       { return Value{typ: FloatType, f: v} }
func Text(v string) Value         { return Value{typ: TextType, s: v} }
func Bytes(v []byte) Value        { return Value{typ: BytesType, b: v} }
func Timestamp(t time.Time) Value { return Value{typ: TimestampType, i: t.UnixNano()} }

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (v Value) Type() DataType { return v.typ }
func (v Value) IsNull() bool   { return v.typ == NullType }

func (v Value) Bool() bool       { return v.typ == BoolType && v.i != 0 }
func (v Value) Int() int64       { return v.i }
func (v Value) Float() float64   { return v.f }
func (v Value) Text() string     { return v.s }
func (v Value) BytesVal() []byte { return v.b }

func (v Value) Time() time.Time {
	return time.Unix(0, v.i).UTC()
}

func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case NullType:
		return true
	case BoolType, IntType, TimestampType:
		return v.i == o.i
	case FloatType:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case TextType:
		return v.s == o.s
	case BytesType:
		return bytes.Equal(v.b, o.b)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.typ {
	case NullType:
		return "NULL"
	case BoolType:
		return strconv.FormatBool(v.Bool())
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case FloatType:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TextType:
		return strconv.Quote(v.s)
	case BytesType:
		return "0x" + hexstr(v.b)
	case TimestampType:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.typ.String()
	}
}

func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

var (
	_ msgpack.CustomEncoder = Value{}
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes [type] for NULL and [type, payload] otherwise.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if v.typ == NullType {
		if err := enc.EncodeArrayLen(1); err != nil {
			return err
		}
		return enc.EncodeUint(uint64(NullType))
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint(uint64(v.typ)); err != nil {
		return err
	}
	switch v.typ {
	case BoolType:
		return enc.EncodeBool(v.i != 0)
	case IntType, TimestampType:
		return enc.EncodeInt(v.i)
	case FloatType:
		return enc.EncodeFloat64(v.f)
	case TextType:
		return enc.EncodeString(v.s)
	case BytesType:
		return enc.EncodeBytes(v.b)
	default:
		return fmt.Errorf("cannot encode value of %v", v.typ)
	}
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n < 1 || n > 2 {
		return fmt.Errorf("value: invalid array length %d", n)
	}
	t, err := dec.DecodeUint()
	if err != nil {
		return err
	}
	typ := DataType(t)
	if t > math.MaxUint8 || !typ.valid() {
		return fmt.Errorf("value: unknown type %d", t)
	}
	*v = Value{typ: typ}
	if typ == NullType {
		if n != 1 {
			return fmt.Errorf("value: null with payload")
		}
		return nil
	}
	if n != 2 {
		return fmt.Errorf("value: %v without payload", typ)
	}
	switch typ {
	case BoolType:
		b, err := dec.DecodeBool()
		v.i = boolInt(b)
		return err
	case IntType, TimestampType:
		v.i, err = dec.DecodeInt64()
		return err
	case FloatType:
		v.f, err = dec.DecodeFloat64()
		return err
	case TextType:
		v.s, err = dec.DecodeString()
		return err
	case BytesType:
		v.b, err = dec.DecodeBytes()
		return err
	}
	return nil
}

type jsonValue struct {
	Type DataType        `json:"t"`
	V    json.RawMessage `json:"v,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.typ {
	case NullType:
		return json.Marshal(jsonValue{Type: NullType})
	case BoolType:
		payload = v.Bool()
	case IntType, TimestampType:
		payload = strconv.FormatInt(v.i, 10)
	case FloatType:
		payload = v.f
	case TextType:
		payload = v.s
	case BytesType:
		payload = v.b
	default:
		return nil, fmt.Errorf("cannot encode value of %v", v.typ)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Type: v.typ, V: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	if !jv.Type.valid() {
		return fmt.Errorf("value: unknown type %d", jv.Type)
	}
	*v = Value{typ: jv.Type}
	switch jv.Type {
	case NullType:
		return nil
	case BoolType:
		var b bool
		err := json.Unmarshal(jv.V, &b)
		v.i = boolInt(b)
		return err
	case IntType, TimestampType:
		var s string
		if err := json.Unmarshal(jv.V, &s); err != nil {
			return err
		}
		i, err := strconv.ParseInt(s, 10, 64)
		v.i = i
		return err
	case FloatType:
		return json.Unmarshal(jv.V, &v.f)
	case TextType:
		return json.Unmarshal(jv.V, &v.s)
	case BytesType:
		return json.Unmarshal(jv.V, &v.b)
	}
	return nil
}
