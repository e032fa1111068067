package kvrows

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genTableName() gopter.Gen {
	return gen.RegexMatch(`^[a-z][a-z0-9_]{0,11}$`)
}

func genValue() gopter.Gen {
	return gen.OneGenOf(
		gen.Const(Null()),
		gen.Bool().Map(func(v bool) Value { return Bool(v) }),
		gen.Int64().Map(func(v int64) Value { return Int(v) }),
		gen.Float64Range(-1e9, 1e9).Map(func(v float64) Value { return Float(v) }),
		gen.AlphaString().Map(func(v string) Value { return Text(v) }),
		gen.SliceOf(gen.UInt8()).Map(func(v []uint8) Value { return Bytes(v) }),
	)
}

func genRow() gopter.Gen {
	return gen.SliceOfN(4, genValue()).Map(func(v []Value) Row { return Row(v) })
}

func TestProperty_dataKeyOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("byte order of data keys equals numeric order of ids", prop.ForAll(
		func(table string, a, b uint64) bool {
			cmp := bytes.Compare(DataKey(table, a), DataKey(table, b))
			switch {
			case a < b:
				return cmp < 0
			case a > b:
				return cmp > 0
			default:
				return cmp == 0
			}
		},
		genTableName(), gen.UInt64(), gen.UInt64(),
	))

	properties.Property("data keys parse back", prop.ForAll(
		func(table string, id uint64) bool {
			p, err := ParseKey(DataKey(table, id))
			return err == nil && p.Kind == DataKeyKind && p.Table == table && p.ID == id
		},
		genTableName(), gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestProperty_rowRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rows survive encoding", prop.ForAll(
		func(row Row) bool {
			for _, enc := range []encodingMethod{MsgPack, JSON} {
				raw, err := enc.Encode(nil, row)
				if err != nil {
					return false
				}
				var got Row
				if enc.Decode(raw, &got) != nil || !got.Equal(row) {
					return false
				}
			}
			return true
		},
		genRow(),
	))

	properties.TestingRun(t)
}

func TestProperty_storage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("schemas round-trip", prop.ForAll(
		func(table string, cols []string) bool {
			st := OpenMemory(Options{})
			defer st.Close()
			schema := &Schema{TableName: table}
			for _, c := range cols {
				schema.Columns = append(schema.Columns, ColumnDef{Name: c, Type: TextType})
			}
			st, err := st.InsertSchema(schema)
			if err != nil {
				return false
			}
			got, err := st.FetchSchema(table)
			return err == nil && got != nil && got.TableName == table && len(got.Columns) == len(schema.Columns)
		},
		genTableName(), gen.SliceOf(genTableName()),
	))

	properties.Property("scans stay within their table and follow id order", prop.ForAll(
		func(t1, t2 string, picks []bool) bool {
			if t1 == t2 {
				return true
			}
			st := OpenMemory(Options{})
			defer st.Close()
			var want []Key
			for _, first := range picks {
				table := t2
				if first {
					table = t1
				}
				st, key, err := st.GenerateID(table)
				if err != nil {
					return false
				}
				if _, err := st.InsertData(key, Row{Bool(first)}); err != nil {
					return false
				}
				if first {
					want = append(want, key)
				}
			}
			entries, err := CollectEntries(st.ScanData(t1))
			if err != nil || len(entries) != len(want) {
				return false
			}
			for i, e := range entries {
				if !e.Key.Equal(want[i]) || !e.Row.Equal(Row{Bool(true)}) {
					return false
				}
			}
			return true
		},
		genTableName(), genTableName(), gen.SliceOf(gen.Bool()),
	))

	properties.Property("delete schema empties the table", prop.ForAll(
		func(table string, n int) bool {
			st := OpenMemory(Options{})
			defer st.Close()
			st, err := st.InsertSchema(&Schema{TableName: table})
			if err != nil {
				return false
			}
			for range n {
				var key Key
				st, key, err = st.GenerateID(table)
				if err != nil {
					return false
				}
				st, err = st.InsertData(key, Row{Int(int64(n))})
				if err != nil {
					return false
				}
			}
			ts, err := st.TableStats(table)
			if err != nil || ts.Rows != n {
				return false
			}
			st, err = st.DeleteSchema(table)
			if err != nil {
				return false
			}
			entries, err := CollectEntries(st.ScanData(table))
			schema, err2 := st.FetchSchema(table)
			return err == nil && err2 == nil && len(entries) == 0 && schema == nil
		},
		genTableName(), gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
