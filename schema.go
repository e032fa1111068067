package kvrows

import "fmt"

// Schema names a table and describes its columns. The adapter stores it
// as an opaque encoded blob under SchemaKey(TableName).
type Schema struct {
	TableName string      `msgpack:"t" json:"table_name"`
	Columns   []ColumnDef `msgpack:"c" json:"columns"`
}

type ColumnDef struct {
	Name     string   `msgpack:"n" json:"name"`
	Type     DataType `msgpack:"y" json:"type"`
	Nullable bool     `msgpack:"z,omitempty" json:"nullable,omitempty"`
}

func (s *Schema) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

// Check verifies that row fits the column set. The adapter never calls it;
// row shape is the engine's responsibility.
func (s *Schema) Check(row Row) error {
	if len(row) != len(s.Columns) {
		return fmt.Errorf("%s: row has %d values, wanted %d", s.TableName, len(row), len(s.Columns))
	}
	for i, col := range s.Columns {
		v := row[i]
		if v.IsNull() {
			if !col.Nullable {
				return fmt.Errorf("%s.%s: NULL in non-nullable column", s.TableName, col.Name)
			}
			continue
		}
		if v.Type() != col.Type {
			return fmt.Errorf("%s.%s: got %v, wanted %v", s.TableName, col.Name, v.Type(), col.Type)
		}
	}
	return nil
}

func (s *Schema) String() string {
	return fmt.Sprintf("%s%v", s.TableName, s.Columns)
}

func (c ColumnDef) String() string {
	if c.Nullable {
		return c.Name + " " + c.Type.String() + " NULL"
	}
	return c.Name + " " + c.Type.String()
}
