package kvrows

// Store is the read side of the adapter.
type Store interface {
	// FetchSchema returns nil, nil when the table has no schema.
	FetchSchema(table string) (*Schema, error)

	// ScanData returns the rows of table in ascending id order.
	ScanData(table string) RowIter
}

// StoreMut is the write side of the adapter. Every method returns the handle
// to use for the next call, whether or not it succeeded, so implementations
// may be persistent values as well as shared handles like *Storage.
type StoreMut[Self any] interface {
	GenerateID(table string) (Self, Key, error)
	InsertSchema(schema *Schema) (Self, error)
	DeleteSchema(table string) (Self, error)
	InsertData(key Key, row Row) (Self, error)
	DeleteData(key Key) (Self, error)
}

// RowIter is a forward-only cursor over scanned rows.
//
//	it := st.ScanData("users")
//	defer it.Close()
//	for it.Next() {
//		if err := it.Err(); err != nil {
//			log.Printf("skipping %v: %v", it.Key(), err)
//			continue
//		}
//		use(it.Row())
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
type RowIter interface {
	Next() bool
	Key() Key
	Row() Row
	Err() error
	Close() error
}

var (
	_ Store              = (*Storage)(nil)
	_ StoreMut[*Storage] = (*Storage)(nil)
)
