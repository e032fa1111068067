package kvrows

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTableStats(t *testing.T) {
	st := setup(t)
	st = must(st.InsertSchema(usersSchema))
	for i := range 3 {
		st, key, err := st.GenerateID("users")
		ensure(err)
		st = must(st.InsertData(key, userRow(int64(i), "s@example.com", "")))
	}
	// Another table sharing a name prefix.
	st = must(st.InsertData(DataKey("users2", 100), Row{Int(1)}))

	ts := must(st.TableStats("users"))
	deepEqual(t, ts.Rows, 3)
	deepEqual(t, ts.MinID, uint64(1))
	deepEqual(t, ts.MaxID, uint64(3))
	deepEqual(t, ts.HasSchema, true)
	deepEqual(t, ts.KeySize, 3*len(DataKey("users", 1)))
	if ts.DataSize == 0 || ts.TotalSize() != ts.KeySize+ts.DataSize {
		t.Errorf("** unexpected sizes: %+v", ts)
	}

	ts = must(st.TableStats("users2"))
	deepEqual(t, ts, TableStats{Rows: 1, KeySize: len(DataKey("users2", 100)), DataSize: ts.DataSize, MinID: 100, MaxID: 100})

	deepEqual(t, must(st.TableStats("none")), TableStats{})
}

func TestTables(t *testing.T) {
	st := setupMemory(t)
	isempty(t, must(st.Tables()))
	for _, name := range []string{"b", "a", "a/b", "c"} {
		st = must(st.InsertSchema(&Schema{TableName: name}))
	}
	deepEqual(t, must(st.Tables()), []string{"a", "a/b", "b", "c"})
}

func TestOrphanedTables(t *testing.T) {
	backends(t, func(t *testing.T, st *Storage) {
		st = must(st.InsertSchema(usersSchema))
		st = must(st.InsertData(DataKey("users", 1), Row{Int(1)}))
		isempty(t, must(st.OrphanedTables()))

		// Rows left behind by an interrupted table delete.
		ensure(st.update(func(tx storageTx) error {
			for i := range 3 {
				if err := tx.Put(DataKey("ghost", uint64(i+10)), must(MsgPack.Encode(nil, Row{Null()}))); err != nil {
					return err
				}
			}
			if err := tx.Put(DataKey("zombie", 1), nil); err != nil {
				return err
			}
			return tx.Put([]byte("data/garbage"), []byte("x"))
		}))
		deepEqual(t, must(st.OrphanedTables()), []string{"ghost", "zombie"})

		st = must(st.DeleteSchema("ghost"))
		deepEqual(t, must(st.OrphanedTables()), []string{"zombie"})
	})
}

func TestDump(t *testing.T) {
	st := setupMemory(t)
	st = must(st.InsertSchema(usersSchema))
	st = must(st.InsertData(DataKey("users", 1), userRow(1, "a@example.com", "Alice")))
	st = must(st.InsertData(DataKey("users", 2), userRow(2, "b@example.com", "")))
	ensure(st.update(func(tx storageTx) error {
		if err := tx.Put(DataKey("users", 3), x("c1")); err != nil {
			return err
		}
		return tx.Put(DataKey("lost", 7), must(MsgPack.Encode(nil, Row{Int(7)})))
	}))

	var buf bytes.Buffer
	ensure(st.Dump(&buf, DumpAll))
	out := buf.String()
	for _, want := range []string{
		"users[id int email text name text NULL]",
		"users.stats: rows = 3, ids = 1..3",
		`users.1 = (1, "a@example.com", "Alice")`,
		`users.2 = (2, "b@example.com", NULL)`,
		"users.3 = ** ERROR:",
		"lost ** ORPHANED, no schema",
		"lost.7 = (7)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("** dump lacks %q:\n%s", want, out)
		}
	}

	buf.Reset()
	ensure(st.Dump(&buf, DumpTableHeaders))
	deepEqual(t, strings.Contains(buf.String(), "users.1"), false)
	deepEqual(t, strings.Contains(buf.String(), "lost"), false)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	st := OpenMemory(Options{Registerer: reg})
	defer st.Close()

	st, key, err := st.GenerateID("t")
	ensure(err)
	st = must(st.InsertData(key, Row{Int(1)}))
	ensure(st.update(func(tx storageTx) error {
		return tx.Put(DataKey("t", 99), x("c1"))
	}))
	_, err = CollectEntries(st.ScanData("t"))
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("** CollectEntries = %v, wanted ErrEncoding", err)
	}
	it := st.ScanData("t")
	for it.Next() {
	}
	ensure(it.Close())
	_, err = st.InsertSchema(nil)
	if err == nil {
		t.Fatalf("** InsertSchema(nil) succeeded")
	}

	m := st.metrics
	deepEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("generate_id", outcomeOK)), 1.0)
	deepEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("insert_data", outcomeOK)), 1.0)
	// The scan abandoned by CollectEntries is counted when it is closed.
	deepEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("scan_data", outcomeOK)), 2.0)
	deepEqual(t, testutil.ToFloat64(m.scannedRows), 4.0)
	deepEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("insert_schema", outcomeEncodingError)), 1.0)
	deepEqual(t, must(testutil.GatherAndCount(reg, "kvrows_operations_total")), 4)

	// A nil Registerer still counts.
	st2 := OpenMemory(Options{})
	defer st2.Close()
	st2.GenerateID("t")
	deepEqual(t, testutil.ToFloat64(st2.metrics.operations.WithLabelValues("generate_id", outcomeOK)), 1.0)
}

func TestMetrics_scanClosedEarly(t *testing.T) {
	reg := prometheus.NewRegistry()
	var lines []string
	st := OpenMemory(Options{
		Registerer: reg,
		Verbose:    true,
		Logf:       func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) },
	})
	defer st.Close()
	for i := range 5 {
		st = must(st.InsertData(DataKey("t", uint64(i+1)), Row{Int(int64(i))}))
	}

	for _, err := range Entries(st.ScanData("t")) {
		ensure(err)
		break
	}

	it := st.ScanData("t")
	if !it.Next() {
		t.Fatalf("** Next returned false")
	}
	ensure(it.Close())
	ensure(it.Close())

	// Never started, so nothing was read and nothing is recorded.
	ensure(st.ScanData("t").Close())

	deepEqual(t, testutil.ToFloat64(st.metrics.operations.WithLabelValues("scan_data", outcomeOK)), 2.0)
	deepEqual(t, testutil.ToFloat64(st.metrics.scannedRows), 2.0)
	var traced int
	for _, line := range lines {
		if strings.Contains(line, "scan_data t ended") {
			traced++
		}
	}
	deepEqual(t, traced, 2)
}
