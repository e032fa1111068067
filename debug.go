package kvrows

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpOrphans

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump writes a human-readable listing of every table to w. Undecodable
// schemas and rows are printed as errors instead of stopping the dump.
func (s *Storage) Dump(w io.Writer, f DumpFlags) error {
	tables, err := s.Tables()
	if err != nil {
		return err
	}
	for _, table := range tables {
		if err := s.dumpTable(w, f, table, false); err != nil {
			return err
		}
	}
	if f.Contains(DumpOrphans) {
		orphans, err := s.OrphanedTables()
		if err != nil {
			return err
		}
		for _, table := range orphans {
			if err := s.dumpTable(w, f, table, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Storage) dumpTable(w io.Writer, f DumpFlags, table string, orphan bool) error {
	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		if orphan {
			fmt.Fprintf(w, "%s ** ORPHANED, no schema\n", table)
		} else if schema, err := s.FetchSchema(table); err != nil {
			fmt.Fprintf(w, "%s ** ERROR: %v\n", table, err)
		} else if schema != nil {
			fmt.Fprintf(w, "%s\n", schema)
		}
	}
	if f.Contains(DumpStats) {
		ts, err := s.TableStats(table)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s.stats: rows = %d, ids = %d..%d, key_size = %d, data_size = %d, total_size = %d\n", table, ts.Rows, ts.MinID, ts.MaxID, ts.KeySize, ts.DataSize, ts.TotalSize())
	}
	if f.Contains(DumpRows) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		it := s.ScanData(table)
		defer it.Close()
		for it.Next() {
			id, _ := it.Key().ID()
			if err := it.Err(); err != nil {
				fmt.Fprintf(w, "%s.%d = ** ERROR: %v\n", table, id, err)
				continue
			}
			fmt.Fprintf(w, "%s.%d = %s\n", table, id, formatRow(it.Row()))
		}
		return it.Err()
	}
	return nil
}

func formatRow(row Row) string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, v := range row {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(')')
	return buf.String()
}
