// Command kvrows inspects and maintains kvrows stores.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andreyvit/kvrows"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var a app
	defer a.close()
	root := newRootCommand(&a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

// app is what every subcommand gets after the configuration is loaded.
type app struct {
	log *zap.Logger
	st  *kvrows.Storage
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "kvrows",
		Short:        "Inspect and maintain kvrows stores",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd)
		},
	}
	registerFlags(root.PersistentFlags())

	root.AddCommand(
		newTablesCommand(a),
		newSchemaCommand(a),
		newScanCommand(a),
		newStatsCommand(a),
		newCheckCommand(a),
		newDropCommand(a),
		newDumpCommand(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}
	log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	enc, err := kvrows.ParseEncoding(cfg.Encoding)
	if err != nil {
		return err
	}

	opt := kvrows.Options{
		Logf:     log.Sugar().Debugf,
		Verbose:  cfg.Verbose,
		Encoding: enc,
		Bucket:   cfg.Bucket,
	}
	var st *kvrows.Storage
	switch cfg.Backend {
	case kvrows.BoltBackend:
		st, err = kvrows.OpenBolt(cfg.Path, opt)
	case kvrows.PebbleBackend:
		st, err = kvrows.OpenPebble(cfg.Path, opt)
	case kvrows.RedisBackend:
		st, err = kvrows.OpenRedis(kvrows.RedisConfig{
			URL:              cfg.Redis.URL,
			Prefix:           cfg.Redis.Prefix,
			OperationTimeout: cfg.Redis.Timeout,
		}, opt)
	case kvrows.MemoryBackend:
		st = kvrows.OpenMemory(opt)
	}
	if err != nil {
		log.Error("failed to open store", zap.String("backend", cfg.Backend), zap.String("path", cfg.Path), zap.Error(err))
		return err
	}
	log.Debug("store opened", zap.String("backend", st.Backend()), zap.String("path", cfg.Path))

	a.log, a.st = log, st
	return nil
}

func (a *app) close() error {
	if a.st == nil {
		return nil
	}
	err := a.st.Close()
	a.st = nil
	_ = a.log.Sync()
	return err
}

func newTablesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables that have a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.st.Tables()
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

type columnView struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

type schemaView struct {
	Table   string       `json:"table" yaml:"table"`
	Columns []columnView `json:"columns" yaml:"columns"`
}

func newSchemaCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Print the schema of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.st.FetchSchema(args[0])
			if err != nil {
				return err
			}
			if schema == nil {
				return fmt.Errorf("table %s has no schema", args[0])
			}
			view := schemaView{Table: schema.TableName}
			for _, c := range schema.Columns {
				view.Columns = append(view.Columns, columnView{Name: c.Name, Type: c.Type.String(), Nullable: c.Nullable})
			}
			return render(cmd.OutOrStdout(), output, view, func(w io.Writer) {
				fmt.Fprintln(w, view.Table)
				for _, c := range schema.Columns {
					fmt.Fprintf(w, "  %s\n", c)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

type entryView struct {
	ID    uint64     `json:"id"`
	Row   kvrows.Row `json:"row,omitempty"`
	Error string     `json:"error,omitempty"`
}

func newScanCommand(a *app) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan <table>",
		Short: "Print the rows of a table in id order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			it := a.st.ScanData(args[0])
			defer it.Close()

			var n, bad int
			for it.Next() {
				if limit > 0 && n == limit {
					break
				}
				n++
				id, _ := it.Key().ID()
				rowErr := it.Err()
				if rowErr != nil {
					bad++
					a.log.Warn("undecodable row", zap.Stringer("key", it.Key()), zap.Error(rowErr))
				}
				if asJSON {
					view := entryView{ID: id, Row: it.Row()}
					if rowErr != nil {
						view.Error = rowErr.Error()
					}
					if err := json.NewEncoder(w).Encode(view); err != nil {
						return err
					}
				} else if rowErr != nil {
					fmt.Fprintf(w, "%d\t** ERROR: %v\n", id, rowErr)
				} else {
					fmt.Fprintf(w, "%d\t%v\n", id, it.Row())
				}
			}
			if limit <= 0 || n < limit {
				if err := it.Err(); err != nil {
					return err
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d rows could not be decoded", bad, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many rows (0 means all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per row")
	return cmd
}

type statsView struct {
	Table     string `json:"table" yaml:"table"`
	HasSchema bool   `json:"has_schema" yaml:"has_schema"`
	Rows      int    `json:"rows" yaml:"rows"`
	MinID     uint64 `json:"min_id" yaml:"min_id"`
	MaxID     uint64 `json:"max_id" yaml:"max_id"`
	KeySize   int    `json:"key_size" yaml:"key_size"`
	DataSize  int    `json:"data_size" yaml:"data_size"`
}

func newStatsCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats <table>",
		Short: "Print row count and sizes of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := a.st.TableStats(args[0])
			if err != nil {
				return err
			}
			view := statsView{
				Table:     args[0],
				HasSchema: ts.HasSchema,
				Rows:      ts.Rows,
				MinID:     ts.MinID,
				MaxID:     ts.MaxID,
				KeySize:   ts.KeySize,
				DataSize:  ts.DataSize,
			}
			return render(cmd.OutOrStdout(), output, view, func(w io.Writer) {
				fmt.Fprintf(w, "%s: rows = %d, ids = %d..%d, key_size = %d, data_size = %d, has_schema = %v\n",
					view.Table, view.Rows, view.MinID, view.MaxID, view.KeySize, view.DataSize, view.HasSchema)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

var errOrphans = errors.New("orphaned rows found")

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report tables that have rows but no schema",
		Long: "Report tables that have rows but no schema. Such rows are left behind\n" +
			"when a table drop is interrupted on a backend without transactions.\n" +
			"Remove them with 'kvrows drop <table>'.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orphans, err := a.st.OrphanedTables()
			if err != nil {
				return err
			}
			for _, t := range orphans {
				ts, err := a.st.TableStats(t)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d orphaned rows\n", t, ts.Rows)
			}
			if len(orphans) > 0 {
				return errOrphans
			}
			a.log.Info("no orphaned rows")
			return nil
		},
	}
}

func newDropCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop <table>",
		Short: "Delete a table with all its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if !yes {
				return fmt.Errorf("refusing to drop %s without --yes", table)
			}
			ts, err := a.st.TableStats(table)
			if err != nil {
				return err
			}
			if _, err := a.st.DeleteSchema(table); err != nil {
				return err
			}
			a.log.Info("table dropped", zap.String("table", table), zap.Int("rows", ts.Rows))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the drop")
	return cmd
}

func newDumpCommand(a *app) *cobra.Command {
	var rows, stats, orphans bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every table, optionally with stats and rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := kvrows.DumpTableHeaders
			if rows {
				f |= kvrows.DumpRows
			}
			if stats {
				f |= kvrows.DumpStats
			}
			if orphans {
				f |= kvrows.DumpOrphans
			}
			return a.st.Dump(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().BoolVar(&rows, "rows", true, "include rows")
	cmd.Flags().BoolVar(&stats, "stats", false, "include table stats")
	cmd.Flags().BoolVar(&orphans, "orphans", true, "include tables without a schema")
	return cmd
}

func render(w io.Writer, format string, v any, text func(w io.Writer)) error {
	switch format {
	case "", "text":
		text(w)
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
