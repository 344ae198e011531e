package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabsync/tabsync/internal/config"
	"github.com/tabsync/tabsync/internal/mapping"
	"github.com/tabsync/tabsync/internal/sheet"
	"github.com/tabsync/tabsync/internal/store"
	"github.com/tabsync/tabsync/internal/sync"
	"github.com/tabsync/tabsync/internal/ui"
	"github.com/tabsync/tabsync/internal/watch"
)

// watchDebounce coalesces the burst of writes a spreadsheet save produces.
const watchDebounce = 750 * time.Millisecond

type importFlags struct {
	databaseID       string
	file             string
	mapFile          string
	before           int
	test             int
	after            int
	sheet            string
	dryRun           bool
	allowEmptyFilter bool
	confirm          bool
	watch            bool
	localPath        string
}

func newImportCmd(a *app) *cobra.Command {
	f := &importFlags{}

	cmd := &cobra.Command{
		Use:     "import",
		GroupID: "sync",
		Short:   "Import spreadsheet rows into a database",
		Long: `Import the rows of an .xlsx file into a database.

For every row:
  1. columns are renamed through the mapping file (-M), if given
  2. a filter is built from the primary columns
  3. matching records are updated, or a new record is created

Rows without a title value are skipped with a warning. A value that cannot be
written to its column (e.g. text in a number column) stops the import; rows
already written stay written.

--after and --before select the half-open row range [after, before), counted
from 0 for the first row below the header.

Examples:
  tabsync import -D 0123abcd... -F items.xlsx -M items.yaml
  tabsync import -D 0123abcd... -F items.xlsx --test 5 --dry-run
  tabsync import -D 0123abcd... -F items.xlsx --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.databaseID, "database_id", "D", "", "database ID")
	fs.StringVarP(&f.file, "file", "F", "", "spreadsheet to import (.xlsx)")
	fs.StringVarP(&f.mapFile, "map", "M", "", "column mapping file (.yaml)")
	fs.IntVar(&f.before, "before", 0, "stop before this row index (0 = no limit)")
	fs.IntVar(&f.test, "test", 0, "same as --before")
	fs.IntVar(&f.after, "after", 0, "start at this row index")
	fs.StringVar(&f.sheet, "sheet", "", "worksheet name (default: first sheet)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "look up matches but do not write")
	fs.BoolVar(&f.allowEmptyFilter, "allow-empty-filter", false, "let rows without primary values update every record")
	fs.BoolVar(&f.confirm, "confirm", false, "ask before writing")
	fs.BoolVar(&f.watch, "watch", false, "re-run the import whenever the file changes")
	fs.StringVar(&f.localPath, "local", "", "write to a local mirror database instead of the API")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, a *app, f *importFlags) error {
	if err := requireDatabase(f.databaseID); err != nil {
		return err
	}
	if f.before == 0 {
		f.before = f.test
	}
	if f.before < 0 || f.after < 0 {
		return fmt.Errorf("--before and --after must not be negative")
	}

	var cfg *mapping.Config
	if f.mapFile != "" {
		var err error
		if cfg, err = mapping.LoadFile(f.mapFile); err != nil {
			return err
		}
	}

	// Fail on a bad input file before touching the store.
	rows, err := sheet.ReadFile(f.file, sheet.Options{Sheet: f.sheet})
	if err != nil {
		return err
	}

	st, closeStore, err := a.openStore(f.localPath)
	if err != nil {
		return err
	}
	defer closeQuietly(cmd.ErrOrStderr(), "store", closeStore)

	out := cmd.OutOrStdout()
	if f.confirm && !f.dryRun {
		ok, err := ui.Confirm(
			fmt.Sprintf("Import %d rows from %s?", len(rows), f.file),
			fmt.Sprintf("Records in database %s will be created or updated.", f.databaseID),
		)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Import cancelled")
			return nil
		}
	}

	logger := a.sinks.Logger("[import] ")
	debug := a.sinks.Debug("[import] ")
	if cfg != nil && len(rows) > 0 {
		if unmapped := mapping.Unmapped(rows[0], cfg); len(unmapped) > 0 {
			debug.Printf("columns without mapping are dropped: %s", strings.Join(unmapped, ", "))
		}
	}

	importer := sync.New(st, logger, sync.Options{
		Mapping:          cfg,
		After:            f.after,
		Before:           f.before,
		DryRun:           f.dryRun,
		AllowEmptyFilter: f.allowEmptyFilter,
		Debug:            debug,
	})

	ctx := cmd.Context()
	if err := runOnce(ctx, out, importer, f, rows); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}
	return watchAndImport(ctx, cmd.ErrOrStderr(), out, importer, f)
}

func runOnce(ctx context.Context, out io.Writer, importer sync.Importer, f *importFlags, rows []mapping.Row) error {
	res, err := importer.Import(ctx, f.databaseID, rows)
	printResult(out, res, f.dryRun)
	if err != nil {
		if store.IsUnauthorized(err) {
			return fmt.Errorf("%w (check that the integration has access to the database)", err)
		}
		return err
	}
	return nil
}

func printResult(out io.Writer, res *sync.Result, dryRun bool) {
	if res == nil {
		return
	}
	mark := ui.RenderPass("✓")
	if res.Warnings > 0 {
		mark = ui.RenderWarn("!")
	}
	prefix := ""
	if dryRun {
		prefix = ui.RenderMuted("[dry-run] ")
	}
	fmt.Fprintf(out, "%s %s%d rows: %d created, %d updated, %d skipped",
		mark, prefix, res.Processed, res.Created, res.Updated, res.Skipped)
	if res.Warnings > 0 {
		fmt.Fprintf(out, ", %s", ui.RenderWarn(fmt.Sprintf("%d warnings", res.Warnings)))
	}
	fmt.Fprintln(out)
}

// watchAndImport re-reads and re-imports the file after every change until
// ctx is cancelled. Runs never overlap.
func watchAndImport(ctx context.Context, errOut, out io.Writer, importer sync.Importer, f *importFlags) error {
	fw, err := watch.NewFileWatcher(watchDebounce)
	if err != nil {
		return err
	}
	defer fw.Stop()

	if err := fw.Start(f.file); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Watching %s (Ctrl+C to stop)\n", ui.RenderAccent("👀"), f.file)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopped watching")
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s %s changed (%s)\n", ui.RenderAccent("🔄"), ev.Path, ev.Op)

			rows, err := sheet.ReadFile(f.file, sheet.Options{Sheet: f.sheet})
			if err != nil {
				// A half-written file is normal while the editor saves.
				fmt.Fprintf(errOut, "%s %v\n", ui.RenderWarn("Warning:"), err)
				continue
			}
			if err := runOnce(ctx, out, importer, f, rows); err != nil {
				if errors.Is(err, context.Canceled) || config.IsConfigurationError(err) {
					return err
				}
				fmt.Fprintf(errOut, "%s %v\n", ui.RenderFail("Error:"), err)
			}

		case err, ok := <-fw.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "%s watcher: %v\n", ui.RenderWarn("Warning:"), err)
		}
	}
}
