package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/tabsync/tabsync/internal/mapping"
	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
)

// importer implements the Importer interface.
type importer struct {
	store  store.Store
	logger *log.Logger
	debug  *log.Logger
	opts   Options
}

// New creates an Importer writing to st.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	client, err := notion.New(&notion.Config{Token: settings.Token})
//	if err != nil {
//	    return err
//	}
//	imp := sync.New(client, nil, sync.Options{Mapping: cfg, Before: 10})
//	res, err := imp.Import(ctx, databaseID, rows)
func New(st store.Store, logger *log.Logger, opts Options) Importer {
	if logger == nil {
		logger = log.New(os.Stderr, "[import] ", log.LstdFlags)
	}
	debug := opts.Debug
	if debug == nil {
		debug = log.New(io.Discard, "", 0)
	}
	return &importer{
		store:  st,
		logger: logger,
		debug:  debug,
		opts:   opts,
	}
}

// Import implements Importer.Import.
func (im *importer) Import(ctx context.Context, databaseID string, rows []mapping.Row) (*Result, error) {
	res := &Result{}

	sch, err := im.store.RetrieveSchema(ctx, databaseID)
	if err != nil {
		return res, fmt.Errorf("failed to retrieve schema: %w", err)
	}
	im.debug.Printf("schema: %s", strings.Join(sch.Columns(), ", "))

	reported := make(map[string]bool)

	for i, row := range rows {
		if im.opts.Before > 0 && i >= im.opts.Before {
			break
		}
		if im.opts.After > 0 && i < im.opts.After {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("import interrupted before row %d: %w", i, err)
		}

		res.Processed++
		if err := im.importRow(ctx, databaseID, sch, i, row, res, reported); err != nil {
			return res, fmt.Errorf("row %d: %w", i, err)
		}
	}

	im.logger.Printf("Import complete: %s", res)
	return res, nil
}

// importRow reconciles a single row.
func (im *importer) importRow(ctx context.Context, databaseID string, sch schema.Schema, i int, row mapping.Row, res *Result, reported map[string]bool) error {
	mapped := mapping.MapRow(row, im.opts.Mapping)
	im.debug.Printf("row %d: mapped %s", i, spew.Sprintf("%v", mapped.Map()))

	type dropped struct {
		column string
		err    error
	}
	var drops []dropped
	props, err := schema.EncodeRow(sch, mapped.All(), func(column string, err error) {
		drops = append(drops, dropped{column, err})
	})
	if err != nil {
		return err
	}

	// A skipped row logs only the title warning; its dropped columns are
	// reported by the first row that is written.
	if !props.HasTitle(sch) {
		im.warnf(res, "row %d: title not found, skipping", i)
		res.Skipped++
		return nil
	}
	for _, d := range drops {
		if reported[d.column] {
			continue
		}
		reported[d.column] = true
		im.warnf(res, "column %q is not written: %v", d.column, d.err)
	}
	im.debug.Printf("row %d: properties %s", i, spew.Sprintf("%v", props))

	filter, err := query.Build(sch, mapped, im.opts.Mapping)
	if err != nil {
		return err
	}
	if filter.IsEmpty() && !im.opts.AllowEmptyFilter {
		return ErrEmptyFilter
	}
	im.debug.Printf("row %d: filter %v", i, filter.And)

	found, err := im.store.Query(ctx, databaseID, filter)
	if err != nil {
		return err
	}

	if len(found.Results) == 0 {
		if im.opts.DryRun {
			im.logger.Printf("[dry-run] row %d: would create record", i)
			res.Created++
			return nil
		}
		rec, err := im.store.CreateRecord(ctx, databaseID, props)
		if err != nil {
			return err
		}
		im.logger.Printf("Created record %s (row %d)", rec.ID, i)
		res.Created++
		return nil
	}

	if len(found.Results) > 1 {
		im.warnf(res, "row %d: %d records match %v, updating all of them", i, len(found.Results), filter.And)
	}
	if found.HasMore {
		im.warnf(res, "row %d: more matches than one page; only the first page is updated", i)
	}

	for _, rec := range found.Results {
		if im.opts.DryRun {
			im.logger.Printf("[dry-run] row %d: would update record %s", i, rec.ID)
			res.Updated++
			continue
		}
		if _, err := im.store.UpdateRecord(ctx, rec.ID, props); err != nil {
			return err
		}
		im.logger.Printf("Updated record %s (row %d)", rec.ID, i)
		res.Updated++
	}
	return nil
}

func (im *importer) warnf(res *Result, format string, args ...any) {
	res.Warnings++
	im.logger.Printf("WARNING: "+format, args...)
}
