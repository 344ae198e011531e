package sync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tabsync/tabsync/internal/mapping"
)

// ErrEmptyFilter is returned when no mapped column qualifies for the lookup
// filter. Querying with an empty filter would match every record and the
// row would overwrite all of them.
var ErrEmptyFilter = errors.New("lookup filter is empty (no primary column in row)")

// Importer reconciles spreadsheet rows with the records of a remote database.
type Importer interface {
	// Import maps each row, looks up matching records and updates them, or
	// creates a new record when nothing matches.
	//
	// Rows are processed strictly in order, one remote call at a time. The
	// first remote or coercion error aborts the run; records written for
	// earlier rows stay written. The returned Result is never nil and counts
	// the work done up to the point of failure.
	//
	// Example:
	//   res, err := importer.Import(ctx, "a1b2c3...", rows)
	Import(ctx context.Context, databaseID string, rows []mapping.Row) (*Result, error)
}

// Options controls an import run.
type Options struct {
	// Mapping renames raw columns; nil passes columns through unchanged.
	Mapping *mapping.Config

	// After is the first row index processed (inclusive). Zero means from
	// the start.
	After int

	// Before is the row index processing stops at (exclusive). Zero means
	// no limit.
	Before int

	// DryRun performs lookups but no create or update calls.
	DryRun bool

	// AllowEmptyFilter lets a row without any filter predicate query the
	// whole database and update every record returned.
	AllowEmptyFilter bool

	// Debug receives mapped rows, filters and payloads. Nil discards them.
	Debug *log.Logger
}

// Result counts what an import run did.
type Result struct {
	// Processed is the number of rows inside the window that were looked at.
	Processed int
	// Created is the number of records created.
	Created int
	// Updated is the number of update calls, one per matched record.
	Updated int
	// Skipped is the number of rows without a title value.
	Skipped int
	// Warnings is the number of warnings logged.
	Warnings int
}

// String summarizes the result on one line.
func (r *Result) String() string {
	return fmt.Sprintf("processed=%d created=%d updated=%d skipped=%d warnings=%d",
		r.Processed, r.Created, r.Updated, r.Skipped, r.Warnings)
}
