// Package sync reconciles spreadsheet rows with the records of a database.
//
// Overview
//
// Each row is mapped to remote column names, encoded against the database
// schema and matched to existing records through an equality filter built
// from the primary columns. Matching records are updated; otherwise a new
// record is created. Running the same import twice leaves the record count
// unchanged as long as the primary values are stable.
//
//	Row (raw headers)
//	     ↓ mapping.MapRow
//	Row (remote columns)
//	     ↓ schema.EncodeRow          query.Build
//	Properties                       Filter
//	     ↓                             ↓
//	     └──────── Importer ───────────┘
//	                  ↓
//	   store.Store (Notion or local mirror)
//
// Usage
//
//	client, err := notion.New(&notion.Config{Token: token})
//	if err != nil {
//	    return err
//	}
//
//	imp := sync.New(client, nil, sync.Options{Mapping: cfg})
//	res, err := imp.Import(ctx, databaseID, rows)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res)
//
// Windowing
//
// Options.After and Options.Before restrict the run to the half-open index
// range [After, Before). Zero disables either bound.
//
// Error Handling
//
// Rows without a title value are skipped with a warning before any remote
// call is made. Columns the schema does not know, or whose type cannot be
// written, are dropped with one warning per column. A value that cannot be
// coerced to its column type aborts the run, as does any store error.
//
// Thread Safety
//
// An Importer holds no state between Import calls but is not meant to run
// concurrently against the same database.
package sync
