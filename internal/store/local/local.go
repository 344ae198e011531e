// Package local provides an offline mirror of the remote store backed by an
// embedded SQLite database.
//
// It implements store.Store so imports can be rehearsed without touching the
// remote service:
//
//	st, err := local.Open("mirror.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.InitSchema(ctx); err != nil {
//	    return err
//	}
//	err = st.DefineDatabase(ctx, "inventory", "Inventory", def.Schema())
//
// Records are stored in their write encoding and rendered in the remote read
// shape (with plain_text segments) when queried. Filters are evaluated in Go
// against the stored values with the same equality semantics as the remote.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// PageSize is the maximum number of records a query returns, matching the
// remote API's page size.
const PageSize = 100

// Store is a SQLite-backed store.Store.
type Store struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the mirror database at path.
//
// The caller MUST call Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Imports are strictly sequential; one connection is enough.
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn: conn,
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables if they don't exist. It is idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS databases (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		schema TEXT NOT NULL,  -- JSON object: column -> property
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		database_id TEXT NOT NULL,
		properties TEXT NOT NULL,  -- JSON object: column -> write encoding
		created_time TEXT NOT NULL,
		last_edited_time TEXT NOT NULL,
		FOREIGN KEY (database_id) REFERENCES databases(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_database
	    ON records(database_id, created_time);
	`

	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// DefineDatabase creates a database with the given schema, or replaces the
// schema of an existing one. Existing records are kept.
func (s *Store) DefineDatabase(ctx context.Context, id, title string, sch schema.Schema) error {
	if id == "" {
		return fmt.Errorf("database id is required")
	}
	if err := sch.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	schemaJSON, err := json.Marshal(sch)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	q := `
	INSERT INTO databases (id, title, schema, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		schema = excluded.schema
	`
	if _, err := s.conn.ExecContext(ctx, q, id, title, string(schemaJSON), s.now().Format(timeLayout)); err != nil {
		return fmt.Errorf("failed to define database %s: %w", id, err)
	}
	return nil
}

// RetrieveSchema implements store.Store.
func (s *Store) RetrieveSchema(ctx context.Context, databaseID string) (schema.Schema, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT schema FROM databases WHERE id = ?`, databaseID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("database %s: %w", databaseID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database %s: %w", databaseID, err)
	}

	var sch schema.Schema
	if err := json.Unmarshal([]byte(raw), &sch); err != nil {
		return nil, fmt.Errorf("failed to decode schema of %s: %w", databaseID, err)
	}
	return sch, nil
}

// Query implements store.Store. Results are in creation order and capped at
// PageSize; HasMore reports whether more records matched.
func (s *Store) Query(ctx context.Context, databaseID string, filter query.Filter) (*store.QueryResult, error) {
	sch, err := s.RetrieveSchema(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	for _, p := range filter.And {
		if _, ok := sch[p.Property]; !ok {
			return nil, fmt.Errorf("filter property %q: %w", p.Property, store.ErrInvalidRequest)
		}
	}

	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, properties, created_time, last_edited_time
	FROM records
	WHERE database_id = ?
	ORDER BY created_time, rowid
	`, databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	result := &store.QueryResult{Object: "list", Results: []store.Record{}}
	for rows.Next() {
		sr, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !matches(filter, sr.props) {
			continue
		}
		if len(result.Results) == PageSize {
			result.HasMore = true
			break
		}
		rec, err := sr.render(sch)
		if err != nil {
			return nil, err
		}
		result.Results = append(result.Results, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return result, nil
}

// CreateRecord implements store.Store.
func (s *Store) CreateRecord(ctx context.Context, databaseID string, props schema.Properties) (*store.Record, error) {
	sch, err := s.RetrieveSchema(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	if err := checkProperties(sch, props); err != nil {
		return nil, err
	}

	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	now := s.now()
	sr := storedRecord{
		id:         uuid.New().String(),
		databaseID: databaseID,
		props:      props,
		created:    now,
		edited:     now,
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO records (id, database_id, properties, created_time, last_edited_time)
	VALUES (?, ?, ?, ?, ?)
	`, sr.id, databaseID, string(data), now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}

	return sr.render(sch)
}

// UpdateRecord implements store.Store. Given properties replace stored ones;
// others are kept.
func (s *Store) UpdateRecord(ctx context.Context, recordID string, props schema.Properties) (*store.Record, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
	SELECT r.id, r.properties, r.created_time, r.last_edited_time, r.database_id, d.schema
	FROM records r JOIN databases d ON d.id = r.database_id
	WHERE r.id = ?
	`, recordID)

	var id, propsJSON, created, edited, databaseID, schemaJSON string
	if err := row.Scan(&id, &propsJSON, &created, &edited, &databaseID, &schemaJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", recordID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read record %s: %w", recordID, err)
	}

	var sch schema.Schema
	if err := json.Unmarshal([]byte(schemaJSON), &sch); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if err := checkProperties(sch, props); err != nil {
		return nil, err
	}

	sr, err := newStoredRecord(id, propsJSON, created, edited)
	if err != nil {
		return nil, err
	}
	sr.databaseID = databaseID
	for column, pv := range props {
		sr.props[column] = pv
	}
	sr.edited = s.now()

	data, err := json.Marshal(sr.props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
	UPDATE records SET properties = ?, last_edited_time = ? WHERE id = ?
	`, string(data), sr.edited.Format(timeLayout), recordID); err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", recordID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return sr.render(sch)
}

// RecordCount returns the number of records in a database.
func (s *Store) RecordCount(ctx context.Context, databaseID string) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE database_id = ?`, databaseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// checkProperties rejects columns the schema does not have and values whose
// encoding does not fit the column type.
func checkProperties(sch schema.Schema, props schema.Properties) error {
	for column, pv := range props {
		p, ok := sch[column]
		if !ok {
			return fmt.Errorf("property %q is not in the schema: %w", column, store.ErrInvalidRequest)
		}
		var fits bool
		switch p.Type {
		case schema.Title:
			fits = pv.Title != nil
		case schema.RichText:
			fits = pv.RichText != nil
		case schema.Number:
			fits = pv.Number != nil
		case schema.Select:
			fits = pv.Select != nil
		case schema.Unsupported:
			fits = false
		}
		if !fits {
			return fmt.Errorf("property %q expects a %s value: %w", column, p.TypeName, store.ErrInvalidRequest)
		}
	}
	return nil
}

type storedRecord struct {
	id         string
	databaseID string
	props      schema.Properties
	created    time.Time
	edited     time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*storedRecord, error) {
	var id, propsJSON, created, edited string
	if err := sc.Scan(&id, &propsJSON, &created, &edited); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	return newStoredRecord(id, propsJSON, created, edited)
}

func newStoredRecord(id, propsJSON, created, edited string) (*storedRecord, error) {
	sr := &storedRecord{id: id, props: schema.Properties{}}
	if err := json.Unmarshal([]byte(propsJSON), &sr.props); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	var err error
	if sr.created, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("invalid created_time on %s: %w", id, err)
	}
	if sr.edited, err = time.Parse(timeLayout, edited); err != nil {
		return nil, fmt.Errorf("invalid last_edited_time on %s: %w", id, err)
	}
	return sr, nil
}

// render converts a stored record to the remote read shape. Every schema
// column is present, empty ones with their null/empty value.
func (sr *storedRecord) render(sch schema.Schema) (*store.Record, error) {
	rec := &store.Record{
		Object:         "page",
		ID:             sr.id,
		CreatedTime:    sr.created,
		LastEditedTime: sr.edited,
		Properties:     make(map[string]json.RawMessage, len(sch)),
	}

	for column, p := range sch {
		var pv *schema.PropertyValue
		if v, ok := sr.props[column]; ok {
			pv = &v
		}
		raw, err := json.Marshal(readValue(p, pv))
		if err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", column, err)
		}
		rec.Properties[column] = raw
	}
	return rec, nil
}

type readSegment struct {
	Type      string      `json:"type"`
	Text      schema.Text `json:"text"`
	PlainText string      `json:"plain_text"`
}

func readSegments(items []schema.RichTextItem) []readSegment {
	out := make([]readSegment, 0, len(items))
	for _, it := range items {
		content := it.PlainText
		if it.Text != nil {
			content = it.Text.Content
		}
		out = append(out, readSegment{Type: "text", Text: schema.Text{Content: content}, PlainText: content})
	}
	return out
}

// readValue builds the read-shape object {"id", "type", <type>: value}.
func readValue(p schema.Property, pv *schema.PropertyValue) map[string]any {
	typeName := p.TypeName
	if typeName == "" {
		typeName = p.Type.String()
	}
	out := map[string]any{"id": p.ID, "type": typeName}

	switch p.Type {
	case schema.Title:
		var items []schema.RichTextItem
		if pv != nil {
			items = pv.Title
		}
		out[typeName] = readSegments(items)
	case schema.RichText:
		var items []schema.RichTextItem
		if pv != nil {
			items = pv.RichText
		}
		out[typeName] = readSegments(items)
	case schema.Number:
		if pv != nil && pv.Number != nil {
			out[typeName] = *pv.Number
		} else {
			out[typeName] = nil
		}
	case schema.Select:
		if pv != nil && pv.Select != nil {
			out[typeName] = pv.Select
		} else {
			out[typeName] = nil
		}
	case schema.Unsupported:
		out[typeName] = nil
	}
	return out
}

func plainText(items []schema.RichTextItem) string {
	var b strings.Builder
	for _, it := range items {
		if it.Text != nil {
			b.WriteString(it.Text.Content)
		} else {
			b.WriteString(it.PlainText)
		}
	}
	return b.String()
}

// matches evaluates a filter against stored values.
func matches(f query.Filter, props schema.Properties) bool {
	for _, p := range f.And {
		pv, ok := props[p.Property]
		switch {
		case p.Title != nil:
			if !ok || plainText(pv.Title) != p.Title.Equals {
				return false
			}
		case p.Number != nil:
			if !ok || pv.Number == nil || *pv.Number != p.Number.Equals {
				return false
			}
		case p.Select != nil:
			if !ok || pv.Select == nil || pv.Select.Name != p.Select.Equals {
				return false
			}
		default:
			return false
		}
	}
	return true
}
