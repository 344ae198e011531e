package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/mapping"
	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
	"github.com/tabsync/tabsync/internal/store/local"
)

var testSchema = schema.Schema{
	"Name":     {ID: "title", Name: "Name", Type: schema.Title, TypeName: "title"},
	"ID":       {ID: "id", Name: "ID", Type: schema.Number, TypeName: "number"},
	"Category": {ID: "cat", Name: "Category", Type: schema.Select, TypeName: "select"},
	"Due":      {ID: "due", Name: "Due", Type: schema.Unsupported, TypeName: "date"},
}

// fakeStore records every call and answers queries from a canned list.
type fakeStore struct {
	schema    schema.Schema
	schemaErr error
	matches   []store.Record
	hasMore   bool

	queries []query.Filter
	creates []schema.Properties
	updates []string
}

func (f *fakeStore) RetrieveSchema(ctx context.Context, databaseID string) (schema.Schema, error) {
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return f.schema, nil
}

func (f *fakeStore) Query(ctx context.Context, databaseID string, filter query.Filter) (*store.QueryResult, error) {
	f.queries = append(f.queries, filter)
	return &store.QueryResult{Object: "list", Results: f.matches, HasMore: f.hasMore}, nil
}

func (f *fakeStore) CreateRecord(ctx context.Context, databaseID string, props schema.Properties) (*store.Record, error) {
	f.creates = append(f.creates, props)
	return &store.Record{Object: "page", ID: fmt.Sprintf("page-%d", len(f.creates))}, nil
}

func (f *fakeStore) UpdateRecord(ctx context.Context, recordID string, props schema.Properties) (*store.Record, error) {
	f.updates = append(f.updates, recordID)
	return &store.Record{Object: "page", ID: recordID}, nil
}

func newFake() *fakeStore {
	return &fakeStore{schema: testSchema}
}

// newTestImporter returns an importer logging into buf.
func newTestImporter(st store.Store, opts Options) (Importer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(st, log.New(buf, "", 0), opts), buf
}

func row(kv ...any) mapping.Row {
	r := mapping.Row{}
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, mapping.Cell{Column: kv[i].(string), Value: kv[i+1]})
	}
	return r
}

func titles(props []schema.Properties) []string {
	var out []string
	for _, p := range props {
		out = append(out, p["Name"].Title[0].Text.Content)
	}
	return out
}

func warnings(buf *bytes.Buffer) []string {
	var out []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "WARNING: ") {
			out = append(out, line)
		}
	}
	return out
}

func numberedRows(n int) []mapping.Row {
	rows := make([]mapping.Row, n)
	for i := range rows {
		rows[i] = row("Name", fmt.Sprintf("item-%d", i), "ID", i)
	}
	return rows
}

func TestImportCreatesWhenNoMatch(t *testing.T) {
	fs := newFake()
	imp, _ := newTestImporter(fs, Options{Mapping: &mapping.Config{Primary: mapping.NewPrimarySet("ID")}})

	res, err := imp.Import(context.Background(), "db1", []mapping.Row{row("Name", "Widget", "ID", 42)})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	require.Len(t, fs.queries, 1)
	require.Len(t, fs.queries[0].And, 1)
	assert.Equal(t, "ID", fs.queries[0].And[0].Property)
	assert.Equal(t, 42.0, fs.queries[0].And[0].Number.Equals)
	assert.Equal(t, []string{"Widget"}, titles(fs.creates))
}

func TestImportWindow(t *testing.T) {
	tests := []struct {
		name   string
		after  int
		before int
		want   []string
	}{
		{"unbounded", 0, 0, []string{"item-0", "item-1", "item-2", "item-3", "item-4"}},
		{"before only", 0, 2, []string{"item-0", "item-1"}},
		{"after only", 1, 0, []string{"item-1", "item-2", "item-3", "item-4"}},
		{"both", 1, 3, []string{"item-1", "item-2"}},
		{"empty range", 3, 3, nil},
		{"before past end", 0, 50, []string{"item-0", "item-1", "item-2", "item-3", "item-4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFake()
			imp, _ := newTestImporter(fs, Options{After: tt.after, Before: tt.before})

			res, err := imp.Import(context.Background(), "db1", numberedRows(5))
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(fs.creates))
			assert.Equal(t, len(tt.want), res.Processed)
		})
	}
}

func TestImportSkipsRowWithoutTitle(t *testing.T) {
	tests := []struct {
		name string
		row  mapping.Row
	}{
		{"writable columns", row("ID", 1, "Category", "Tools")},
		{"unsupported column", row("ID", 1, "Due", "2024-01-01")},
		{"unknown column", row("ID", 1, "Extra", "x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFake()
			imp, buf := newTestImporter(fs, Options{})

			res, err := imp.Import(context.Background(), "db1", []mapping.Row{tt.row})
			require.NoError(t, err)

			assert.Equal(t, 1, res.Skipped)
			assert.Equal(t, 1, res.Warnings)
			assert.Empty(t, fs.queries)
			assert.Empty(t, fs.creates)
			assert.Empty(t, fs.updates)
			w := warnings(buf)
			require.Len(t, w, 1)
			assert.Contains(t, w[0], "row 0: title not found")
		})
	}
}

func TestImportReportsDroppedColumnAfterSkippedRow(t *testing.T) {
	fs := newFake()
	imp, buf := newTestImporter(fs, Options{})

	rows := []mapping.Row{
		row("ID", 1, "Due", "2024-01-01"),
		row("Name", "a", "ID", 2, "Due", "2024-01-02"),
	}
	res, err := imp.Import(context.Background(), "db1", rows)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Created)
	w := warnings(buf)
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "row 0: title not found")
	assert.Contains(t, w[1], `column "Due" is not written`)
}

func TestImportUpdatesEveryMatch(t *testing.T) {
	fs := newFake()
	fs.matches = []store.Record{{ID: "page-a"}, {ID: "page-b"}}
	imp, buf := newTestImporter(fs, Options{})

	res, err := imp.Import(context.Background(), "db1", []mapping.Row{row("Name", "Widget")})
	require.NoError(t, err)

	assert.Equal(t, []string{"page-a", "page-b"}, fs.updates)
	assert.Empty(t, fs.creates)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Warnings)
	assert.Len(t, warnings(buf), 1)
}

func TestImportWarnsWhenMatchesSpanPages(t *testing.T) {
	fs := newFake()
	fs.matches = []store.Record{{ID: "page-a"}}
	fs.hasMore = true
	imp, buf := newTestImporter(fs, Options{})

	_, err := imp.Import(context.Background(), "db1", []mapping.Row{row("Name", "Widget")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "only the first page is updated")
}

func TestImportEmptyFilter(t *testing.T) {
	cfg := &mapping.Config{Primary: mapping.NewPrimarySet("ID")}
	rows := []mapping.Row{row("Name", "Widget", "Category", "Tools")}

	t.Run("rejected", func(t *testing.T) {
		fs := newFake()
		imp, _ := newTestImporter(fs, Options{Mapping: cfg})

		res, err := imp.Import(context.Background(), "db1", rows)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyFilter))
		assert.Contains(t, err.Error(), "row 0")
		assert.Empty(t, fs.queries)
		assert.Equal(t, 1, res.Processed)
	})

	t.Run("allowed", func(t *testing.T) {
		fs := newFake()
		fs.matches = []store.Record{{ID: "page-a"}}
		imp, _ := newTestImporter(fs, Options{Mapping: cfg, AllowEmptyFilter: true})

		_, err := imp.Import(context.Background(), "db1", rows)
		require.NoError(t, err)
		require.Len(t, fs.queries, 1)
		assert.True(t, fs.queries[0].IsEmpty())
		assert.Equal(t, []string{"page-a"}, fs.updates)
	})
}

func TestImportCoercionAborts(t *testing.T) {
	fs := newFake()
	imp, _ := newTestImporter(fs, Options{})

	rows := []mapping.Row{
		row("Name", "good", "ID", 1),
		row("Name", "bad", "ID", "abc"),
		row("Name", "never", "ID", 3),
	}
	res, err := imp.Import(context.Background(), "db1", rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrTypeCoercion)
	assert.Contains(t, err.Error(), "row 1")
	assert.Equal(t, []string{"good"}, titles(fs.creates))
	assert.Equal(t, 1, res.Created)
}

func TestImportDryRun(t *testing.T) {
	fs := newFake()
	imp, buf := newTestImporter(fs, Options{DryRun: true})

	res, err := imp.Import(context.Background(), "db1", numberedRows(2))
	require.NoError(t, err)
	assert.Len(t, fs.queries, 2)
	assert.Empty(t, fs.creates)
	assert.Equal(t, 2, res.Created)
	assert.Contains(t, buf.String(), "[dry-run]")

	fs.matches = []store.Record{{ID: "page-a"}}
	res, err = imp.Import(context.Background(), "db1", numberedRows(1))
	require.NoError(t, err)
	assert.Empty(t, fs.updates)
	assert.Equal(t, 1, res.Updated)
}

func TestImportDropsUnwritableColumnsOnce(t *testing.T) {
	fs := newFake()
	imp, buf := newTestImporter(fs, Options{})

	rows := []mapping.Row{
		row("Name", "a", "Extra", "x", "Due", "2024-01-01"),
		row("Name", "b", "Extra", "y", "Due", "2024-01-02"),
	}
	res, err := imp.Import(context.Background(), "db1", rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Warnings)
	assert.Len(t, warnings(buf), 2)
	for _, p := range fs.creates {
		assert.NotContains(t, p, "Extra")
		assert.NotContains(t, p, "Due")
	}
}

func TestImportAppliesMapping(t *testing.T) {
	fs := newFake()
	cfg := &mapping.Config{
		Map: map[string]mapping.Target{
			"Item Name": {Column: "Name"},
			"Item No":   {Column: "ID"},
		},
		Assign:  mapping.Assignments{{Column: "Category", Value: "Imported"}},
		Primary: mapping.NewPrimarySet("ID"),
	}
	imp, _ := newTestImporter(fs, Options{Mapping: cfg})

	_, err := imp.Import(context.Background(), "db1", []mapping.Row{row("Item Name", "Widget", "Item No", 7, "Ignored", 1)})
	require.NoError(t, err)

	require.Len(t, fs.creates, 1)
	assert.Equal(t, "Widget", fs.creates[0]["Name"].Title[0].Text.Content)
	assert.Equal(t, 7.0, *fs.creates[0]["ID"].Number)
	assert.Equal(t, "Imported", fs.creates[0]["Category"].Select.Name)
	require.Len(t, fs.queries, 1)
	assert.Len(t, fs.queries[0].And, 1)
}

func TestImportSchemaError(t *testing.T) {
	fs := newFake()
	fs.schemaErr = &store.RequestError{Method: "GET", Path: "/v1/databases/db1", Status: 404}
	imp, _ := newTestImporter(fs, Options{})

	res, err := imp.Import(context.Background(), "db1", numberedRows(1))
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Equal(t, 0, res.Processed)
}

func TestImportHonorsCancellation(t *testing.T) {
	fs := newFake()
	imp, _ := newTestImporter(fs, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imp.Import(ctx, "db1", numberedRows(1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.creates)
}

func TestImportIsIdempotentAgainstLocalStore(t *testing.T) {
	ctx := context.Background()
	st, err := local.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.InitSchema(ctx))
	require.NoError(t, st.DefineDatabase(ctx, "db1", "Inventory", testSchema))

	opts := Options{Mapping: &mapping.Config{Primary: mapping.NewPrimarySet("ID")}}
	imp, _ := newTestImporter(st, opts)

	res, err := imp.Import(ctx, "db1", numberedRows(3))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	res, err = imp.Import(ctx, "db1", numberedRows(3))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Updated)

	count, err := st.RecordCount(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
