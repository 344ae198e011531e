// Package store defines the contract of the remote structured store that
// rows are imported into and dumped from.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
)

// Store is the set of remote operations the importer and dumper consume.
//
// Every call is a blocking request/response. Implementations do not retry.
type Store interface {
	// RetrieveSchema returns the column descriptors of a database.
	RetrieveSchema(ctx context.Context, databaseID string) (schema.Schema, error)

	// Query returns the first page of records matching filter. An empty
	// filter matches every record.
	Query(ctx context.Context, databaseID string, filter query.Filter) (*QueryResult, error)

	// CreateRecord adds a record to a database.
	CreateRecord(ctx context.Context, databaseID string, props schema.Properties) (*Record, error)

	// UpdateRecord overwrites the given properties of an existing record.
	// Properties not in props are left untouched.
	UpdateRecord(ctx context.Context, recordID string, props schema.Properties) (*Record, error)
}

// Record is an existing remote entity. Properties keep their raw wire form;
// see package simplify for a flattened view.
type Record struct {
	Object         string                     `json:"object"`
	ID             string                     `json:"id"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Archived       bool                       `json:"archived"`
	URL            string                     `json:"url,omitempty"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

// QueryResult is one page of query results.
type QueryResult struct {
	Object     string   `json:"object"`
	Results    []Record `json:"results"`
	NextCursor *string  `json:"next_cursor"`
	HasMore    bool     `json:"has_more"`

	// Raw is the response body as received, used for verbatim dumps.
	// It is nil for stores that do not talk JSON.
	Raw json.RawMessage `json:"-"`
}

// IDs returns the ids of the records in result order.
func (r *QueryResult) IDs() []string {
	ids := make([]string, len(r.Results))
	for i, rec := range r.Results {
		ids[i] = rec.ID
	}
	return ids
}

// MarshalJSON returns Raw when present so dumps reproduce the remote response.
func (r *QueryResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain QueryResult
	return json.Marshal((*plain)(r))
}
