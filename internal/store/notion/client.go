// Package notion implements store.Store against the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
)

const (
	defaultBaseURL    = "https://api.notion.com"
	defaultAPIVersion = "2022-06-28"
	maxErrorBody      = 64 * 1024
)

// Config configures a Client.
type Config struct {
	// Token is the integration bearer token. Required.
	Token string

	// BaseURL defaults to https://api.notion.com.
	BaseURL string

	// APIVersion is sent as the Notion-Version header.
	APIVersion string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil. Zero means no timeout.
	Timeout time.Duration

	// Logger receives one line per request when non-nil.
	Logger *log.Logger
}

// Client talks to the Notion API. It issues one request at a time per call
// and never retries.
type Client struct {
	token      string
	baseURL    string
	apiVersion string
	http       *http.Client
	logger     *log.Logger
}

var _ store.Store = (*Client)(nil)

// New creates a Client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("notion client requires a token")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		http:       httpClient,
		logger:     cfg.Logger,
	}, nil
}

type databaseResponse struct {
	Object     string        `json:"object"`
	ID         string        `json:"id"`
	Properties schema.Schema `json:"properties"`
}

// RetrieveSchema implements store.Store.
func (c *Client) RetrieveSchema(ctx context.Context, databaseID string) (schema.Schema, error) {
	var db databaseResponse
	if _, err := c.do(ctx, http.MethodGet, "/v1/databases/"+url.PathEscape(databaseID), nil, &db); err != nil {
		return nil, fmt.Errorf("failed to retrieve database %s: %w", databaseID, err)
	}
	return db.Properties, nil
}

type queryRequest struct {
	Filter *query.Filter `json:"filter,omitempty"`
}

// Query implements store.Store. Only the first page is fetched.
func (c *Client) Query(ctx context.Context, databaseID string, filter query.Filter) (*store.QueryResult, error) {
	req := queryRequest{}
	if !filter.IsEmpty() {
		req.Filter = &filter
	}

	var result store.QueryResult
	raw, err := c.do(ctx, http.MethodPost, "/v1/databases/"+url.PathEscape(databaseID)+"/query", req, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to query database %s: %w", databaseID, err)
	}
	result.Raw = raw
	return &result, nil
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createRequest struct {
	Parent     parent            `json:"parent"`
	Properties schema.Properties `json:"properties"`
}

// CreateRecord implements store.Store.
func (c *Client) CreateRecord(ctx context.Context, databaseID string, props schema.Properties) (*store.Record, error) {
	req := createRequest{
		Parent:     parent{DatabaseID: databaseID},
		Properties: props,
	}

	var rec store.Record
	if _, err := c.do(ctx, http.MethodPost, "/v1/pages", req, &rec); err != nil {
		return nil, fmt.Errorf("failed to create page in %s: %w", databaseID, err)
	}
	return &rec, nil
}

type updateRequest struct {
	Properties schema.Properties `json:"properties"`
}

// UpdateRecord implements store.Store.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, props schema.Properties) (*store.Record, error) {
	var rec store.Record
	if _, err := c.do(ctx, http.MethodPatch, "/v1/pages/"+url.PathEscape(recordID), updateRequest{Properties: props}, &rec); err != nil {
		return nil, fmt.Errorf("failed to update page %s: %w", recordID, err)
	}
	return &rec, nil
}

type errorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do sends one request and decodes a 2xx JSON body into out. The raw body is
// returned alongside. Non-2xx responses become *store.RequestError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Printf("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reqErr := &store.RequestError{Method: method, Path: path, Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil {
			reqErr.Code = er.Code
			reqErr.Message = er.Message
		} else {
			reqErr.Message = strings.TrimSpace(string(data))
		}
		return nil, reqErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return data, nil
}
