package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabsync/tabsync/internal/query"
	"github.com/tabsync/tabsync/internal/schema"
	"github.com/tabsync/tabsync/internal/store"
)

// fakeAPI records the requests it receives and serves canned responses.
type fakeAPI struct {
	mu           sync.Mutex
	queryBodies  []map[string]any
	createBodies []map[string]any
	updateBodies map[string]map[string]any
	headers      http.Header
}

func newFakeServer(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &fakeAPI{updateBodies: map[string]map[string]any{}}
	r := gin.New()

	r.Use(func(c *gin.Context) {
		api.mu.Lock()
		api.headers = c.Request.Header.Clone()
		api.mu.Unlock()
		if c.GetHeader("Authorization") != "Bearer secret" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"object": "error", "status": 401, "code": "unauthorized", "message": "API token is invalid.",
			})
			return
		}
		c.Next()
	})

	r.GET("/v1/databases/:id", func(c *gin.Context) {
		if c.Param("id") != "db1" {
			c.JSON(http.StatusNotFound, gin.H{
				"object": "error", "status": 404, "code": "object_not_found", "message": "Could not find database",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"object": "database",
			"id":     "db1",
			"properties": gin.H{
				"Name": gin.H{"id": "title", "name": "Name", "type": "title", "title": gin.H{}},
				"ID":   gin.H{"id": "a1", "name": "ID", "type": "number", "number": gin.H{"format": "number"}},
				"Due":  gin.H{"id": "a2", "name": "Due", "type": "date", "date": gin.H{}},
			},
		})
	})

	r.POST("/v1/databases/:id/query", func(c *gin.Context) {
		var body map[string]any
		assert.NoError(t, c.ShouldBindJSON(&body))
		api.mu.Lock()
		defer api.mu.Unlock()
		api.queryBodies = append(api.queryBodies, body)
		c.JSON(http.StatusOK, gin.H{
			"object": "list",
			"results": []gin.H{{
				"object":           "page",
				"id":               "page-1",
				"created_time":     "2024-03-01T10:00:00.000Z",
				"last_edited_time": "2024-03-02T10:00:00.000Z",
				"properties": gin.H{
					"Name": gin.H{"id": "title", "type": "title", "title": []gin.H{{"plain_text": "Widget"}}},
				},
			}},
			"next_cursor": nil,
			"has_more":    false,
		})
	})

	r.POST("/v1/pages", func(c *gin.Context) {
		var body map[string]any
		assert.NoError(t, c.ShouldBindJSON(&body))
		api.mu.Lock()
		defer api.mu.Unlock()
		api.createBodies = append(api.createBodies, body)
		c.JSON(http.StatusOK, gin.H{"object": "page", "id": "page-new", "properties": gin.H{}})
	})

	r.PATCH("/v1/pages/:id", func(c *gin.Context) {
		var body map[string]any
		assert.NoError(t, c.ShouldBindJSON(&body))
		api.mu.Lock()
		api.updateBodies[c.Param("id")] = body
		api.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"object": "page", "id": c.Param("id"), "properties": gin.H{}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return api, srv
}

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := New(&Config{Token: token, BaseURL: baseURL})
	require.NoError(t, err)
	return c
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestRetrieveSchema(t *testing.T) {
	api, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "secret")

	s, err := c.RetrieveSchema(context.Background(), "db1")
	require.NoError(t, err)

	assert.Equal(t, schema.Title, s["Name"].Type)
	assert.Equal(t, schema.Number, s["ID"].Type)
	assert.Equal(t, schema.Unsupported, s["Due"].Type)
	assert.Equal(t, "date", s["Due"].TypeName)
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, defaultAPIVersion, api.headers.Get("Notion-Version"))
}

func TestRetrieveSchemaNotFound(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "secret")

	_, err := c.RetrieveSchema(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	var re *store.RequestError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "object_not_found", re.Code)
	assert.Equal(t, "Could not find database", re.Message)
}

func TestUnauthorized(t *testing.T) {
	_, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "wrong")

	_, err := c.Query(context.Background(), "db1", query.Filter{})
	require.Error(t, err)
	assert.True(t, store.IsUnauthorized(err))
}

func TestQuerySendsFilter(t *testing.T) {
	api, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "secret")

	f := query.Filter{And: []query.Predicate{{
		Property: "ID",
		Number:   &query.NumberCondition{Equals: 42},
	}}}
	res, err := c.Query(context.Background(), "db1", f)
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.queryBodies, 1)
	data, err := json.Marshal(api.queryBodies[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"filter":{"and":[{"property":"ID","number":{"equals":42}}]}}`, string(data))

	assert.Equal(t, []string{"page-1"}, res.IDs())
	assert.Equal(t, 2024, res.Results[0].CreatedTime.Year())
	assert.NotEmpty(t, res.Raw)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, string(res.Raw), string(out))
}

func TestQueryOmitsEmptyFilter(t *testing.T) {
	api, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "secret")

	_, err := c.Query(context.Background(), "db1", query.Filter{})
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.queryBodies, 1)
	assert.Empty(t, api.queryBodies[0])
}

func TestCreateAndUpdate(t *testing.T) {
	api, srv := newFakeServer(t)
	c := newTestClient(t, srv.URL, "secret")

	title, err := schema.Encode(schema.Title, "Widget")
	require.NoError(t, err)
	props := schema.Properties{"Name": title}

	rec, err := c.CreateRecord(context.Background(), "db1", props)
	require.NoError(t, err)
	assert.Equal(t, "page-new", rec.ID)

	api.mu.Lock()
	created := api.createBodies
	api.mu.Unlock()
	require.Len(t, created, 1)
	data, err := json.Marshal(created[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"parent": {"database_id": "db1"},
		"properties": {"Name": {"title": [{"text": {"content": "Widget"}}]}}
	}`, string(data))

	rec, err = c.UpdateRecord(context.Background(), "page-1", props)
	require.NoError(t, err)
	assert.Equal(t, "page-1", rec.ID)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Contains(t, api.updateBodies, "page-1")
	assert.Contains(t, api.updateBodies["page-1"], "properties")
}
