package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-resource/pkg/simpleresource"
	backupmemory "github.com/tendant/simple-resource/pkg/simpleresource/backup/memory"
	storememory "github.com/tendant/simple-resource/pkg/simpleresource/store/memory"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := simpleresource.New(
		simpleresource.WithPrimaryStore(storememory.New()),
		simpleresource.WithBackupStore(backupmemory.New()),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/resources", NewResourceHandler(svc).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func createResource(t *testing.T, server *httptest.Server, category string, data map[string]interface{}) simpleresource.Resource {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"category": category,
		"data":     data,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/resources/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal-Id", "user-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created simpleresource.Resource
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func TestCreateResourceEndpoint(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		server := setupTestServer(t)

		body := `{"category": "product", "data": {"name": "widget"}}`
		req, err := http.NewRequest(http.MethodPost, server.URL+"/resources/", bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Principal-Id", "user-1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var created simpleresource.Resource
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, simpleresource.CategoryProduct, created.Category)
		assert.Equal(t, "user-1", created.Owner)
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, "/resources/"+created.ID, resp.Header.Get("Location"))
	})

	t.Run("missing principal defaults to anonymous", func(t *testing.T) {
		server := setupTestServer(t)

		body := `{"category": "product", "data": {"name": "widget"}}`
		resp, err := http.Post(server.URL+"/resources/", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		var created simpleresource.Resource
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, "anonymous", created.Owner)
	})

	t.Run("invalid category", func(t *testing.T) {
		server := setupTestServer(t)

		body := `{"category": "gadgetry", "data": {"name": "widget"}}`
		resp, err := http.Post(server.URL+"/resources/", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var e struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		assert.NotEmpty(t, e.Error)
		assert.NotEmpty(t, e.RequestID)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Post(server.URL+"/resources/", "application/json", bytes.NewBufferString("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing data", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Post(server.URL+"/resources/", "application/json", bytes.NewBufferString(`{"category": "product"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetResourceEndpoint(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := setupTestServer(t)
		created := createResource(t, server, "product", map[string]interface{}{"name": "widget"})

		resp, err := http.Get(server.URL + "/resources/" + created.ID)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `"1"`, resp.Header.Get("ETag"))
		assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=300")

		var got simpleresource.Resource
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Get(server.URL + "/resources/missing?category=product")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListResourcesEndpoint(t *testing.T) {
	t.Run("paginates with the returned token", func(t *testing.T) {
		server := setupTestServer(t)
		for i := 0; i < 3; i++ {
			createResource(t, server, "product", map[string]interface{}{"seq": i})
		}

		resp, err := http.Get(server.URL + "/resources/?category=product&limit=2")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page1 simpleresource.ResourceList
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page1))
		assert.Len(t, page1.Items, 2)
		require.NotEmpty(t, page1.NextToken)

		resp2, err := http.Get(fmt.Sprintf("%s/resources/?category=product&limit=2&next_token=%s", server.URL, page1.NextToken))
		require.NoError(t, err)
		defer resp2.Body.Close()
		require.Equal(t, http.StatusOK, resp2.StatusCode)

		var page2 simpleresource.ResourceList
		require.NoError(t, json.NewDecoder(resp2.Body).Decode(&page2))
		assert.Len(t, page2.Items, 1)
		assert.Empty(t, page2.NextToken)
	})

	t.Run("invalid category", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Get(server.URL + "/resources/?category=everything")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-integer limit", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Get(server.URL + "/resources/?category=product&limit=lots")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid start_date", func(t *testing.T) {
		server := setupTestServer(t)

		resp, err := http.Get(server.URL + "/resources/?category=product&start_date=yesterday")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestUpdateResourceEndpoint(t *testing.T) {
	t.Run("applies field updates", func(t *testing.T) {
		server := setupTestServer(t)
		created := createResource(t, server, "product", map[string]interface{}{"name": "widget"})

		body := `{"name": "gadget"}`
		req, err := http.NewRequest(http.MethodPut, server.URL+"/resources/"+created.ID, bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Principal-Id", "user-2")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, `"2"`, resp.Header.Get("ETag"))

		var updated simpleresource.Resource
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.Equal(t, "gadget", updated.Data["name"])
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "user-2", updated.UpdatedBy)
	})

	t.Run("missing resource", func(t *testing.T) {
		server := setupTestServer(t)

		req, err := http.NewRequest(http.MethodPut, server.URL+"/resources/missing", bytes.NewBufferString(`{"name": "gadget"}`))
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("empty field set", func(t *testing.T) {
		server := setupTestServer(t)
		created := createResource(t, server, "product", map[string]interface{}{"name": "widget"})

		req, err := http.NewRequest(http.MethodPut, server.URL+"/resources/"+created.ID, bytes.NewBufferString(`{}`))
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDeleteResourceEndpoint(t *testing.T) {
	t.Run("returns the archived record", func(t *testing.T) {
		server := setupTestServer(t)
		created := createResource(t, server, "product", map[string]interface{}{"name": "widget"})

		req, err := http.NewRequest(http.MethodDelete, server.URL+"/resources/"+created.ID+"?category=product", nil)
		require.NoError(t, err)
		req.Header.Set("X-Principal-Id", "admin-1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var archived simpleresource.ArchivedResource
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&archived))
		assert.Equal(t, created.ID, archived.ID)
		assert.Equal(t, "admin-1", archived.DeletedBy)
		assert.False(t, archived.DeletedAt.IsZero())

		// The record is gone afterward.
		getResp, err := http.Get(server.URL + "/resources/" + created.ID + "?category=product")
		require.NoError(t, err)
		defer getResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
	})

	t.Run("missing resource", func(t *testing.T) {
		server := setupTestServer(t)

		req, err := http.NewRequest(http.MethodDelete, server.URL+"/resources/missing?category=product", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
