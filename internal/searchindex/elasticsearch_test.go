package searchindex_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/searchindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newESProvider spins up a fake Elasticsearch endpoint and a provider
// pointed at it. The product header is required by the v8 client.
func newESProvider(t *testing.T, handler http.HandlerFunc) *searchindex.Elasticsearch {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return searchindex.NewElasticsearchFromClient(client, logger.NewNop())
}

func TestListIndexes(t *testing.T) {
	t.Parallel()

	provider := newESProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_cat/indices", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"index":"acme-pages"},{"index":"birchwood-pages"}]`))
	})

	names, err := provider.ListIndexes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme-pages", "birchwood-pages"}, names)
}

func TestUpsertUsesDocAsUpsert(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	provider := newESProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme-pages/_update/doc-1", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"updated"}`))
	})

	err := provider.Upsert(context.Background(), "acme-pages", searchindex.Document{
		ID:      "doc-1",
		URL:     "https://acme.example/a",
		Title:   "A",
		Content: "# A",
	})
	require.NoError(t, err)

	assert.Equal(t, true, captured["doc_as_upsert"], "upsert must merge, never replace")
	doc, ok := captured["doc"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://acme.example/a", doc["url"])
}

func TestDeleteNotFoundIsSuccess(t *testing.T) {
	t.Parallel()

	provider := newESProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	})

	err := provider.Delete(context.Background(), "acme-pages", "ghost")
	assert.NoError(t, err, "deleting an absent document is idempotent success")
}

func TestUpsertServerErrorIsIndexError(t *testing.T) {
	t.Parallel()

	provider := newESProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	err := provider.Upsert(context.Background(), "acme-pages", searchindex.Document{ID: "d"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndex)
}

func TestMemoryProviderIdempotentApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := searchindex.NewMemoryProvider("idx")

	doc := searchindex.Document{ID: "d1", URL: "https://x.example", Content: "c"}
	require.NoError(t, provider.Upsert(ctx, "idx", doc))
	require.NoError(t, provider.Upsert(ctx, "idx", doc))
	assert.Equal(t, 1, provider.Len("idx"))

	require.NoError(t, provider.Delete(ctx, "idx", "d1"))
	require.NoError(t, provider.Delete(ctx, "idx", "d1"))
	assert.Equal(t, 0, provider.Len("idx"))
}
