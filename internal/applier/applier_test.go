package applier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/queue"
	"github.com/northvine/sitesync/internal/searchindex"
	"github.com/northvine/sitesync/internal/tenant"
)

// fixture wires an applier over in-memory collaborators with one configured
// tenant "acme" whose index exists.
type fixture struct {
	applier *Applier
	actions *queue.MemoryQueue
	stores  *kvstore.MemoryOpener
	index   *searchindex.MemoryProvider
}

func newFixture(t *testing.T, indexNames ...string) *fixture {
	t.Helper()

	tenantsStore := kvstore.NewMemoryStore("tenants")
	putTenant(t, tenantsStore, domain.TenantConfig{
		TenantID:        "acme",
		SitemapURL:      "https://acme.example.com/sitemap.xml",
		SiteURL:         "https://acme.example.com",
		ResultStoreName: "acme-results",
		IndexName:       "acme-index",
	})

	actions := queue.NewMemoryQueue()
	stores := kvstore.NewMemoryOpener()
	index := searchindex.NewMemoryProvider(indexNames...)
	loader := tenant.NewLoader(tenantsStore, logger.NewNop())

	return &fixture{
		applier: New(actions, loader, stores, index, logger.NewNop()),
		actions: actions,
		stores:  stores,
		index:   index,
	}
}

func putTenant(t *testing.T, store kvstore.Store, cfg domain.TenantConfig) {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), cfg.TenantID, raw))
}

func (f *fixture) putPage(t *testing.T, page domain.ParsedPage) string {
	t.Helper()
	raw, err := json.Marshal(page)
	require.NoError(t, err)
	key := domain.PageKey(page.TenantID, page.URL)
	require.NoError(t, f.stores.Open("acme-results").Put(context.Background(), key, raw))
	return key
}

func (f *fixture) enqueue(t *testing.T, rec domain.IndexActionRecord) {
	t.Helper()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	_, err = f.actions.Enqueue(context.Background(), raw, "")
	require.NoError(t, err)
}

func TestRunUpsertsFetchedPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	url := "https://acme.example.com/wines/red"
	key := f.putPage(t, domain.ParsedPage{
		URL:      url,
		TenantID: "acme",
		Markdown: "# Red wines",
		Title:    "Red Wines",
	})
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: url, Action: domain.ActionMergeOrUpload, ResultKey: key,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	doc, ok := f.index.Get("acme-index", domain.DocumentID(url))
	require.True(t, ok)
	assert.Equal(t, url, doc.URL)
	assert.Equal(t, "Red Wines", doc.Title)
	assert.Equal(t, "# Red wines", doc.Content)

	assert.Len(t, f.actions.Acked(), 1)
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunDeletesDocument(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	url := "https://acme.example.com/gone"
	docID := domain.DocumentID(url)
	require.NoError(t, f.index.Upsert(context.Background(), "acme-index", searchindex.Document{ID: docID, URL: url}))

	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: url, Action: domain.ActionDelete,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	_, ok := f.index.Get("acme-index", docID)
	assert.False(t, ok)
	assert.Len(t, f.actions.Acked(), 1)
}

func TestRunDeleteOfAbsentDocumentSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: "https://acme.example.com/never-indexed", Action: domain.ActionDelete,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Len(t, f.actions.Acked(), 1)
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunIsIdempotentOnRedelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	url := "https://acme.example.com/wines/white"
	key := f.putPage(t, domain.ParsedPage{
		URL:      url,
		TenantID: "acme",
		Markdown: "# White wines",
		Title:    "White Wines",
	})

	// The same action delivered twice, as at-least-once permits.
	for range 2 {
		f.enqueue(t, domain.IndexActionRecord{
			TenantID: "acme", URL: url, Action: domain.ActionMergeOrUpload, ResultKey: key,
		})
	}

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Equal(t, 1, f.index.Len("acme-index"), "duplicate deliveries converge on one document")
	assert.Len(t, f.actions.Acked(), 2)
}

func TestRunDropsActionWhenIndexMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "some-other-index")
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: "https://acme.example.com/a", Action: domain.ActionDelete,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Len(t, f.actions.Acked(), 1, "missing index cannot heal on redelivery")
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunRetriesWhenParsedPageMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	url := "https://acme.example.com/late"
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: url, Action: domain.ActionMergeOrUpload,
		ResultKey: domain.PageKey("acme", url),
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Empty(t, f.actions.Acked())
	assert.Equal(t, 1, f.actions.ReadyLen(), "action redelivered once the page exists")
	assert.Zero(t, f.index.Len("acme-index"))
}

func TestRunRetriesOnUpsertFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	f.index.FailUpsert = errors.New("cluster unavailable")

	url := "https://acme.example.com/a"
	key := f.putPage(t, domain.ParsedPage{URL: url, TenantID: "acme", Markdown: "x"})
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: url, Action: domain.ActionMergeOrUpload, ResultKey: key,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Empty(t, f.actions.Acked())
	assert.Equal(t, 1, f.actions.ReadyLen())
}

func TestRunDropsActionForUnknownTenant(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "ghost", URL: "https://ghost.example.com/a", Action: domain.ActionDelete,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Len(t, f.actions.Acked(), 1)
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunDropsUnknownAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: "https://acme.example.com/a", Action: "replace",
	})

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Len(t, f.actions.Acked(), 1)
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunDropsUndecodablePayload(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	_, err := f.actions.Enqueue(context.Background(), []byte("not json"), "")
	require.NoError(t, err)

	require.NoError(t, f.applier.Run(context.Background()))

	assert.Len(t, f.actions.Acked(), 1)
	assert.Zero(t, f.actions.ReadyLen())
}

func TestRunIsolatesActionFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "acme-index")
	good := "https://acme.example.com/good"
	key := f.putPage(t, domain.ParsedPage{URL: good, TenantID: "acme", Markdown: "ok", Title: "Good"})

	// First action's page is missing, second applies fine.
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: "https://acme.example.com/missing",
		Action: domain.ActionMergeOrUpload, ResultKey: domain.PageKey("acme", "https://acme.example.com/missing"),
	})
	f.enqueue(t, domain.IndexActionRecord{
		TenantID: "acme", URL: good, Action: domain.ActionMergeOrUpload, ResultKey: key,
	})

	require.NoError(t, f.applier.Run(context.Background()))

	_, ok := f.index.Get("acme-index", domain.DocumentID(good))
	assert.True(t, ok)
	assert.Len(t, f.actions.Acked(), 1)
	assert.Equal(t, 1, f.actions.ReadyLen())
}
