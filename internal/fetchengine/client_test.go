package fetchengine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/fetchengine"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngineServer simulates the crawl engine API: one job that succeeds
// after a configurable number of status polls.
type fakeEngineServer struct {
	srv         *httptest.Server
	polls       atomic.Int32
	pollsNeeded int32
	finalStatus string
	results     []fetchengine.PageResult
	submitted   chan fetchengine.JobRequest
}

func newFakeEngine(t *testing.T, pollsNeeded int32, finalStatus string, results []fetchengine.PageResult) *fakeEngineServer {
	t.Helper()

	f := &fakeEngineServer{
		pollsNeeded: pollsNeeded,
		finalStatus: finalStatus,
		results:     results,
		submitted:   make(chan fetchengine.JobRequest, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req fetchengine.JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.submitted <- req
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "RUNNING"})
	})
	mux.HandleFunc("GET /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		datasetID := ""
		if f.polls.Add(1) >= f.pollsNeeded {
			status = f.finalStatus
			if status == "SUCCEEDED" {
				datasetID = "ds-1"
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id": "job-1", "status": status, "datasetId": datasetID,
		})
	})
	mux.HandleFunc("GET /datasets/ds-1/items", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.results)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(f *fakeEngineServer) *fetchengine.Client {
	return fetchengine.NewClient(f.srv.URL, "test-key", logger.NewNop(),
		fetchengine.WithTimeout(5*time.Second),
		fetchengine.WithPollInterval(5*time.Millisecond))
}

func TestRunReturnsDatasetResults(t *testing.T) {
	t.Parallel()

	pages := []fetchengine.PageResult{
		{URL: "https://acme.example/a", Markdown: "# A", Metadata: fetchengine.PageMetadata{Title: "A"}},
		{URL: "https://acme.example/b", Markdown: "# B", Metadata: fetchengine.PageMetadata{Title: "B"}},
	}
	f := newFakeEngine(t, 2, "SUCCEEDED", pages)

	got, err := newTestClient(f).Run(context.Background(), fetchengine.JobRequest{
		StartURLs: []string{"https://acme.example/a", "https://acme.example/b"},
		MaxPages:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, pages, got)

	req := <-f.submitted
	assert.Equal(t, []string{"https://acme.example/a", "https://acme.example/b"}, req.StartURLs)
	assert.Equal(t, 100, req.MaxPages)
}

func TestRunJobFailureIsFetchError(t *testing.T) {
	t.Parallel()

	f := newFakeEngine(t, 1, "FAILED", nil)

	_, err := newTestClient(f).Run(context.Background(), fetchengine.JobRequest{
		StartURLs: []string{"https://acme.example/a"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestRunSucceededWithoutDatasetIsFetchError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "SUCCEEDED"})
	})
	mux.HandleFunc("GET /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "SUCCEEDED"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := fetchengine.NewClient(srv.URL, "", logger.NewNop(),
		fetchengine.WithTimeout(time.Second),
		fetchengine.WithPollInterval(time.Millisecond))

	_, err := client.Run(context.Background(), fetchengine.JobRequest{
		StartURLs: []string{"https://acme.example/a"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestRunEmptyStartURLsIsConfigError(t *testing.T) {
	t.Parallel()

	f := newFakeEngine(t, 1, "SUCCEEDED", nil)

	_, err := newTestClient(f).Run(context.Background(), fetchengine.JobRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}
