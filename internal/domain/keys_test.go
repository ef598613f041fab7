package domain_test

import (
	"testing"
	"time"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIDDeterministic(t *testing.T) {
	t.Parallel()

	url := "https://example.com/wines/pinot-noir?vintage=2021"
	assert.Equal(t, domain.DocumentID(url), domain.DocumentID(url))
}

func TestDocumentIDInjective(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com/a",
		"https://example.com/a/",
		"https://example.com/b",
		"https://example.com/a?x=1",
		"https://example.com/a#frag",
	}

	seen := make(map[string]string, len(urls))
	for _, u := range urls {
		id := domain.DocumentID(u)
		prev, dup := seen[id]
		require.False(t, dup, "id collision between %q and %q", prev, u)
		seen[id] = u
	}
}

func TestDocumentIDRoundTrip(t *testing.T) {
	t.Parallel()

	url := "https://example.com/products/merlot (2019)"
	id := domain.DocumentID(url)

	decoded, err := domain.URLFromDocumentID(id)
	require.NoError(t, err)
	assert.Equal(t, url, decoded)
}

func TestDocumentIDIsURLSafe(t *testing.T) {
	t.Parallel()

	id := domain.DocumentID("https://example.com/a?b=c&d=e/f")
	assert.NotContains(t, id, "+")
	assert.NotContains(t, id, "/")
	assert.NotContains(t, id, "=")
}

func TestPageKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tenantID string
		url      string
		want     string
	}{
		{
			name:     "plain url",
			tenantID: "acme",
			url:      "https://example.com/about",
			want:     "acme_https---example.com-about",
		},
		{
			name:     "preserved punctuation",
			tenantID: "acme",
			url:      "page_(v1).html",
			want:     "acme_page_(v1).html",
		},
		{
			name:     "query and unicode collapse to dashes",
			tenantID: "t1",
			url:      "a?b=c&sélection",
			want:     "t1_a-b-c-s--lection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, domain.PageKey(tt.tenantID, tt.url))
		})
	}
}

func TestDeliveryKeyDistinguishesEnqueues(t *testing.T) {
	t.Parallel()

	loc := "https://example.com/changed"
	k1 := domain.DeliveryKey("acme", loc, time.UnixMilli(1700000000000))
	k2 := domain.DeliveryKey("acme", loc, time.UnixMilli(1700000000001))

	assert.NotEqual(t, k1, k2, "same loc enqueued at different times must not dedupe")
	assert.Contains(t, k1, "acme:")
}
