package sitemap_test

import (
	"testing"

	"github.com/northvine/sitesync/internal/sitemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/page1</loc><lastmod>2024-06-15T10:00:00Z</lastmod></url>
  <url><loc>https://example.com/page2</loc><lastmod>2024-06-16</lastmod></url>
  <url><loc>https://example.com/page3</loc></url>
</urlset>`

const sitemapIndexXML = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://example.com/sitemap-products.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-news.xml</loc></sitemap>
</sitemapindex>`

const emptySitemapXML = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
</urlset>`

const invalidXML = `<not valid xml<<<`

func TestParseSitemap(t *testing.T) {
	t.Parallel()

	urls, err := sitemap.ParseSitemap([]byte(validSitemapXML))
	require.NoError(t, err)
	require.Len(t, urls, 3)

	assert.Equal(t, "https://example.com/page1", urls[0].Loc)
	assert.Equal(t, "2024-06-15T10:00:00Z", urls[0].LastMod)
	assert.Equal(t, "2024-06-16", urls[1].LastMod)
	assert.Empty(t, urls[2].LastMod, "missing lastmod parses as empty string")
}

func TestParseSitemapEmpty(t *testing.T) {
	t.Parallel()

	urls, err := sitemap.ParseSitemap([]byte(emptySitemapXML))
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestParseSitemapInvalid(t *testing.T) {
	t.Parallel()

	_, err := sitemap.ParseSitemap([]byte(invalidXML))
	require.Error(t, err)
}

func TestParseSitemapIndex(t *testing.T) {
	t.Parallel()

	children, err := sitemap.ParseSitemapIndex([]byte(sitemapIndexXML))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/sitemap-products.xml",
		"https://example.com/sitemap-news.xml",
	}, children)
}

func TestIsSitemapIndex(t *testing.T) {
	t.Parallel()

	assert.True(t, sitemap.IsSitemapIndex([]byte(sitemapIndexXML)))
	assert.False(t, sitemap.IsSitemapIndex([]byte(validSitemapXML)))
	assert.False(t, sitemap.IsSitemapIndex([]byte(invalidXML)))
}
