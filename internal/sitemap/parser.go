// Package sitemap fetches and parses sitemap XML, expanding sitemap index
// files into a flat list of URL entries.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/northvine/sitesync/internal/domain"
)

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// ParseSitemap parses standard sitemap XML and returns the contained URLs.
// LastMod values are kept verbatim (trimmed); an absent lastmod is the empty
// string.
func ParseSitemap(body []byte) ([]domain.URLRecord, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	records := make([]domain.URLRecord, 0, len(urlset.URLs))
	for i := range urlset.URLs {
		entry := &urlset.URLs[i]
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		records = append(records, domain.URLRecord{
			Loc:     loc,
			LastMod: strings.TrimSpace(entry.LastMod),
		})
	}

	return records, nil
}

// ParseSitemapIndex parses a sitemap index XML file and returns the URLs of
// all child sitemaps listed within it.
func ParseSitemapIndex(body []byte) ([]string, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}

	return urls, nil
}

// IsSitemapIndex reports whether the document's root element is a sitemap
// index rather than a urlset.
func IsSitemapIndex(body []byte) bool {
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local == "sitemapindex"
		}
	}
}
