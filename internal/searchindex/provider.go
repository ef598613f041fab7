// Package searchindex provides the search index provider the applier writes
// to, backed by Elasticsearch.
package searchindex

import (
	"context"
)

// Document is the indexed page model. Fields absent here but present in the
// index schema are preserved by upserts.
type Document struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Provider is the search index provider contract.
type Provider interface {
	// ListIndexes returns the names of all existing indexes.
	ListIndexes(ctx context.Context) ([]string, error)
	// Upsert merges doc into index, inserting it when absent. Never a
	// destructive full replace.
	Upsert(ctx context.Context, index string, doc Document) error
	// Delete removes docID from index. Deleting an absent document is a
	// no-op, not an error.
	Delete(ctx context.Context, index, docID string) error
}
