package searchindex

import (
	"context"
	"sync"
)

// MemoryProvider is an in-memory Provider implementation used in tests.
type MemoryProvider struct {
	mu      sync.Mutex
	indexes map[string]map[string]Document

	// FailUpsert, when set, is returned by every Upsert call.
	FailUpsert error
	// FailDelete, when set, is returned by every Delete call.
	FailDelete error
}

// NewMemoryProvider creates a provider with the given pre-existing indexes.
func NewMemoryProvider(indexNames ...string) *MemoryProvider {
	p := &MemoryProvider{indexes: make(map[string]map[string]Document)}
	for _, name := range indexNames {
		p.indexes[name] = make(map[string]Document)
	}
	return p
}

// ListIndexes returns the names of all indexes.
func (p *MemoryProvider) ListIndexes(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.indexes))
	for name := range p.indexes {
		names = append(names, name)
	}
	return names, nil
}

// Upsert merges doc into index.
func (p *MemoryProvider) Upsert(_ context.Context, index string, doc Document) error {
	if p.FailUpsert != nil {
		return p.FailUpsert
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	docs, ok := p.indexes[index]
	if !ok {
		docs = make(map[string]Document)
		p.indexes[index] = docs
	}
	docs[doc.ID] = doc
	return nil
}

// Delete removes docID from index. Deleting an absent document succeeds.
func (p *MemoryProvider) Delete(_ context.Context, index, docID string) error {
	if p.FailDelete != nil {
		return p.FailDelete
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if docs, ok := p.indexes[index]; ok {
		delete(docs, docID)
	}
	return nil
}

// Get returns the stored document, if present.
func (p *MemoryProvider) Get(index, docID string) (Document, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	docs, ok := p.indexes[index]
	if !ok {
		return Document{}, false
	}
	doc, ok := docs[docID]
	return doc, ok
}

// Len returns the number of documents in index.
func (p *MemoryProvider) Len(index string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.indexes[index])
}
