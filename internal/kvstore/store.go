// Package kvstore provides named durable key-value stores backed by Redis.
// Each store is a flat namespace of whole-value records: snapshots, parsed
// pages, tenant configs, and the main run configuration all live in stores
// resolved by name.
package kvstore

import (
	"context"
)

// Store is a durable key-value store with whole-value replace semantics.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put writes value under key, replacing any previous value atomically.
	Put(ctx context.Context, key string, value []byte) error
	// Keys returns all keys currently present in the store.
	Keys(ctx context.Context) ([]string, error)
	// Name returns the store's name.
	Name() string
}

// Opener resolves store handles by name. Implementations cache handles so
// repeated opens of the same store are cheap.
type Opener interface {
	Open(name string) Store
}
