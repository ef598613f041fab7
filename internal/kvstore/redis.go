package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// keyPrefixFormat namespaces store records as kv:<store>:<key>.
const keyPrefixFormat = "kv:%s:"

// scanBatchSize is the COUNT hint for SCAN iterations.
const scanBatchSize = 250

// RedisStore implements Store on top of Redis string values.
type RedisStore struct {
	client *redis.Client
	name   string
	prefix string
}

// NewRedisStore creates a store named name on the given client.
func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{
		client: client,
		name:   name,
		prefix: fmt.Sprintf(keyPrefixFormat, name),
	}
}

// Name returns the store's name.
func (s *RedisStore) Name() string {
	return s.name
}

// Get returns the value for key, or absent when the key does not exist.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %q from store %q: %w", key, s.name, err)
	}
	return val, true, nil
}

// Put writes value under key as a whole-value replace.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("put %q to store %q: %w", key, s.name, err)
	}
	return nil
}

// Keys returns all keys in the store, with the store prefix stripped.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan store %q: %w", s.name, err)
	}
	return keys, nil
}

// RedisOpener opens RedisStore handles, caching them per name.
type RedisOpener struct {
	client *redis.Client
	mu     sync.Mutex
	stores map[string]Store
}

// NewRedisOpener creates an Opener backed by the given Redis client.
func NewRedisOpener(client *redis.Client) *RedisOpener {
	return &RedisOpener{
		client: client,
		stores: make(map[string]Store),
	}
}

// Open returns the store named name, creating the handle on first use.
func (o *RedisOpener) Open(name string) Store {
	o.mu.Lock()
	defer o.mu.Unlock()

	if s, ok := o.stores[name]; ok {
		return s
	}
	s := NewRedisStore(o.client, name)
	o.stores[name] = s
	return s
}
