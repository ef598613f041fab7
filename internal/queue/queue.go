// Package queue provides the durable work queues connecting the pipeline
// stages, backed by Redis Streams. Delivery is at-least-once: consumers must
// be idempotent.
package queue

import (
	"context"
	"time"
)

// Message is one item delivered from a queue.
type Message struct {
	// ID is the delivery id assigned by the queue backend.
	ID string
	// Payload is the opaque record body.
	Payload []byte
	// DedupeKey is the enqueue-time dedupe key, if any.
	DedupeKey string
	// EnqueuedAt is when the item was first enqueued.
	EnqueuedAt time.Time
}

// Queue is a durable append/ack/reclaim queue.
type Queue interface {
	// Enqueue appends an item. dedupeKey identifies the enqueue so
	// legitimate re-changes of the same record are never silently merged.
	Enqueue(ctx context.Context, payload []byte, dedupeKey string) (string, error)
	// FetchNext returns the next undelivered item, or nil when the queue
	// is empty. Fetched items stay pending until acked or reclaimed.
	FetchNext(ctx context.Context) (*Message, error)
	// Ack marks the item as done and removes it from the queue.
	Ack(ctx context.Context, msg *Message) error
	// Reclaim returns the item to the queue for redelivery.
	Reclaim(ctx context.Context, msg *Message) error
}
