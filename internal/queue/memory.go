package queue

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryQueue is an in-memory Queue implementation used in tests. It mirrors
// the Redis behavior: fetched items stay pending until acked, and reclaimed
// items are re-appended for redelivery.
type MemoryQueue struct {
	mu      sync.Mutex
	nextID  int
	ready   []*Message
	pending map[string]*Message
	acked   []*Message

	// FailEnqueue, when set, is returned by every Enqueue call.
	FailEnqueue error
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: make(map[string]*Message)}
}

// Enqueue appends an item.
func (q *MemoryQueue) Enqueue(_ context.Context, payload []byte, dedupeKey string) (string, error) {
	if q.FailEnqueue != nil {
		return "", q.FailEnqueue
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	msg := &Message{
		ID:         strconv.Itoa(q.nextID),
		Payload:    append([]byte(nil), payload...),
		DedupeKey:  dedupeKey,
		EnqueuedAt: time.Now().UTC(),
	}
	q.ready = append(q.ready, msg)
	return msg.ID, nil
}

// FetchNext returns the next ready item, or nil when none remain.
func (q *MemoryQueue) FetchNext(_ context.Context) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 {
		return nil, nil
	}
	msg := q.ready[0]
	q.ready = q.ready[1:]
	q.pending[msg.ID] = msg
	return msg, nil
}

// Ack removes the item.
func (q *MemoryQueue) Ack(_ context.Context, msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, msg.ID)
	q.acked = append(q.acked, msg)
	return nil
}

// Reclaim re-appends the item for redelivery.
func (q *MemoryQueue) Reclaim(_ context.Context, msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, msg.ID)
	q.nextID++
	q.ready = append(q.ready, &Message{
		ID:         strconv.Itoa(q.nextID),
		Payload:    msg.Payload,
		DedupeKey:  msg.DedupeKey,
		EnqueuedAt: msg.EnqueuedAt,
	})
	return nil
}

// ReadyLen returns the number of items awaiting delivery.
func (q *MemoryQueue) ReadyLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// PendingLen returns the number of delivered-but-unacked items.
func (q *MemoryQueue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Acked returns all acknowledged messages in ack order.
func (q *MemoryQueue) Acked() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Message(nil), q.acked...)
}
