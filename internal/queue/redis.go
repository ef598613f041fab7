package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// payloadField is the stream field holding the serialized record.
	payloadField = "payload"
	// dedupeKeyField is the stream field holding the enqueue dedupe key.
	dedupeKeyField = "dedupe_key"
	// enqueuedAtField is the stream field holding the enqueue timestamp.
	enqueuedAtField = "enqueued_at"

	// defaultClaimMinIdle is how long a fetched-but-unacked message stays
	// owned by a dead consumer before another fetch picks it up.
	defaultClaimMinIdle = 5 * time.Minute

	// consumerIDBytes is the length of the random consumer name suffix.
	consumerIDBytes = 8
)

// RedisQueue implements Queue on a single Redis Stream with one consumer
// group per consuming stage.
type RedisQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumer     string
	claimMinIdle time.Duration
}

// RedisQueueConfig holds configuration for a RedisQueue.
type RedisQueueConfig struct {
	// Name is the logical queue name.
	Name string
	// Group is the consumer group, conventionally the consuming stage.
	Group string
	// ClaimMinIdle overrides the re-delivery idle threshold (0 = default).
	ClaimMinIdle time.Duration
}

// NewRedisQueue creates the queue and its consumer group if absent.
func NewRedisQueue(ctx context.Context, client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Name == "" {
		return nil, errors.New("queue name is required")
	}
	if cfg.Group == "" {
		return nil, errors.New("consumer group is required")
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = defaultClaimMinIdle
	}

	q := &RedisQueue{
		client:       client,
		stream:       "queue:" + cfg.Name,
		group:        cfg.Group,
		consumer:     cfg.Group + "-" + uuid.NewString()[:consumerIDBytes],
		claimMinIdle: claimMinIdle,
	}

	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group for %s: %w", q.stream, err)
	}

	return q, nil
}

// Enqueue appends an item to the stream.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte, dedupeKey string) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			payloadField:    string(payload),
			dedupeKeyField:  dedupeKey,
			enqueuedAtField: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue to %s: %w", q.stream, err)
	}
	return id, nil
}

// FetchNext returns the next item, preferring messages abandoned by dead
// consumers before reading new ones. Returns nil when the queue is empty.
func (q *RedisQueue) FetchNext(ctx context.Context) (*Message, error) {
	if msg, err := q.claimAbandoned(ctx); err != nil || msg != nil {
		return msg, err
	}
	return q.readNew(ctx)
}

// claimAbandoned picks up one message whose consumer stopped acking.
func (q *RedisQueue) claimAbandoned(ctx context.Context) (*Message, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.claimMinIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("autoclaim from %s: %w", q.stream, err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}
	return parseMessage(claimed[0])
}

// readNew reads one new message without blocking.
func (q *RedisQueue) readNew(ctx context.Context) (*Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from %s: %w", q.stream, err)
	}

	for _, s := range streams {
		for i := range s.Messages {
			return parseMessage(s.Messages[i])
		}
	}
	return nil, nil
}

// Ack acknowledges the message and trims it from the stream.
func (q *RedisQueue) Ack(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, msg.ID)
	pipe.XDel(ctx, q.stream, msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack %s on %s: %w", msg.ID, q.stream, err)
	}
	return nil
}

// Reclaim acks the delivered entry and re-appends its payload so the item is
// promptly redelivered. The two commands run in one MULTI/EXEC block.
func (q *RedisQueue) Reclaim(ctx context.Context, msg *Message) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	enqueuedAt := msg.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now().UTC()
	}

	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, msg.ID)
	pipe.XDel(ctx, q.stream, msg.ID)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			payloadField:    string(msg.Payload),
			dedupeKeyField:  msg.DedupeKey,
			enqueuedAtField: enqueuedAt.Format(time.RFC3339Nano),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reclaim %s on %s: %w", msg.ID, q.stream, err)
	}
	return nil
}

// parseMessage converts a stream entry into a Message.
func parseMessage(m redis.XMessage) (*Message, error) {
	payload, ok := m.Values[payloadField].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no payload field", m.ID)
	}

	msg := &Message{
		ID:      m.ID,
		Payload: []byte(payload),
	}
	if k, kOK := m.Values[dedupeKeyField].(string); kOK {
		msg.DedupeKey = k
	}
	if raw, tOK := m.Values[enqueuedAtField].(string); tOK {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			msg.EnqueuedAt = t
		}
	}
	return msg, nil
}
