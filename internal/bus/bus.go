// Package bus decouples feed ingestion from processing: a durable FIFO queue
// per name plus a live pub/sub tap on the same names. Durable consumption is
// at-least-once; downstream writes must be idempotent.
package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/observability"
	"solana-wallet-pulse/internal/storage"
)

// SubscriberBuffer sizes per-subscriber channels. A slow subscriber loses its
// oldest buffered message rather than blocking the publisher.
const SubscriberBuffer = 256

// Bus is the event bus over a durable queue store.
type Bus struct {
	store   storage.QueueStore
	metrics *observability.Metrics

	subsMu sync.RWMutex
	subs   map[string]map[int]chan domain.QueueMessage
	nextID int
}

// New creates a bus over the given durable substrate. Metrics may be nil.
func New(store storage.QueueStore, metrics *observability.Metrics) *Bus {
	return &Bus{
		store:   store,
		metrics: metrics,
		subs:    make(map[string]map[int]chan domain.QueueMessage),
	}
}

// Publish pushes a message onto the durable queue and broadcasts it to live
// subscribers of the same name. Missing ID/timestamp are filled in.
func (b *Bus) Publish(ctx context.Context, queue string, msg *domain.QueueMessage) error {
	if msg == nil {
		return storage.ErrInvalidInput
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	if err := b.store.Push(ctx, queue, msg); err != nil {
		return fmt.Errorf("push to %s: %w", queue, err)
	}
	if b.metrics != nil {
		b.metrics.MessagesPublished.WithLabelValues(queue).Inc()
	}

	b.broadcast(queue, *msg)
	return nil
}

// Subscribe returns a receive-only live tap on the queue name and a cancel
// function. The tap does not consume from the durable queue.
func (b *Bus) Subscribe(queue string) (<-chan domain.QueueMessage, func()) {
	ch := make(chan domain.QueueMessage, SubscriberBuffer)

	b.subsMu.Lock()
	if b.subs[queue] == nil {
		b.subs[queue] = make(map[int]chan domain.QueueMessage)
	}
	id := b.nextID
	b.nextID++
	b.subs[queue][id] = ch
	b.subsMu.Unlock()

	cancel := func() {
		b.subsMu.Lock()
		if sub, ok := b.subs[queue][id]; ok {
			delete(b.subs[queue], id)
			close(sub)
		}
		b.subsMu.Unlock()
	}
	return ch, cancel
}

// broadcast fans out to subscribers without blocking; on a full buffer the
// oldest buffered message is dropped to make room.
func (b *Bus) broadcast(queue string, msg domain.QueueMessage) {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()

	for _, ch := range b.subs[queue] {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// PopBatch drains up to n messages from the durable queue.
func (b *Bus) PopBatch(ctx context.Context, queue string, n int) ([]*domain.QueueMessage, error) {
	return b.store.PopBatch(ctx, queue, n)
}

// Fail records a processing failure for a popped message: the message is
// re-enqueued with an incremented retry count, or dead-lettered once the
// retry bound is reached.
func (b *Bus) Fail(ctx context.Context, queue string, msg *domain.QueueMessage) error {
	if msg == nil {
		return storage.ErrInvalidInput
	}
	msg.RetryCount++

	if msg.RetryCount >= domain.MaxRetryCount {
		log.Printf("[bus] dead-lettering message %s on %s after %d attempts", msg.ID, queue, msg.RetryCount)
		if b.metrics != nil {
			b.metrics.MessagesDeadLettered.WithLabelValues(queue).Inc()
		}
		return b.store.Push(ctx, domain.DeadLetterQueue(queue), msg)
	}
	return b.store.Push(ctx, queue, msg)
}

// Depth returns the pending message count for a queue.
func (b *Bus) Depth(ctx context.Context, queue string) (int, error) {
	return b.store.Depth(ctx, queue)
}

// Clear removes all pending messages from a queue.
func (b *Bus) Clear(ctx context.Context, queue string) error {
	return b.store.Clear(ctx, queue)
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for queue, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, queue)
	}
}
