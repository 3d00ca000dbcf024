package bus

import (
	"context"
	"encoding/json"
	"testing"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage/memory"
)

func newTestBus() *Bus {
	return New(memory.NewQueueStore(), nil)
}

func TestBus_PublishFillsEnvelope(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	msg := &domain.QueueMessage{
		Type:    domain.MessageTypeTransaction,
		Payload: json.RawMessage(`{"x":1}`),
	}
	if err := b.Publish(ctx, "q", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if msg.ID == "" {
		t.Error("Publish must assign an ID")
	}
	if msg.Timestamp == 0 {
		t.Error("Publish must assign a timestamp")
	}
}

func TestBus_PopBatchPriorityThenFIFO(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	for i, prio := range []int{0, 0, 1, 0, 1} {
		msg := &domain.QueueMessage{
			ID:       string(rune('a' + i)),
			Type:     domain.MessageTypeTransaction,
			Payload:  json.RawMessage(`{}`),
			Priority: prio,
		}
		if err := b.Publish(ctx, "q", msg); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	msgs, err := b.PopBatch(ctx, "q", 5)
	if err != nil {
		t.Fatalf("PopBatch failed: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("popped: got %d, want 5", len(msgs))
	}

	// Priority 1 first in publish order, then priority 0 in publish order.
	wantOrder := []string{"c", "e", "a", "b", "d"}
	for i, want := range wantOrder {
		if msgs[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, msgs[i].ID, want)
		}
	}
}

func TestBus_FailRequeuesThenDeadLetters(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	msg := &domain.QueueMessage{
		Type:    domain.MessageTypePnlUpdate,
		Payload: json.RawMessage(`{}`),
	}
	if err := b.Publish(ctx, "q", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Fail the message MaxRetryCount times; the final failure dead-letters.
	for i := 0; i < domain.MaxRetryCount; i++ {
		popped, err := b.PopBatch(ctx, "q", 1)
		if err != nil {
			t.Fatalf("PopBatch %d failed: %v", i, err)
		}
		if len(popped) != 1 {
			t.Fatalf("attempt %d: message missing from queue", i)
		}
		if err := b.Fail(ctx, "q", popped[0]); err != nil {
			t.Fatalf("Fail %d failed: %v", i, err)
		}
	}

	depth, err := b.Depth(ctx, "q")
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("main queue depth: got %d, want 0", depth)
	}

	dlqDepth, err := b.Depth(ctx, domain.DeadLetterQueue("q"))
	if err != nil {
		t.Fatalf("Depth dlq failed: %v", err)
	}
	if dlqDepth != 1 {
		t.Errorf("dead-letter depth: got %d, want 1", dlqDepth)
	}

	dead, err := b.PopBatch(ctx, domain.DeadLetterQueue("q"), 1)
	if err != nil {
		t.Fatalf("PopBatch dlq failed: %v", err)
	}
	if dead[0].RetryCount != domain.MaxRetryCount {
		t.Errorf("retry count: got %d, want %d", dead[0].RetryCount, domain.MaxRetryCount)
	}
}

func TestBus_SubscribeReceivesPublished(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	ch, cancel := b.Subscribe("q")
	defer cancel()

	msg := &domain.QueueMessage{
		Type:    domain.MessageTypeFeedUpdate,
		Payload: json.RawMessage(`{"v":42}`),
	}
	if err := b.Publish(ctx, "q", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	got := <-ch
	if got.ID != msg.ID {
		t.Errorf("subscriber got %s, want %s", got.ID, msg.ID)
	}
}

func TestBus_SlowSubscriberLosesOldest(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	ch, cancel := b.Subscribe("q")
	defer cancel()

	// Overflow the buffer by two; the two oldest should be displaced.
	total := SubscriberBuffer + 2
	for i := 0; i < total; i++ {
		msg := &domain.QueueMessage{
			Type:    domain.MessageTypeFeedUpdate,
			Payload: json.RawMessage(`{}`),
		}
		if err := b.Publish(ctx, "q", msg); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != SubscriberBuffer {
				t.Errorf("buffered: got %d, want %d", received, SubscriberBuffer)
			}
			return
		}
	}
}

func TestBus_SubscribeCancelClosesChannel(t *testing.T) {
	b := newTestBus()

	ch, cancel := b.Subscribe("q")
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel must be closed after cancel")
	}
}

func TestBus_DurableAndLiveAreIndependent(t *testing.T) {
	b := newTestBus()
	ctx := context.Background()

	ch, cancel := b.Subscribe("q")
	defer cancel()

	msg := &domain.QueueMessage{
		Type:    domain.MessageTypeFeedUpdate,
		Payload: json.RawMessage(`{}`),
	}
	if err := b.Publish(ctx, "q", msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// The live tap does not consume from the durable queue.
	<-ch
	depth, err := b.Depth(ctx, "q")
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("durable depth after live read: got %d, want 1", depth)
	}
}
