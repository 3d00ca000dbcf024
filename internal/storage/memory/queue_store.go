package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// QueueStore is an in-memory implementation of storage.QueueStore.
type QueueStore struct {
	mu     sync.Mutex
	queues map[string][]*domain.QueueMessage
}

// NewQueueStore creates a new in-memory queue store.
func NewQueueStore() *QueueStore {
	return &QueueStore{
		queues: make(map[string][]*domain.QueueMessage),
	}
}

// Push appends a message to the queue.
func (s *QueueStore) Push(_ context.Context, queue string, msg *domain.QueueMessage) error {
	if queue == "" || msg == nil || msg.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *msg
	copy.Payload = append([]byte(nil), msg.Payload...)
	s.queues[queue] = append(s.queues[queue], &copy)
	return nil
}

// PopBatch removes and returns up to n messages, priority desc then FIFO.
func (s *QueueStore) PopBatch(_ context.Context, queue string, n int) ([]*domain.QueueMessage, error) {
	if queue == "" || n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.queues[queue]
	if len(pending) == 0 {
		return nil, nil
	}

	// Stable sort keeps FIFO order within equal priority.
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority > pending[j].Priority
	})

	if n > len(pending) {
		n = len(pending)
	}
	popped := pending[:n]
	s.queues[queue] = pending[n:]

	result := make([]*domain.QueueMessage, 0, n)
	for _, msg := range popped {
		copy := *msg
		result = append(result, &copy)
	}
	return result, nil
}

// Depth returns the number of pending messages.
func (s *QueueStore) Depth(_ context.Context, queue string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[queue]), nil
}

// Clear removes all pending messages from the queue.
func (s *QueueStore) Clear(_ context.Context, queue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, queue)
	return nil
}

var _ storage.QueueStore = (*QueueStore)(nil)
