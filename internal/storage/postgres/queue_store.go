package postgres

import (
	"context"
	"fmt"

	"solana-wallet-pulse/internal/domain"
	"solana-wallet-pulse/internal/storage"
)

// QueueStore implements storage.QueueStore using PostgreSQL, giving the bus a
// durable substrate: messages survive process restarts and PopBatch uses
// FOR UPDATE SKIP LOCKED so multiple consumers never double-claim.
type QueueStore struct {
	pool *Pool
}

// NewQueueStore creates a new QueueStore.
func NewQueueStore(pool *Pool) *QueueStore {
	return &QueueStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QueueStore = (*QueueStore)(nil)

// Push appends a message to the queue.
func (s *QueueStore) Push(ctx context.Context, queue string, msg *domain.QueueMessage) error {
	if queue == "" || msg == nil || msg.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO queue_messages (
			queue, message_id, type, payload, timestamp, retry_count, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		queue,
		msg.ID,
		string(msg.Type),
		[]byte(msg.Payload),
		msg.Timestamp,
		msg.RetryCount,
		msg.Priority,
	)
	if err != nil {
		return fmt.Errorf("push queue message: %w", err)
	}
	return nil
}

// PopBatch removes and returns up to n messages, priority desc then FIFO.
func (s *QueueStore) PopBatch(ctx context.Context, queue string, n int) ([]*domain.QueueMessage, error) {
	if queue == "" || n <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		DELETE FROM queue_messages
		WHERE id IN (
			SELECT id FROM queue_messages
			WHERE queue = $1
			ORDER BY priority DESC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING message_id, type, payload, timestamp, retry_count, priority
	`

	rows, err := s.pool.Query(ctx, query, queue, n)
	if err != nil {
		return nil, fmt.Errorf("pop queue batch: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.QueueMessage
	for rows.Next() {
		var msg domain.QueueMessage
		var msgType string
		var payload []byte
		err := rows.Scan(&msg.ID, &msgType, &payload, &msg.Timestamp, &msg.RetryCount, &msg.Priority)
		if err != nil {
			return nil, fmt.Errorf("scan queue message row: %w", err)
		}
		msg.Type = domain.MessageType(msgType)
		msg.Payload = payload
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue message rows: %w", err)
	}

	return msgs, nil
}

// Depth returns the number of pending messages.
func (s *QueueStore) Depth(ctx context.Context, queue string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM queue_messages WHERE queue = $1`, queue,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return count, nil
}

// Clear removes all pending messages from the queue.
func (s *QueueStore) Clear(ctx context.Context, queue string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM queue_messages WHERE queue = $1`, queue,
	)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}
