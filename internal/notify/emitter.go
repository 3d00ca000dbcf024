// Package notify fans computed results out to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-wallet-pulse/internal/bus"
	"solana-wallet-pulse/internal/domain"
)

// Emitter publishes derived results for live consumers.
type Emitter interface {
	// EmitSnapshot publishes a refreshed PNL snapshot.
	EmitSnapshot(ctx context.Context, s *domain.PnlSnapshot) error

	// EmitGem publishes a gem discovery.
	EmitGem(ctx context.Context, g *domain.GemCandidate) error
}

// NopEmitter discards emissions.
type NopEmitter struct{}

func (NopEmitter) EmitSnapshot(context.Context, *domain.PnlSnapshot) error { return nil }
func (NopEmitter) EmitGem(context.Context, *domain.GemCandidate) error     { return nil }

// BusEmitter publishes results onto the event bus: snapshots go to the feed
// queue, discoveries to the gem queue.
type BusEmitter struct {
	bus *bus.Bus
}

// NewBusEmitter creates an emitter over the given bus.
func NewBusEmitter(b *bus.Bus) *BusEmitter {
	return &BusEmitter{bus: b}
}

func (e *BusEmitter) EmitSnapshot(ctx context.Context, s *domain.PnlSnapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return e.bus.Publish(ctx, domain.QueueFeedUpdates, &domain.QueueMessage{
		Type:    domain.MessageTypePnlUpdate,
		Payload: payload,
	})
}

func (e *BusEmitter) EmitGem(ctx context.Context, g *domain.GemCandidate) error {
	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal gem candidate: %w", err)
	}
	return e.bus.Publish(ctx, domain.QueueGemDiscoveries, &domain.QueueMessage{
		Type:     domain.MessageTypeGemDiscovery,
		Payload:  payload,
		Priority: 1,
	})
}
