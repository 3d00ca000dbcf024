package pricing

import (
	"context"
	"errors"
)

// ErrPriceUnavailable is returned when the oracle has no price for a mint.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceOracle provides current USD prices per token mint.
type PriceOracle interface {
	// GetPrice returns the current USD unit price for a mint.
	// Returns ErrPriceUnavailable when no quote exists.
	GetPrice(ctx context.Context, mint string) (float64, error)
}

// StaticOracle serves prices from a fixed map; used for stablecoin and
// wrapped-SOL anchors and in tests.
type StaticOracle struct {
	prices map[string]float64
}

// NewStaticOracle creates an oracle over a fixed price table.
func NewStaticOracle(prices map[string]float64) *StaticOracle {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticOracle{prices: cp}
}

var _ PriceOracle = (*StaticOracle)(nil)

// GetPrice returns the fixed price for a mint.
func (o *StaticOracle) GetPrice(_ context.Context, mint string) (float64, error) {
	p, ok := o.prices[mint]
	if !ok {
		return 0, ErrPriceUnavailable
	}
	return p, nil
}
