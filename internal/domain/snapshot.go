package domain

// Timeframe identifies a snapshot rollup window.
type Timeframe string

// Supported snapshot timeframes.
const (
	Timeframe1H  Timeframe = "1H"
	Timeframe1D  Timeframe = "1D"
	Timeframe7D  Timeframe = "7D"
	Timeframe30D Timeframe = "30D"
)

// AllTimeframes lists every rollup window in recompute order.
var AllTimeframes = []Timeframe{Timeframe1H, Timeframe1D, Timeframe7D, Timeframe30D}

// DurationMs returns the window length in milliseconds.
func (t Timeframe) DurationMs() int64 {
	switch t {
	case Timeframe1H:
		return 3600_000
	case Timeframe1D:
		return 86400_000
	case Timeframe7D:
		return 7 * 86400_000
	case Timeframe30D:
		return 30 * 86400_000
	default:
		return 0
	}
}

// PnlSnapshot is a periodic per-wallet per-timeframe rollup.
// Upserts are keyed by (wallet, timeframe): latest-only, a new write
// supersedes the prior value. History lives in the ClickHouse append log.
type PnlSnapshot struct {
	WalletAddress     string
	Timeframe         Timeframe
	RealizedPnlUsd    float64
	UnrealizedPnlUsd  float64
	TotalPnlUsd       float64
	RoiPercentage     float64 // TotalPnlUsd / open cost basis * 100, 0 if none open
	WinRate           float64 // wins / total realized events in window
	TotalTrades       int
	TotalVolumeUsd    float64 // sum of sale values in window
	SnapshotTimestamp int64   // Unix timestamp in milliseconds
}
