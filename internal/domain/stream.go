package domain

// StreamState is the lifecycle state of one upstream subscription.
type StreamState string

// Stream lifecycle states. Transitions:
// idle -> connecting -> active -> (error -> reconnecting -> active | failed).
const (
	StreamStateIdle         StreamState = "idle"
	StreamStateConnecting   StreamState = "connecting"
	StreamStateActive       StreamState = "active"
	StreamStateReconnecting StreamState = "reconnecting"
	StreamStateFailed       StreamState = "failed"
)

// StreamAllocation is one subscription unit: a disjoint batch of wallet
// addresses bound to a single upstream stream slot. Mutated only by the
// owning supervisor loop.
type StreamAllocation struct {
	StreamID          string
	WalletAddresses   []string // nil for the DEX program stream
	ProgramAddresses  []string // nil for wallet streams
	AccountCount      int
	State             StreamState
	ReconnectAttempts int
	LastError         string
}

// StreamHealth is the operator-facing view of one allocation.
type StreamHealth struct {
	StreamID          string
	State             StreamState
	AccountCount      int
	ReconnectAttempts int
	LastError         string
	UpdatesForwarded  int64
}
