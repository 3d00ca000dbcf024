package solana

import "context"

// SubscriptionFilter selects which feed items a stream receives.
// Accounts and Programs are both optional, but at least one must be set.
type SubscriptionFilter struct {
	// Accounts filters transactions that involve any of these addresses.
	Accounts []string
	// Programs filters transactions that invoke any of these program IDs.
	Programs []string
	// Commitment level for notifications; defaults to "confirmed".
	Commitment string
}

// StreamDialer opens independent upstream feed streams. Each Dial yields a
// dedicated connection so one stream's failure never disturbs another.
type StreamDialer interface {
	Dial(ctx context.Context, filter SubscriptionFilter) (StreamConn, error)
}

// StreamConn is one live feed subscription.
type StreamConn interface {
	// Updates yields feed notifications in arrival order. The channel is
	// closed after a read error or Close; Err reports the cause.
	Updates() <-chan FeedNotification

	// Ping probes connection liveness.
	Ping(ctx context.Context) error

	// Err returns the error that terminated the stream, nil if closed cleanly.
	Err() error

	// Close tears down the subscription and underlying connection.
	Close() error
}

// NotificationKind discriminates feed notification variants.
type NotificationKind string

// Feed notification kinds.
const (
	NotificationKindTransaction NotificationKind = "transaction"
	NotificationKindAccount     NotificationKind = "account"
)

// FeedNotification is the tagged union of items arriving on a stream.
// Exactly one of Transaction/Account is non-nil, matching Kind.
type FeedNotification struct {
	Kind        NotificationKind
	Transaction *TransactionNotification
	Account     *AccountNotification
}

// TransactionNotification is a transaction observed on the feed.
type TransactionNotification struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix seconds, 0 if the provider omitted it
	Accounts  []string
	Raw       []byte // provider payload, kept for downstream parsing
}

// AccountNotification is a change to a subscribed account.
type AccountNotification struct {
	Address  string
	Slot     int64
	Lamports uint64
	Owner    string
}
