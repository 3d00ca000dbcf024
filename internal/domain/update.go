package domain

import "encoding/json"

// UpdateKind discriminates feed update variants.
type UpdateKind string

// Feed update kinds.
const (
	UpdateKindTransaction UpdateKind = "transaction"
	UpdateKindAccount     UpdateKind = "account"
)

// FeedUpdate is the tagged union of raw upstream feed items. Exactly one of
// Transaction/Account is set, matching Kind.
type FeedUpdate struct {
	Kind        UpdateKind
	Transaction *TransactionUpdate
	Account     *AccountUpdate
}

// TransactionUpdate is the normalized envelope for a transaction seen on the
// feed. Raw carries the provider payload untouched; Accounts is the flat list
// of involved account addresses used by the processor pre-filter.
type TransactionUpdate struct {
	Signature string          `json:"signature"`
	Slot      int64           `json:"slot"`
	BlockTime int64           `json:"block_time"` // Unix seconds, 0 if absent
	Accounts  []string        `json:"accounts"`
	Raw       json.RawMessage `json:"raw"`
}

// AccountUpdate reports a change to a subscribed account.
type AccountUpdate struct {
	Address  string `json:"address"`
	Slot     int64  `json:"slot"`
	Lamports uint64 `json:"lamports"`
	Owner    string `json:"owner"`
}
