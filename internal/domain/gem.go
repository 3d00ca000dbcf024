package domain

// GemCandidate is a token flagged as an early buy signal from aggregate
// tracked-wallet behavior. Created once per token per discovery window;
// re-discovery inside the dedup window is suppressed.
type GemCandidate struct {
	TokenMint          string
	DiscoveryTimestamp int64    // Unix timestamp in milliseconds
	BuyerAddresses     []string // distinct tracked buyers in the window
	TotalVolumeUsd     float64
	ConfidenceScore    float64 // 0..1 weighted factor sum
	Metadata           *TokenMetadata
}

// TokenMetadata holds descriptive token info used for scoring and display.
type TokenMetadata struct {
	Mint      string
	Name      string
	Symbol    string
	Decimals  int
	LogoURI   string
	UpdatedAt int64 // Unix timestamp in milliseconds
}
