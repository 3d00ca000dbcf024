package gem

import (
	"strings"

	"solana-wallet-pulse/internal/domain"
)

// Scoring weights. Factors are clamped to [0, 1] before weighting, so the
// final confidence is also in [0, 1].
const (
	weightBuyers     = 0.30
	weightVolume     = 0.25
	weightReputation = 0.25
	weightTiming     = 0.10
	weightMetadata   = 0.10
)

// Factor normalization anchors: the buyer count and volume at which each
// factor saturates.
const (
	buyersSaturation = 10.0
	volumeSaturation = 100_000.0
)

var denylistSubstrings = []string{"test", "scam", "rug", "airdrop"}

// ConfidenceScore combines the weighted discovery factors. Each input is a
// pre-normalized factor except buyers and volume, which are scaled against
// their saturation anchors here.
func ConfidenceScore(buyers int, volumeUsd, reputation, timing, metadataQuality float64) float64 {
	return weightBuyers*clamp01(float64(buyers)/buyersSaturation) +
		weightVolume*clamp01(volumeUsd/volumeSaturation) +
		weightReputation*clamp01(reputation) +
		weightTiming*clamp01(timing) +
		weightMetadata*clamp01(metadataQuality)
}

// metadataQuality scores how complete and plausible a token's metadata looks.
// Missing metadata scores zero; suspicious names zero out the factor entirely.
func metadataQuality(m *domain.TokenMetadata) float64 {
	if m == nil {
		return 0
	}
	if suspiciousText(m.Name) || suspiciousText(m.Symbol) {
		return 0
	}
	score := 0.0
	if m.Name != "" {
		score += 0.4
	}
	if m.Symbol != "" {
		score += 0.4
	}
	if m.LogoURI != "" {
		score += 0.2
	}
	return score
}

// suspiciousText flags names and symbols outside sane length bounds or
// containing known scam markers.
func suspiciousText(s string) bool {
	if s == "" {
		return false
	}
	if len(s) < 2 || len(s) > 64 {
		return true
	}
	lower := strings.ToLower(s)
	for _, bad := range denylistSubstrings {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
