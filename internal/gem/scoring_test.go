package gem

import (
	"testing"

	"solana-wallet-pulse/internal/domain"
)

func TestConfidenceScore_Bounds(t *testing.T) {
	score := ConfidenceScore(1000, 1e9, 5, 5, 5)
	if score > 1 {
		t.Errorf("score must clamp to 1, got %f", score)
	}

	score = ConfidenceScore(0, 0, 0, 0, 0)
	if score != 0 {
		t.Errorf("zero inputs must score 0, got %f", score)
	}
}

func TestConfidenceScore_WeightsSum(t *testing.T) {
	score := ConfidenceScore(10, 100_000, 1, 1, 1)
	if score != 1.0 {
		t.Errorf("saturated factors must score exactly 1, got %f", score)
	}
}

func TestMetadataQuality(t *testing.T) {
	if q := metadataQuality(nil); q != 0 {
		t.Errorf("nil metadata: got %f, want 0", q)
	}

	full := &domain.TokenMetadata{Name: "Solid Token", Symbol: "SOLID", LogoURI: "https://example.com/logo.png"}
	if q := metadataQuality(full); q != 1.0 {
		t.Errorf("complete metadata: got %f, want 1.0", q)
	}

	partial := &domain.TokenMetadata{Name: "Solid Token"}
	if q := metadataQuality(partial); q != 0.4 {
		t.Errorf("name only: got %f, want 0.4", q)
	}

	scammy := &domain.TokenMetadata{Name: "Free Airdrop Token", Symbol: "FREE"}
	if q := metadataQuality(scammy); q != 0 {
		t.Errorf("denylisted name: got %f, want 0", q)
	}
}

func TestSuspiciousText(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"", false},
		{"SOL", false},
		{"X", true},
		{"SCAM COIN", true},
		{"TestNet Token", true},
		{"RugPull", true},
		{"Perfectly Normal", false},
	}
	for _, tc := range cases {
		if got := suspiciousText(tc.text); got != tc.want {
			t.Errorf("suspiciousText(%q): got %v, want %v", tc.text, got, tc.want)
		}
	}
}
