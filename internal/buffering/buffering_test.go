package buffering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTierValues(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Config
	}{
		{"min", "min", Config{1000, 2000, 500, 1000}},
		{"low", "low", Config{2000, 5000, 1000, 2000}},
		{"medium", "medium", Config{5000, 15000, 2500, 5000}},
		{"high", "high", Config{5000, 30000, 2500, 5000}},
		{"max", "max", Config{10000, 60000, 5000, 10000}},
		{"case insensitive", "HIGH", Config{5000, 30000, 2500, 5000}},
		{"trims whitespace", "  low  ", Config{2000, 5000, 1000, 2000}},
		{"unknown defaults to medium", "turbo", Config{5000, 15000, 2500, 5000}},
		{"empty defaults to medium", "", Config{5000, 15000, 2500, 5000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ForTier(tt.input))
		})
	}
}

func TestTierInvariants(t *testing.T) {
	for _, tier := range Tiers() {
		cfg := ForTier(string(tier))
		assert.LessOrEqual(t, cfg.BufferForPlaybackMs, cfg.MinBufferMs, "tier %s: forPlayback <= min", tier)
		assert.LessOrEqual(t, cfg.BufferForPlaybackAfterRebufferMs, cfg.MinBufferMs, "tier %s: afterRebuffer <= min", tier)
		assert.LessOrEqual(t, cfg.MinBufferMs, cfg.MaxBufferMs, "tier %s: min <= max", tier)
	}
}
