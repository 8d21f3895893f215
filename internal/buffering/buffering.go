package buffering

import "strings"

// Tier is a named buffering preset
type Tier string

const (
	TierMin    Tier = "min"
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
	TierMax    Tier = "max"
)

// Config holds the buffer duration parameters handed to the engine's load
// controller. All values are milliseconds.
type Config struct {
	MinBufferMs                      int
	MaxBufferMs                      int
	BufferForPlaybackMs              int
	BufferForPlaybackAfterRebufferMs int
}

// The tier table is part of the cross-platform behaviour contract; the same
// values are used by every platform implementation.
var tierTable = map[Tier]Config{
	TierMin:    {MinBufferMs: 1000, MaxBufferMs: 2000, BufferForPlaybackMs: 500, BufferForPlaybackAfterRebufferMs: 1000},
	TierLow:    {MinBufferMs: 2000, MaxBufferMs: 5000, BufferForPlaybackMs: 1000, BufferForPlaybackAfterRebufferMs: 2000},
	TierMedium: {MinBufferMs: 5000, MaxBufferMs: 15000, BufferForPlaybackMs: 2500, BufferForPlaybackAfterRebufferMs: 5000},
	TierHigh:   {MinBufferMs: 5000, MaxBufferMs: 30000, BufferForPlaybackMs: 2500, BufferForPlaybackAfterRebufferMs: 5000},
	TierMax:    {MinBufferMs: 10000, MaxBufferMs: 60000, BufferForPlaybackMs: 5000, BufferForPlaybackAfterRebufferMs: 10000},
}

// ForTier resolves a tier name to its buffer parameters. Matching is
// case-insensitive and unknown names fall back to the medium tier.
func ForTier(name string) Config {
	tier := Tier(strings.ToLower(strings.TrimSpace(name)))
	if cfg, ok := tierTable[tier]; ok {
		return cfg
	}
	return tierTable[TierMedium]
}

// Tiers returns all known tier names
func Tiers() []Tier {
	return []Tier{TierMin, TierLow, TierMedium, TierHigh, TierMax}
}
