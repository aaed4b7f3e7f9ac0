package cache

import (
	"fmt"
	"strings"
	"time"
)

// TierName identifies a cache tier.
type TierName string

const (
	// TierHot holds fast-moving data (movers, indices, quotes).
	TierHot TierName = "hot"

	// TierNormal holds data refreshed every few minutes (charts, deals).
	TierNormal TierName = "normal"

	// TierStatic holds reference data (corporate filings and calendars).
	TierStatic TierName = "static"
)

// Default TTLs per tier, used when a caller passes no explicit TTL.
const (
	DefaultHotTTL    = 30 * time.Second
	DefaultNormalTTL = 5 * time.Minute
	DefaultStaticTTL = 30 * time.Minute
)

// Config holds the default TTL of each tier.
type Config struct {
	HotTTL    time.Duration
	NormalTTL time.Duration
	StaticTTL time.Duration
}

// DefaultConfig returns the conventional tier TTLs.
func DefaultConfig() Config {
	return Config{
		HotTTL:    DefaultHotTTL,
		NormalTTL: DefaultNormalTTL,
		StaticTTL: DefaultStaticTTL,
	}
}

// ParseTierName parses a tier name, case-insensitively.
func ParseTierName(s string) (TierName, error) {
	switch TierName(strings.ToLower(strings.TrimSpace(s))) {
	case TierHot:
		return TierHot, nil
	case TierNormal:
		return TierNormal, nil
	case TierStatic:
		return TierStatic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

// Tiers bundles the three independent tiers owned by one process.
type Tiers struct {
	Hot    *Tier
	Normal *Tier
	Static *Tier
}

// NewTiers creates the hot, normal and static tiers.
func NewTiers(cfg Config, opts ...Option) *Tiers {
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = DefaultHotTTL
	}
	if cfg.NormalTTL <= 0 {
		cfg.NormalTTL = DefaultNormalTTL
	}
	if cfg.StaticTTL <= 0 {
		cfg.StaticTTL = DefaultStaticTTL
	}

	return &Tiers{
		Hot:    NewTier(TierHot, cfg.HotTTL, opts...),
		Normal: NewTier(TierNormal, cfg.NormalTTL, opts...),
		Static: NewTier(TierStatic, cfg.StaticTTL, opts...),
	}
}

// Tier returns the tier with the given name.
func (t *Tiers) Tier(name TierName) (*Tier, error) {
	switch name {
	case TierHot:
		return t.Hot, nil
	case TierNormal:
		return t.Normal, nil
	case TierStatic:
		return t.Static, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, name)
	}
}

// All returns the tiers in hot, normal, static order.
func (t *Tiers) All() []*Tier {
	return []*Tier{t.Hot, t.Normal, t.Static}
}

// Flush empties one tier and returns how many entries it dropped.
func (t *Tiers) Flush(name TierName) (int, error) {
	tier, err := t.Tier(name)
	if err != nil {
		return 0, err
	}
	return tier.FlushAll(), nil
}

// Sweep runs Tier.Sweep on every tier and returns the total dropped.
func (t *Tiers) Sweep(grace time.Duration) int {
	n := 0
	for _, tier := range t.All() {
		n += tier.Sweep(grace)
	}
	return n
}

// TierStats summarizes one tier for admin endpoints.
type TierStats struct {
	Tier       TierName      `json:"tier"`
	Entries    int           `json:"entries"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

// Stats returns entry counts for every tier.
func (t *Tiers) Stats() []TierStats {
	all := t.All()
	stats := make([]TierStats, 0, len(all))
	for _, tier := range all {
		stats = append(stats, TierStats{
			Tier:       tier.Name(),
			Entries:    tier.Len(),
			DefaultTTL: tier.DefaultTTL(),
		})
	}
	return stats
}
