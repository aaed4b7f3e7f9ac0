package marketdata

import (
	"fmt"
	"time"

	"github.com/Sternrassler/nse-market-client/pkg/cache"
	"github.com/Sternrassler/nse-market-client/pkg/swr"
)

// PolicyName names a freshness policy shared by a family of endpoints.
type PolicyName string

const (
	PolicyMovers     PolicyName = "movers"
	PolicyMostActive PolicyName = "mostActive"
	PolicyIndices    PolicyName = "indices"
	PolicyQuote      PolicyName = "quote"
	PolicyIndexChart PolicyName = "indexChart"
	PolicyDeals      PolicyName = "deals"
	PolicyCorporate  PolicyName = "corporate"
)

// PolicyNames lists every policy in a stable order.
var PolicyNames = []PolicyName{
	PolicyMovers,
	PolicyMostActive,
	PolicyIndices,
	PolicyQuote,
	PolicyIndexChart,
	PolicyDeals,
	PolicyCorporate,
}

// Policies maps policy names to cache tier and TTLs.
type Policies map[PolicyName]swr.Policy

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() Policies {
	return Policies{
		PolicyMovers:     {Tier: cache.TierHot, TTL: 20 * time.Second, SWRTTL: 20 * time.Second},
		PolicyMostActive: {Tier: cache.TierHot, TTL: 20 * time.Second, SWRTTL: 20 * time.Second},
		PolicyIndices:    {Tier: cache.TierHot, TTL: 30 * time.Second, SWRTTL: 30 * time.Second},
		PolicyQuote:      {Tier: cache.TierHot, TTL: 15 * time.Second, SWRTTL: 30 * time.Second},
		PolicyIndexChart: {Tier: cache.TierNormal, TTL: time.Minute, SWRTTL: 2 * time.Minute},
		PolicyDeals:      {Tier: cache.TierNormal, TTL: 5 * time.Minute, SWRTTL: 30 * time.Minute},
		PolicyCorporate:  {Tier: cache.TierStatic, TTL: 30 * time.Minute, SWRTTL: 6 * time.Hour},
	}
}

// Merge returns the defaults overridden by p.
func (p Policies) Merge() Policies {
	out := DefaultPolicies()
	for name, policy := range p {
		out[name] = policy
	}
	return out
}

// MaxSWR returns the longest stale window of the policies stored in tier.
func (p Policies) MaxSWR(tier cache.TierName) time.Duration {
	var max time.Duration
	for _, policy := range p {
		if policy.Tier == tier && policy.SWRTTL > max {
			max = policy.SWRTTL
		}
	}
	return max
}

// Validate checks every policy names a known tier and has a positive TTL.
func (p Policies) Validate() error {
	for name, policy := range p {
		if _, err := cache.ParseTierName(string(policy.Tier)); err != nil {
			return fmt.Errorf("policy %s: %w", name, err)
		}
		if policy.TTL <= 0 {
			return fmt.Errorf("policy %s: ttl must be positive (got %s)", name, policy.TTL)
		}
		if policy.SWRTTL < 0 {
			return fmt.Errorf("policy %s: swr ttl must not be negative (got %s)", name, policy.SWRTTL)
		}
	}
	return nil
}
