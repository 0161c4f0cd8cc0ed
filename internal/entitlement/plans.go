package entitlement

import "strings"

// PlanConfig defines the quota attached to a tier.
type PlanConfig struct {
	Tier             Tier   `json:"tier"`
	DisplayName      string `json:"displayName"`
	MonthlySummaries int64  `json:"monthlySummaries"`
}

// Catalogue maps tiers to their ceilings. Trial accounts open on the basic
// tier with their own limit.
type Catalogue struct {
	plans      map[Tier]PlanConfig
	trialLimit int64
}

// NewCatalogue builds the tier catalogue from configured ceilings.
func NewCatalogue(basic, pro, trial int64) *Catalogue {
	return &Catalogue{
		plans: map[Tier]PlanConfig{
			TierBasic: {Tier: TierBasic, DisplayName: "Basic", MonthlySummaries: basic},
			TierPro:   {Tier: TierPro, DisplayName: "Pro", MonthlySummaries: pro},
		},
		trialLimit: trial,
	}
}

// DefaultCatalogue uses the stock ceilings: basic 100, pro 500, trial 100.
func DefaultCatalogue() *Catalogue {
	return NewCatalogue(100, 500, 100)
}

// Limit returns the tier's ceiling.
func (c *Catalogue) Limit(t Tier) (int64, error) {
	p, ok := c.plans[t]
	if !ok {
		return 0, ErrInvalidTier
	}
	return p.MonthlySummaries, nil
}

// TrialLimit is the ceiling a new tenant starts with.
func (c *Catalogue) TrialLimit() int64 {
	return c.trialLimit
}

// Plans lists the catalogue in display order.
func (c *Catalogue) Plans() []PlanConfig {
	return []PlanConfig{c.plans[TierBasic], c.plans[TierPro]}
}

// ParseTier accepts a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierBasic:
		return TierBasic, nil
	case TierPro:
		return TierPro, nil
	}
	return "", ErrInvalidTier
}
