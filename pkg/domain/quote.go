package domain

// Tier is a delivery fee bracket keyed by distance.
type Tier string

const (
	TierFree          Tier = "free"
	Tier1             Tier = "tier1"
	Tier2             Tier = "tier2"
	TierUndeliverable Tier = "undeliverable"
)

// Deliverable reports whether the tier allows delivery.
func (t Tier) Deliverable() bool {
	return t != TierUndeliverable
}

// Quote bundles the nearest pizzeria, the distance to it and the resulting tier.
// It is derived per address and never persisted.
type Quote struct {
	Location   Location
	DistanceKm float64
	Tier       Tier
	Fee        Money
}
