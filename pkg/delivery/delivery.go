// Package delivery prices delivery by distance to the nearest pizzeria.
package delivery

import (
	"fmt"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/geo"
)

// Tier upper bounds in kilometres, inclusive.
const (
	FreeMaxKm  = 0.5
	Tier1MaxKm = 5.0
	Tier2MaxKm = 20.0
)

// Classify maps a distance to its delivery tier.
func Classify(km float64) domain.Tier {
	switch {
	case km <= FreeMaxKm:
		return domain.TierFree
	case km <= Tier1MaxKm:
		return domain.Tier1
	case km <= Tier2MaxKm:
		return domain.Tier2
	default:
		return domain.TierUndeliverable
	}
}

// Fees holds the charge for each paid tier.
type Fees struct {
	Tier1 domain.Money
	Tier2 domain.Money
}

// DefaultFees are 100 and 300 roubles.
var DefaultFees = Fees{
	Tier1: domain.NewMoney(10000, "RUB"),
	Tier2: domain.NewMoney(30000, "RUB"),
}

// For returns the fee of a tier. ok is false for undeliverable distances.
func (f Fees) For(t domain.Tier) (fee domain.Money, ok bool) {
	switch t {
	case domain.TierFree:
		return domain.Money{Currency: f.Tier1.Currency}, true
	case domain.Tier1:
		return f.Tier1, true
	case domain.Tier2:
		return f.Tier2, true
	}
	return domain.Money{}, false
}

// Policy quotes delivery for customer coordinates.
type Policy struct {
	Fees Fees
}

// NewPolicy creates a Policy with the given fees.
func NewPolicy(fees Fees) *Policy {
	return &Policy{Fees: fees}
}

// Quote picks the nearest location and prices the delivery.
func (p *Policy) Quote(origin domain.Coordinates, locations []domain.Location) (domain.Quote, error) {
	loc, km, err := geo.Nearest(origin, locations)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("quote for %s: %w", origin, err)
	}
	tier := Classify(km)
	fee, _ := p.Fees.For(tier)
	return domain.Quote{
		Location:   loc,
		DistanceKm: km,
		Tier:       tier,
		Fee:        fee,
	}, nil
}
