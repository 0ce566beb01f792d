package cli

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/memory"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// DemoCatalog is the in-memory menu used by the console when no Moltin
// credentials are configured.
func DemoCatalog() *memory.Commerce {
	rub := func(roubles int64) domain.Money { return domain.NewMoney(roubles*100, "RUB") }
	return memory.NewCommerce(
		memory.WithProducts(
			domain.Product{ID: "margherita", Name: "Margherita", Description: "Tomato sauce, mozzarella, basil", Price: rub(459)},
			domain.Product{ID: "pepperoni", Name: "Pepperoni", Description: "Tomato sauce, mozzarella, pepperoni", Price: rub(539)},
			domain.Product{ID: "four-cheese", Name: "Four cheese", Description: "Cream sauce, mozzarella, cheddar, parmesan, blue cheese", Price: rub(599)},
			domain.Product{ID: "hawaiian", Name: "Hawaiian", Description: "Tomato sauce, mozzarella, ham, pineapple", Price: rub(499)},
		),
		memory.WithCategory(domain.Category{ID: "front", Name: "Classic", Slug: "front_page"}, "margherita", "pepperoni"),
		memory.WithCategory(domain.Category{ID: "special", Name: "Specials", Slug: "special"}, "four-cheese", "hawaiian"),
		memory.WithLocations(
			domain.Location{ID: "arbat", Alias: "Arbat", Address: "Moscow, Arbat st., 21", Coordinates: domain.Coordinates{Latitude: 55.7495, Longitude: 37.5916}},
			domain.Location{ID: "tverskaya", Alias: "Tverskaya", Address: "Moscow, Tverskaya st., 12", Coordinates: domain.Coordinates{Latitude: 55.7640, Longitude: 37.6060}},
			domain.Location{ID: "sokolniki", Alias: "Sokolniki", Address: "Moscow, Rusakovskaya st., 31", Coordinates: domain.Coordinates{Latitude: 55.7878, Longitude: 37.6789}},
		),
	)
}

// coordinatesOnly is the geocoder of a process without a Yandex key: typed
// addresses are never found, shared locations still work.
type coordinatesOnly struct{}

func (coordinatesOnly) Geocode(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	return domain.Coordinates{}, false, nil
}
