package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// number accepts both 55.75 and "55.75"; the published address lists quote
// their coordinates.
type number float64

func (n *number) UnmarshalYAML(value *yaml.Node) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value.Value), 64)
	if err != nil {
		return fmt.Errorf("line %d: %q is not a number", value.Line, value.Value)
	}
	*n = number(f)
	return nil
}

type addressRecord struct {
	ID      string `yaml:"id"`
	Alias   string `yaml:"alias"`
	Address struct {
		Full string `yaml:"full"`
	} `yaml:"address"`
	Coordinates struct {
		Lat number `yaml:"lat"`
		Lon number `yaml:"lon"`
	} `yaml:"coordinates"`
	CourierID string `yaml:"courier_id"`
}

// ParseAddresses reads a pizzeria address list. The input is the JSON array
// of the original loader or the same structure written as YAML:
//
//	# addresses.yaml
//	- alias: Arbat
//	  address: {full: "Moscow, Arbat st., 21"}
//	  coordinates: {lat: "55.7495", lon: "37.5916"}
//	  courier_id: "123456"
//
// Every record is checked; all problems are reported together.
func ParseAddresses(r io.Reader) ([]domain.Location, error) {
	var records []addressRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode addresses: %w", err)
	}

	locations := make([]domain.Location, 0, len(records))
	var errs []error
	for i, rec := range records {
		loc := domain.Location{
			ID:        rec.ID,
			Alias:     strings.TrimSpace(rec.Alias),
			Address:   strings.TrimSpace(rec.Address.Full),
			CourierID: rec.CourierID,
			Coordinates: domain.Coordinates{
				Latitude:  float64(rec.Coordinates.Lat),
				Longitude: float64(rec.Coordinates.Lon),
			},
		}
		if loc.Address == "" {
			errs = append(errs, fmt.Errorf("record %d (%s): %w: empty address", i, loc.Alias, domain.ErrValidation))
			continue
		}
		if !loc.Coordinates.Valid() {
			errs = append(errs, fmt.Errorf("record %d (%s): %w: invalid coordinates %s", i, loc.Alias, domain.ErrValidation, loc.Coordinates))
			continue
		}
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}
