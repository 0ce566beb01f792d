package moltin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// entry is a flow record. Field values arrive as strings or numbers
// depending on how the field was created.
type entry map[string]json.RawMessage

func (e entry) str(field string) string {
	raw, ok := e[field]
	if !ok || field == "" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(bytes.Trim(raw, `"`))
}

func (e entry) float(field string) (float64, error) {
	s := e.str(field)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("field %q is empty", field)
	}
	return strconv.ParseFloat(s, 64)
}

func entriesPath(flow string) string {
	return "/v2/flows/" + url.PathEscape(flow) + "/entries"
}

func (c *Client) entries(ctx context.Context, flow string) ([]entry, error) {
	var all []entry
	for offset := 0; ; offset += entriesPageLimit {
		var body struct {
			Data []entry `json:"data"`
		}
		query := url.Values{
			"page[limit]":  {strconv.Itoa(entriesPageLimit)},
			"page[offset]": {strconv.Itoa(offset)},
		}
		if err := c.do(ctx, "GET", entriesPath(flow), query, nil, &body); err != nil {
			return nil, err
		}
		all = append(all, body.Data...)
		if len(body.Data) < entriesPageLimit {
			return all, nil
		}
	}
}

func (c *Client) toLocation(e entry) (domain.Location, error) {
	f := c.pizzeriaFields
	lat, err := e.float(f.Latitude)
	if err != nil {
		return domain.Location{}, err
	}
	lon, err := e.float(f.Longitude)
	if err != nil {
		return domain.Location{}, err
	}
	return domain.Location{
		ID:          e.str("id"),
		Alias:       e.str(f.Alias),
		Address:     e.str(f.Address),
		Coordinates: domain.Coordinates{Latitude: lat, Longitude: lon},
		CourierID:   e.str(f.CourierID),
	}, nil
}

// Locations lists the pizzerias. Entries with unusable coordinates are skipped.
func (c *Client) Locations(ctx context.Context) ([]domain.Location, error) {
	raw, err := c.entries(ctx, c.pizzeriaFlow)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Location, 0, len(raw))
	for _, e := range raw {
		loc, err := c.toLocation(e)
		if err != nil || !loc.Coordinates.Valid() {
			c.logger.Warn("skipping pizzeria entry", "id", e.str("id"), "err", err)
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

// CreateLocation adds a pizzeria entry.
func (c *Client) CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if !loc.Coordinates.Valid() {
		return domain.Location{}, fmt.Errorf("%w: coordinates out of range", domain.ErrValidation)
	}
	f := c.pizzeriaFields
	data := map[string]any{
		"type":      "entry",
		f.Alias:     loc.Alias,
		f.Address:   loc.Address,
		f.Latitude:  loc.Coordinates.Latitude,
		f.Longitude: loc.Coordinates.Longitude,
	}
	if f.CourierID != "" {
		data[f.CourierID] = loc.CourierID
	}
	var resp struct {
		Data entry `json:"data"`
	}
	if err := c.do(ctx, "POST", entriesPath(c.pizzeriaFlow), nil, map[string]any{"data": data}, &resp); err != nil {
		return domain.Location{}, err
	}
	loc.ID = resp.Data.str("id")
	return loc, nil
}

// DeleteLocation removes a pizzeria entry.
func (c *Client) DeleteLocation(ctx context.Context, locationID string) error {
	return c.do(ctx, "DELETE", entriesPath(c.pizzeriaFlow)+"/"+url.PathEscape(locationID), nil, nil, nil)
}

// CreateCustomerAddress records where a delivery goes.
func (c *Client) CreateCustomerAddress(ctx context.Context, addr domain.CustomerAddress) error {
	f := c.addressFields
	data := map[string]any{"type": "entry"}
	set := func(slug string, v any) {
		if slug != "" {
			data[slug] = v
		}
	}
	set(f.Latitude, addr.Coordinates.Latitude)
	set(f.Longitude, addr.Coordinates.Longitude)
	set(f.CustomerID, addr.CustomerID)
	set(f.LocationID, addr.LocationID)
	return c.do(ctx, "POST", entriesPath(c.addressFlow), nil, map[string]any{"data": data}, nil)
}
