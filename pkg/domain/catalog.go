package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in the smallest unit of its currency (kopecks, cents).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// NewMoney creates a Money value.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add sums two amounts. An empty currency adopts the other operand's currency.
func (m Money) Add(o Money) (Money, error) {
	cur := m.Currency
	switch {
	case cur == "":
		cur = o.Currency
	case o.Currency != "" && o.Currency != cur:
		return Money{}, fmt.Errorf("currency mismatch: %s and %s", m.Currency, o.Currency)
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}, nil
}

// Mul multiplies the amount by an integer quantity.
func (m Money) Mul(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency}
}

// String formats the amount with two fractional digits, dropping them for whole values.
func (m Money) String() string {
	whole := m.Amount / 100
	frac := m.Amount % 100
	sign := ""
	if m.Amount < 0 {
		sign = "-"
		whole, frac = -whole, -frac
	}
	s := sign + strconv.FormatInt(whole, 10)
	if frac != 0 {
		s += fmt.Sprintf(".%02d", frac)
	}
	if m.Currency != "" {
		s += " " + m.Currency
	}
	return s
}

// Product is a catalog entry.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       Money  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Category groups products on the menu.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CartItem is one line of a user's cart. ID identifies the line, ProductID the product.
type CartItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Subtotal returns unit price × quantity.
func (i CartItem) Subtotal() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

// Cart is the list of items a user has collected.
type Cart struct {
	Items []CartItem `json:"items"`
}

// IsEmpty reports whether the cart has no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total sums unit price × quantity over all items using integer arithmetic.
func (c Cart) Total() (Money, error) {
	var total Money
	for _, item := range c.Items {
		var err error
		total, err = total.Add(item.Subtotal())
		if err != nil {
			return Money{}, fmt.Errorf("item %s: %w", item.ID, err)
		}
	}
	return total, nil
}

// Customer is a commerce backend customer record.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Coordinates is a WGS-84 latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the pair lies within the WGS-84 ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

// Location is a pizzeria record. CourierID is the chat identity that receives delivery orders.
type Location struct {
	ID          string      `json:"id" yaml:"id"`
	Alias       string      `json:"alias" yaml:"alias"`
	Address     string      `json:"address" yaml:"address"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	CourierID   string      `json:"courier_id" yaml:"courier_id"`
}

// CustomerAddress is written once per completed delivery checkout.
type CustomerAddress struct {
	CustomerID  string      `json:"customer_id"`
	UserKey     string      `json:"user_key"`
	Coordinates Coordinates `json:"coordinates"`
	LocationID  string      `json:"location_id"`
}
