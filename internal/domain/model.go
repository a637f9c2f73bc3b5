package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices travel as JSON numbers, the way the shop front end sends them
	decimal.MarshalJSONWithoutQuotes = true
}

// Compartment is the locker cabinet a product is stored in.
type Compartment string

const (
	CompartmentFresh   Compartment = "fresh"
	CompartmentFreezer Compartment = "freezer"
	CompartmentSnack   Compartment = "snack"
	CompartmentDrink   Compartment = "drink"
	CompartmentMixed   Compartment = "mixed"
)

func (c Compartment) Valid() bool {
	switch c {
	case CompartmentFresh, CompartmentFreezer, CompartmentSnack, CompartmentDrink, CompartmentMixed:
		return true
	}
	return false
}

type Nutrition struct {
	Vegetarian bool `json:"vegetarian" yaml:"vegetarian"`
	Vegan      bool `json:"vegan" yaml:"vegan"`
}

type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Category      []string         `json:"category"`
	Badges        []string         `json:"badges"`
	Nutrition     Nutrition        `json:"nutrition"`
	Compartment   Compartment      `json:"compartment"`
}

// Clone returns a deep copy, so cart lines never share slices with the catalog.
func (p Product) Clone() Product {
	c := p
	if p.OriginalPrice != nil {
		op := *p.OriginalPrice
		c.OriginalPrice = &op
	}
	c.Category = append([]string(nil), p.Category...)
	c.Badges = append([]string(nil), p.Badges...)
	return c
}

// ListPrice is the original price when set, otherwise the current price.
func (p Product) ListPrice() decimal.Decimal {
	if p.OriginalPrice != nil {
		return *p.OriginalPrice
	}
	return p.Price
}

func (p Product) InCategory(category string) bool {
	for _, c := range p.Category {
		if c == category {
			return true
		}
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Location is a pickup point with its lockers, first locker first.
type Location struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Address     string      `json:"address" yaml:"address"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	Lockers     []string    `json:"lockers" yaml:"lockers"`
}

type Category struct {
	Key  string `json:"key" yaml:"key"`
	Name string `json:"name" yaml:"name"`
	Icon string `json:"icon" yaml:"icon"`
}

type PaymentMethod struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Icon string `json:"icon" yaml:"icon"`
}

// CartLineItem is one row of the cart. Product is a snapshot taken on first add.
type CartLineItem struct {
	ID        string    `json:"id"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Preferences is the persisted user profile.
type Preferences struct {
	Name        string            `json:"name"`
	Location    string            `json:"location"`
	Preferences map[string]string `json:"preferences,omitempty"`
}
