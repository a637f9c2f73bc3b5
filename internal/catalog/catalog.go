package catalog

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"automart/internal/domain"
)

// CategoryAll lists every product.
const CategoryAll = "all"

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	products   []domain.Product
	byID       map[string]int
	locations  []domain.Location
	byLocation map[string]int
	categories []domain.Category
}

func New(products []domain.Product, locations []domain.Location, categories []domain.Category) *Catalog {
	c := &Catalog{
		byID:       make(map[string]int, len(products)),
		byLocation: make(map[string]int, len(locations)),
		categories: append([]domain.Category(nil), categories...),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p.Clone())
	}
	for _, l := range locations {
		l.Lockers = append([]string(nil), l.Lockers...)
		c.byLocation[l.ID] = len(c.locations)
		c.locations = append(c.locations, l)
	}
	return c
}

// Default is the built-in sample catalog.
func Default() *Catalog {
	return New(sampleProducts(), sampleLocations(), sampleCategories())
}

// Product returns a copy; callers may keep it.
func (c *Catalog) Product(id string) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, domain.NotFoundf("product %q", id)
	}
	return c.products[i].Clone(), nil
}

func (c *Catalog) Location(key string) (domain.Location, bool) {
	i, ok := c.byLocation[key]
	if !ok {
		return domain.Location{}, false
	}
	l := c.locations[i]
	l.Lockers = append([]string(nil), l.Lockers...)
	return l, true
}

func (c *Catalog) Locations() []domain.Location {
	out := make([]domain.Location, 0, len(c.locations))
	for _, l := range c.locations {
		l.Lockers = append([]string(nil), l.Lockers...)
		out = append(out, l)
	}
	return out
}

func (c *Catalog) Categories() []domain.Category {
	return append([]domain.Category(nil), c.categories...)
}

// ListProducts pages through the products of a category, first page is 1.
func (c *Catalog) ListProducts(category string, page, limit int) domain.ProductPage {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	var matched []domain.Product
	for _, p := range c.products {
		if category == "" || category == CategoryAll || p.InCategory(category) {
			matched = append(matched, p)
		}
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]domain.Product, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, p.Clone())
	}
	return domain.ProductPage{
		Products: out,
		Total:    len(matched),
		Page:     page,
		Limit:    limit,
		HasMore:  end < len(matched),
	}
}

// Featured returns up to n products from the offers category.
func (c *Catalog) Featured(n int) []domain.Product {
	var out []domain.Product
	for _, p := range c.products {
		if len(out) == n {
			break
		}
		if p.InCategory("offers") {
			out = append(out, p.Clone())
		}
	}
	return out
}

type fileProduct struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Description   string             `yaml:"description"`
	Price         float64            `yaml:"price"`
	OriginalPrice *float64           `yaml:"original_price"`
	Category      []string           `yaml:"category"`
	Badges        []string           `yaml:"badges"`
	Nutrition     domain.Nutrition   `yaml:"nutrition"`
	Compartment   domain.Compartment `yaml:"compartment"`
}

type file struct {
	Products   []fileProduct     `yaml:"products"`
	Locations  []domain.Location `yaml:"locations"`
	Categories []domain.Category `yaml:"categories"`
}

// Load reads a YAML catalog. Sections left out fall back to the built-in data.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	products := sampleProducts()
	if len(f.Products) > 0 {
		products = products[:0]
		for _, fp := range f.Products {
			if fp.ID == "" {
				return nil, fmt.Errorf("catalog %s: product without id", path)
			}
			if fp.Compartment == "" {
				fp.Compartment = domain.CompartmentMixed
			}
			if !fp.Compartment.Valid() {
				return nil, fmt.Errorf("catalog %s: product %s: unknown compartment %q", path, fp.ID, fp.Compartment)
			}
			p := domain.Product{
				ID:          fp.ID,
				Name:        fp.Name,
				Description: fp.Description,
				Price:       decimal.NewFromFloat(fp.Price).Round(2),
				Category:    fp.Category,
				Badges:      fp.Badges,
				Nutrition:   fp.Nutrition,
				Compartment: fp.Compartment,
			}
			if fp.OriginalPrice != nil {
				op := decimal.NewFromFloat(*fp.OriginalPrice).Round(2)
				p.OriginalPrice = &op
			}
			products = append(products, p)
		}
	}
	locations := sampleLocations()
	if len(f.Locations) > 0 {
		locations = f.Locations
	}
	categories := sampleCategories()
	if len(f.Categories) > 0 {
		categories = f.Categories
	}
	return New(products, locations, categories), nil
}

// Open loads the catalog file at path, or the built-in sample data when path is empty.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
