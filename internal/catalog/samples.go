package catalog

import (
	"github.com/shopspring/decimal"

	"automart/internal/domain"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

func sampleProducts() []domain.Product {
	return []domain.Product{
		{
			ID:            "p001",
			Name:          "Wagner Steinofen Pizza",
			Description:   "Knusprige Steinofen Pizza mit Salami",
			Price:         price("2.21"),
			OriginalPrice: pricePtr("3.49"),
			Category:      []string{"frozen", "offers"},
			Badges:        []string{"offer"},
			Compartment:   domain.CompartmentFreezer,
		},
		{
			ID:            "p002",
			Name:          "Kinder Country Riegel",
			Description:   "Milchschokolade mit knusprigen Cerealien",
			Price:         price("1.99"),
			OriginalPrice: pricePtr("2.49"),
			Category:      []string{"snacks", "offers"},
			Badges:        []string{"offer"},
			Nutrition:     domain.Nutrition{Vegetarian: true},
			Compartment:   domain.CompartmentSnack,
		},
		{
			ID:          "p003",
			Name:        "Mozarella Käse",
			Description: "Wir nehmen nur Mozarella, alles andere ist Käse",
			Price:       price("2.59"),
			Category:    []string{"dairy", "vegetarian"},
			Badges:      []string{"new"},
			Nutrition:   domain.Nutrition{Vegetarian: true},
			Compartment: domain.CompartmentFresh,
		},
		{
			ID:          "p004",
			Name:        "Käregården Ungesalzen",
			Description: "Butter ohne Salz, cremig und mild",
			Price:       price("2.15"),
			Category:    []string{"dairy", "vegetarian"},
			Badges:      []string{},
			Nutrition:   domain.Nutrition{Vegetarian: true},
			Compartment: domain.CompartmentFresh,
		},
		{
			ID:          "p005",
			Name:        "Kerrygold Cheddar",
			Description: "Irischer Cheddar-Käse, würzig im Geschmack",
			Price:       price("2.99"),
			Category:    []string{"dairy", "vegetarian"},
			Badges:      []string{},
			Nutrition:   domain.Nutrition{Vegetarian: true},
			Compartment: domain.CompartmentFresh,
		},
		{
			ID:          "p006",
			Name:        "Bio Cola",
			Description: "Erfrischende Bio-Cola ohne Zusatzstoffe",
			Price:       price("1.49"),
			Category:    []string{"drinks", "vegan"},
			Badges:      []string{"vegan"},
			Nutrition:   domain.Nutrition{Vegetarian: true, Vegan: true},
			Compartment: domain.CompartmentDrink,
		},
	}
}

func sampleLocations() []domain.Location {
	return []domain.Location{
		{
			ID:          "markt-xy",
			Name:        "Markt XY - Gotthilf-Bayh Str X",
			Address:     "Gotthilf-Bayh Straße X, Stadt",
			Coordinates: domain.Coordinates{Lat: 48.7758, Lng: 9.1829},
			Lockers:     []string{"locker-001", "locker-002", "locker-003"},
		},
		{
			ID:          "markt-a",
			Name:        "Markt A - Hauptstraße 123",
			Address:     "Hauptstraße 123, Stadt",
			Coordinates: domain.Coordinates{Lat: 48.7659, Lng: 9.1759},
			Lockers:     []string{"locker-101", "locker-102"},
		},
		{
			ID:          "markt-b",
			Name:        "Markt B - Bahnhofstraße 456",
			Address:     "Bahnhofstraße 456, Stadt",
			Coordinates: domain.Coordinates{Lat: 48.7858, Lng: 9.1929},
			Lockers:     []string{"locker-201", "locker-202", "locker-203", "locker-204"},
		},
	}
}

func sampleCategories() []domain.Category {
	return []domain.Category{
		{Key: CategoryAll, Name: "Alle Produkte", Icon: "fas fa-th"},
		{Key: "offers", Name: "Angebote", Icon: "fas fa-tags"},
		{Key: "vegetarian", Name: "Vegetarisch", Icon: "fas fa-leaf"},
		{Key: "vegan", Name: "Vegan", Icon: "fas fa-seedling"},
		{Key: "snacks", Name: "Snacks", Icon: "fas fa-cookie-bite"},
		{Key: "drinks", Name: "Getränke", Icon: "fas fa-glass-whiskey"},
		{Key: "frozen", Name: "Tiefkühl", Icon: "fas fa-snowflake"},
		{Key: "dairy", Name: "Molkereiprodukte", Icon: "fas fa-cheese"},
	}
}
