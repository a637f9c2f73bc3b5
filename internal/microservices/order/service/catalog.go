package service

import (
	"automart/internal/catalog"
	"automart/internal/domain"
)

type CatalogServiceInterface interface {
	ListProducts(category string, page, limit int) domain.ProductPage
	GetProduct(id string) (domain.Product, error)
	ListLocations() []domain.Location
	ListCategories() []domain.Category
}

type CatalogService struct {
	catalog *catalog.Catalog
}

func NewCatalogService(c *catalog.Catalog) CatalogServiceInterface {
	return &CatalogService{catalog: c}
}

func (cs *CatalogService) ListProducts(category string, page, limit int) domain.ProductPage {
	page, limit = clampPage(page, limit)
	return cs.catalog.ListProducts(category, page, limit)
}

func (cs *CatalogService) GetProduct(id string) (domain.Product, error) { return cs.catalog.Product(id) }

func (cs *CatalogService) ListLocations() []domain.Location { return cs.catalog.Locations() }

func (cs *CatalogService) ListCategories() []domain.Category { return cs.catalog.Categories() }
