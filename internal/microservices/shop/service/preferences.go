package service

import (
	"context"
	"fmt"

	"automart/internal/catalog"
	"automart/internal/domain"
	"automart/internal/kvs"
)

type PreferencesConfig struct {
	StorageKey      string
	DefaultName     string
	DefaultLocation string
}

type PreferencesServiceInterface interface {
	Get(ctx context.Context) (domain.Preferences, error)
	Put(ctx context.Context, p domain.Preferences) (domain.Preferences, error)
}

type PreferencesService struct {
	store   kvs.Store
	catalog *catalog.Catalog
	cfg     PreferencesConfig
}

func NewPreferencesService(s kvs.Store, c *catalog.Catalog, cfg PreferencesConfig) PreferencesServiceInterface {
	return &PreferencesService{store: s, catalog: c, cfg: cfg}
}

func (ps *PreferencesService) defaults() domain.Preferences {
	return domain.Preferences{Name: ps.cfg.DefaultName, Location: ps.cfg.DefaultLocation}
}

// Get returns the saved preferences, or the configured defaults.
func (ps *PreferencesService) Get(ctx context.Context) (domain.Preferences, error) {
	p := ps.defaults()
	if _, err := ps.store.Get(ctx, ps.cfg.StorageKey, &p); err != nil {
		return domain.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

func (ps *PreferencesService) Put(ctx context.Context, p domain.Preferences) (domain.Preferences, error) {
	d := ps.defaults()
	if p.Name == "" {
		p.Name = d.Name
	}
	if p.Location == "" {
		p.Location = d.Location
	}
	if _, ok := ps.catalog.Location(p.Location); !ok {
		return domain.Preferences{}, fmt.Errorf("%w: %q", domain.ErrInvalidLocation, p.Location)
	}
	if err := ps.store.Set(ctx, ps.cfg.StorageKey, p); err != nil {
		return domain.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}
