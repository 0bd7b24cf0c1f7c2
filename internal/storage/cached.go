package storage

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/maneesh/licitafiles/internal/models"
)

// ListingCache stores the most recent List result of a backend.
//
// Every invalidation bumps a generation counter. SetListing only stores a
// listing read under the current generation, so a List racing a write can
// never put a pre-write listing back into the cache.
type ListingCache interface {
	GetListing(ctx context.Context) ([]models.FileAsset, bool, error)
	Generation(ctx context.Context) (int64, error)
	SetListing(ctx context.Context, gen int64, assets []models.FileAsset) (bool, error)
	InvalidateListing(ctx context.Context) error
}

// CachedBackend serves List from a ListingCache and drops the cached listing
// after every successful write. Cache failures are logged and bypassed.
type CachedBackend struct {
	Backend
	cache  ListingCache
	logger *log.Logger
}

// NewCachedBackend wraps inner with a listing cache
func NewCachedBackend(inner Backend, cache ListingCache, logger *log.Logger) *CachedBackend {
	return &CachedBackend{Backend: inner, cache: cache, logger: logger}
}

func (cb *CachedBackend) List(ctx context.Context) ([]models.FileAsset, error) {
	assets, ok, err := cb.cache.GetListing(ctx)
	if err != nil {
		cb.logger.Warn("Listing cache lookup failed", "err", err)
	} else if ok {
		cb.logger.Debug("Listing cache HIT", "backend", cb.Name())
		return assets, nil
	}

	gen, genErr := cb.cache.Generation(ctx)
	if genErr != nil {
		cb.logger.Warn("Listing cache generation lookup failed", "err", genErr)
	}

	assets, err = cb.Backend.List(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return assets, nil
	}

	stored, err := cb.cache.SetListing(ctx, gen, assets)
	if err != nil {
		cb.logger.Warn("Failed to update listing cache", "err", err)
	} else if !stored {
		cb.logger.Debug("Listing changed while reading, not cached", "backend", cb.Name())
	}
	return assets, nil
}

func (cb *CachedBackend) Put(ctx context.Context, obj Object) (*models.FileAsset, error) {
	asset, err := cb.Backend.Put(ctx, obj)
	if err != nil {
		return nil, err
	}
	cb.invalidate(ctx)
	return asset, nil
}

func (cb *CachedBackend) Delete(ctx context.Context, name string) error {
	err := cb.Backend.Delete(ctx, name)
	if err == nil || errors.Is(err, ErrObjectNotFound) {
		cb.invalidate(ctx)
	}
	return err
}

func (cb *CachedBackend) invalidate(ctx context.Context) {
	if err := cb.cache.InvalidateListing(ctx); err != nil {
		cb.logger.Warn("Failed to invalidate listing cache", "err", err)
	}
}
