package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/maneesh/licitafiles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu          sync.Mutex
	listing     []models.FileAsset
	cached      bool
	gen         int64
	getErr      error
	gets        int
	sets        int
	invalidates int
}

func (fc *fakeCache) GetListing(ctx context.Context) ([]models.FileAsset, bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.gets++
	if fc.getErr != nil {
		return nil, false, fc.getErr
	}
	return fc.listing, fc.cached, nil
}

func (fc *fakeCache) Generation(ctx context.Context) (int64, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.gen, nil
}

func (fc *fakeCache) SetListing(ctx context.Context, gen int64, assets []models.FileAsset) (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if gen != fc.gen {
		return false, nil
	}
	fc.sets++
	fc.listing = assets
	fc.cached = true
	return true, nil
}

func (fc *fakeCache) InvalidateListing(ctx context.Context) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.invalidates++
	fc.gen++
	fc.listing = nil
	fc.cached = false
	return nil
}

// gatedBackend blocks its first List after taking the snapshot, until released
type gatedBackend struct {
	*MemoryBackend
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		MemoryBackend: NewMemoryBackend(),
		listed:        make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (gb *gatedBackend) List(ctx context.Context) ([]models.FileAsset, error) {
	assets, err := gb.MemoryBackend.List(ctx)
	gb.once.Do(func() {
		close(gb.listed)
		<-gb.release
	})
	return assets, err
}

// wrappedNotFound returns a wrapped ErrObjectNotFound from Delete
type wrappedNotFound struct {
	*MemoryBackend
}

func (wb wrappedNotFound) Delete(ctx context.Context, name string) error {
	return fmt.Errorf("remove %s: %w", name, ErrObjectNotFound)
}

func TestCachedBackend_ListUsesCache(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryBackend()
	_, err := inner.Put(ctx, Object{Name: "1-a.pdf", OriginalName: "a.pdf"})
	require.NoError(t, err)

	cache := &fakeCache{}
	cb := NewCachedBackend(inner, cache, quietLogger())

	first, err := cb.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, cache.sets)

	// A write behind the cache's back is not visible until invalidation
	_, err = inner.Put(ctx, Object{Name: "2-b.pdf", OriginalName: "b.pdf"})
	require.NoError(t, err)

	second, err := cb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, 1, cache.sets)
}

func TestCachedBackend_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	cb := NewCachedBackend(NewMemoryBackend(), cache, quietLogger())

	_, err := cb.List(ctx)
	require.NoError(t, err)

	_, err = cb.Put(ctx, Object{Name: "1-a.pdf", OriginalName: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidates)

	assets, err := cb.List(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	require.NoError(t, cb.Delete(ctx, "1-a.pdf"))
	assert.Equal(t, 2, cache.invalidates)

	assets, err = cb.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestCachedBackend_CacheErrorFallsThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryBackend()
	_, err := inner.Put(ctx, Object{Name: "1-a.pdf", OriginalName: "a.pdf"})
	require.NoError(t, err)

	cb := NewCachedBackend(inner, &fakeCache{getErr: errors.New("connection refused")}, quietLogger())
	assets, err := cb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 1)
	assert.Equal(t, "memory", cb.Name())
}

func TestCachedBackend_ListOverlappingDeleteIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := newGatedBackend()
	_, err := inner.Put(ctx, Object{Name: "1-a.pdf", OriginalName: "a.pdf"})
	require.NoError(t, err)

	cache := &fakeCache{}
	cb := NewCachedBackend(inner, cache, quietLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	var stale []models.FileAsset
	go func() {
		defer wg.Done()
		stale, _ = cb.List(ctx)
	}()

	// The reader holds a snapshot that still contains the file
	<-inner.listed
	require.NoError(t, cb.Delete(ctx, "1-a.pdf"))
	close(inner.release)
	wg.Wait()

	require.Len(t, stale, 1)
	assert.Equal(t, 0, cache.sets)

	assets, err := cb.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestCachedBackend_WrappedNotFoundInvalidates(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	cb := NewCachedBackend(wrappedNotFound{NewMemoryBackend()}, cache, quietLogger())

	err := cb.Delete(ctx, "1-a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, 1, cache.invalidates)
}
