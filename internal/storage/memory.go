package storage

import (
	"context"
	"sync"

	"github.com/maneesh/licitafiles/internal/models"
)

// MemoryBackend is the degraded-mode store. Assets live in process memory in
// insertion order and disappear on restart.
type MemoryBackend struct {
	mu     sync.Mutex
	assets []models.FileAsset
}

// NewMemoryBackend creates an empty in-memory store
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (mb *MemoryBackend) Name() string   { return "memory" }
func (mb *MemoryBackend) Degraded() bool { return true }

// List returns a copy of the stored assets in insertion order
func (mb *MemoryBackend) List(ctx context.Context) ([]models.FileAsset, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	out := make([]models.FileAsset, len(mb.assets))
	copy(out, mb.assets)
	return out, nil
}

// Put appends the object's metadata. The bytes themselves are not retained.
func (mb *MemoryBackend) Put(ctx context.Context, obj Object) (*models.FileAsset, error) {
	asset := models.FileAsset{
		Name:         obj.Name,
		OriginalName: obj.OriginalName,
		SizeBytes:    int64(len(obj.Data)),
		ContentType:  contentTypeOrDefault(obj.ContentType),
		CreatedAt:    timeOrNow(obj.UploadedAt),
		URL:          models.MockURL,
	}

	mb.mu.Lock()
	mb.assets = append(mb.assets, asset)
	mb.mu.Unlock()

	return &asset, nil
}

func (mb *MemoryBackend) Exists(ctx context.Context, name string) (bool, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.indexOf(name) >= 0, nil
}

func (mb *MemoryBackend) Delete(ctx context.Context, name string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	idx := mb.indexOf(name)
	if idx < 0 {
		return ErrObjectNotFound
	}
	mb.assets = append(mb.assets[:idx], mb.assets[idx+1:]...)
	return nil
}

// indexOf must be called with mu held
func (mb *MemoryBackend) indexOf(name string) int {
	for i := range mb.assets {
		if mb.assets[i].Name == name {
			return i
		}
	}
	return -1
}
