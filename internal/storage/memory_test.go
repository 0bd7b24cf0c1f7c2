package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/maneesh/licitafiles/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_PutAndList(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBackend()

	assets, err := mb.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, assets)

	uploadedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	asset, err := mb.Put(ctx, Object{
		Name:         "1709287200000-a.pdf",
		OriginalName: "a.pdf",
		Data:         []byte("0123456789"),
		UploadedAt:   uploadedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MockURL, asset.URL)
	assert.Equal(t, int64(10), asset.SizeBytes)
	assert.Equal(t, models.DefaultContentType, asset.ContentType)
	assert.Equal(t, uploadedAt, asset.CreatedAt)

	_, err = mb.Put(ctx, Object{Name: "1709287200001-b.txt", OriginalName: "b.txt", ContentType: "text/plain"})
	require.NoError(t, err)

	assets, err = mb.List(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "1709287200000-a.pdf", assets[0].Name)
	assert.Equal(t, "1709287200001-b.txt", assets[1].Name)
	assert.Equal(t, "text/plain", assets[1].ContentType)
}

func TestMemoryBackend_ListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBackend()
	_, err := mb.Put(ctx, Object{Name: "1-a.pdf", OriginalName: "a.pdf"})
	require.NoError(t, err)

	assets, err := mb.List(ctx)
	require.NoError(t, err)
	assets[0].Name = "changed"

	again, err := mb.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1-a.pdf", again[0].Name)
}

func TestMemoryBackend_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBackend()
	for _, name := range []string{"1-a", "2-b", "3-c"} {
		_, err := mb.Put(ctx, Object{Name: name, OriginalName: name[2:]})
		require.NoError(t, err)
	}

	ok, err := mb.Exists(ctx, "2-b")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mb.Delete(ctx, "2-b"))

	ok, err = mb.Exists(ctx, "2-b")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, mb.Delete(ctx, "2-b"), ErrObjectNotFound)

	assets, err := mb.List(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "1-a", assets[0].Name)
	assert.Equal(t, "3-c", assets[1].Name)
}

func TestMemoryBackend_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	mb := NewMemoryBackend()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("%d-file.txt", i)
			_, err := mb.Put(ctx, Object{Name: name, OriginalName: "file.txt"})
			assert.NoError(t, err)
			if i%2 == 0 {
				assert.NoError(t, mb.Delete(ctx, name))
			}
		}(i)
	}
	wg.Wait()

	assets, err := mb.List(ctx)
	require.NoError(t, err)
	assert.Len(t, assets, 25)
}

func TestMemoryBackend_Identity(t *testing.T) {
	mb := NewMemoryBackend()
	assert.Equal(t, "memory", mb.Name())
	assert.True(t, mb.Degraded())
}
