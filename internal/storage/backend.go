package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/maneesh/licitafiles/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("licitafiles-storage")

var (
	// ErrBackendUnavailable is returned by Selector.Client when no remote store is configured
	ErrBackendUnavailable = errors.New("blob storage backend not configured")

	// ErrObjectNotFound is returned by Backend.Delete when the object does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound is returned when the configured bucket does not exist
	ErrBucketNotFound = errors.New("bucket not found")
)

// Metadata keys attached to every remote object
const (
	MetaOriginalName = "originalName"
	MetaUploadDate   = "uploadDate"
)

// Object is a file ready to be written to a backend
type Object struct {
	Name         string
	OriginalName string
	ContentType  string
	Data         []byte
	UploadedAt   time.Time
}

// Backend is the storage contract shared by the in-memory store and the
// remote blob stores.
type Backend interface {
	// Name identifies the backend in logs, spans and audit records.
	Name() string
	// Degraded reports whether this is the in-memory fallback.
	Degraded() bool
	// List returns every stored asset.
	List(ctx context.Context) ([]models.FileAsset, error)
	// Put writes the object and returns the committed asset.
	Put(ctx context.Context, obj Object) (*models.FileAsset, error)
	// Exists probes for an object by name.
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes an object, returning ErrObjectNotFound if it is absent.
	Delete(ctx context.Context, name string) error
}

var timestampPrefix = regexp.MustCompile(`^\d+-`)

// originalNameFromKey recovers a display name from a generated key when the
// provider does not return the originalName metadata.
func originalNameFromKey(key string) string {
	return timestampPrefix.ReplaceAllString(key, "")
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return models.DefaultContentType
	}
	return ct
}

// Download links handed out for remote assets are presigned GET URLs
const (
	DefaultURLExpiry = time.Hour
	MaxURLExpiry     = 7 * 24 * time.Hour
)

func urlExpiryOrDefault(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultURLExpiry
	case d < time.Second:
		return time.Second
	case d > MaxURLExpiry:
		return MaxURLExpiry
	}
	return d
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
