package files

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/maneesh/licitafiles/internal/models"
	"github.com/maneesh/licitafiles/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("licitafiles-files")

// MaxUploadSize is the hard per-file limit (100 MiB)
const MaxUploadSize int64 = 100 * 1024 * 1024

// DegradedWarning accompanies uploads kept in the in-memory store
const DegradedWarning = "file stored in memory (blob storage not configured)"

// Upload is a file received from a caller
type Upload struct {
	Data         []byte
	OriginalName string
	ContentType  string
}

// UploadResult carries the stored asset and, in mock mode, a warning
type UploadResult struct {
	Asset   *models.FileAsset
	Warning string
}

// DeleteResult describes what a delete actually did
type DeleteResult struct {
	Degraded bool
	Removed  bool
}

// Service lists, uploads and deletes file assets on whichever backend the
// selector resolved.
type Service struct {
	backend          storage.Backend
	audit            storage.AuditLog
	logger           *log.Logger
	now              func() time.Time
	strictMockDelete bool
	lastStamp        atomic.Int64
}

// Option configures a Service
type Option func(*Service)

// WithAuditLog records upload and delete events
func WithAuditLog(audit storage.AuditLog) Option {
	return func(s *Service) { s.audit = audit }
}

// WithLogger sets the logger; log.Default() otherwise
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStrictMockDelete makes deletes of unknown names fail with ErrNotFound
// on the in-memory store too. Off by default: the in-memory store reports
// success for unknown names.
func WithStrictMockDelete(strict bool) Option {
	return func(s *Service) { s.strictMockDelete = strict }
}

// NewService creates a file asset service bound to backend
func NewService(backend storage.Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		audit:   storage.NoopAuditLog{},
		logger:  log.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BackendName identifies the resolved backend
func (s *Service) BackendName() string {
	return s.backend.Name()
}

// Degraded reports whether the service runs on the in-memory store
func (s *Service) Degraded() bool {
	return s.backend.Degraded()
}

// List returns every stored asset. An empty store yields an empty slice.
func (s *Service) List(ctx context.Context) ([]models.FileAsset, error) {
	ctx, span := tracer.Start(ctx, "list_files", s.backendAttrs())
	defer span.End()

	assets, err := s.backend.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, s.backendError("list", "", err)
	}
	if assets == nil {
		assets = []models.FileAsset{}
	}

	span.SetAttributes(attribute.Int("file_count", len(assets)))
	s.logger.Debug("Listed files", "backend", s.backend.Name(), "count", len(assets))
	return assets, nil
}

// Upload validates and stores a file under a generated name
func (s *Service) Upload(ctx context.Context, u *Upload) (*UploadResult, error) {
	ctx, span := tracer.Start(ctx, "upload_file", s.backendAttrs())
	defer span.End()

	if u == nil || u.OriginalName == "" {
		return nil, ErrMissingFile
	}

	size := int64(len(u.Data))
	span.SetAttributes(
		attribute.String("original_name", u.OriginalName),
		attribute.Int64("file_size", size),
	)
	if size > MaxUploadSize {
		return nil, fmt.Errorf("%w: %s exceeds the %s limit",
			ErrPayloadTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(MaxUploadSize)))
	}

	contentType := u.ContentType
	if contentType == "" {
		contentType = models.DefaultContentType
	}

	stamp := s.nextStamp()
	name := objectName(stamp, u.OriginalName)
	span.SetAttributes(attribute.String("file_name", name))

	s.logger.Info("Uploading file", "name", name, "size", humanize.IBytes(uint64(size)), "backend", s.backend.Name())
	asset, err := s.backend.Put(ctx, storage.Object{
		Name:         name,
		OriginalName: u.OriginalName,
		ContentType:  contentType,
		Data:         u.Data,
		UploadedAt:   time.UnixMilli(stamp).UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, s.backendError("upload", name, err)
	}

	result := &UploadResult{Asset: asset}
	if s.backend.Degraded() {
		result.Warning = DegradedWarning
		s.logger.Warn("File kept in memory only", "name", name)
	}

	s.record(ctx, models.ActionUpload, asset.Name, asset.OriginalName, asset.SizeBytes)
	s.logger.Info("File upload completed", "name", name)
	return result, nil
}

// Delete removes the asset called name.
//
// The existence probe and the delete are two separate backend calls, so a
// concurrent delete landing in between is treated as success.
func (s *Service) Delete(ctx context.Context, name string) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "delete_file", s.backendAttrs())
	defer span.End()

	if name == "" {
		return nil, ErrMissingName
	}
	span.SetAttributes(attribute.String("file_name", name))

	degraded := s.backend.Degraded()
	exists, err := s.backend.Exists(ctx, name)
	if err != nil {
		span.RecordError(err)
		return nil, s.backendError("exists", name, err)
	}

	if !exists {
		if degraded && !s.strictMockDelete {
			s.logger.Warn("Delete of unknown file on in-memory store ignored", "name", name)
			return &DeleteResult{Degraded: true}, nil
		}
		return nil, ErrNotFound
	}

	removed := true
	if err := s.backend.Delete(ctx, name); err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			span.RecordError(err)
			return nil, s.backendError("delete", name, err)
		}
		removed = false
		s.logger.Warn("File vanished between existence check and delete", "name", name)
	}

	if removed {
		s.record(ctx, models.ActionDelete, name, "", 0)
	}
	s.logger.Info("File deleted", "name", name, "backend", s.backend.Name())
	return &DeleteResult{Degraded: degraded, Removed: removed}, nil
}

func (s *Service) record(ctx context.Context, action, name, originalName string, size int64) {
	event := &models.FileEvent{
		ID:           uuid.New().String(),
		Action:       action,
		Name:         name,
		OriginalName: originalName,
		SizeBytes:    size,
		Backend:      s.backend.Name(),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("Failed to record file event", "action", action, "name", name, "err", err)
	}
}

func (s *Service) backendError(op, name string, err error) error {
	return &BackendError{Backend: s.backend.Name(), Op: op, Name: name, Err: err}
}

func (s *Service) backendAttrs() trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("backend", s.backend.Name()),
		attribute.Bool("degraded", s.backend.Degraded()),
	)
}
