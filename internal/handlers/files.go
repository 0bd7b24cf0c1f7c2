package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/maneesh/licitafiles/internal/files"
	"github.com/maneesh/licitafiles/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// FormField is the multipart field carrying the file
	FormField = "archivo"
	// NameParam is the query parameter naming the file to delete
	NameParam = "nombre"

	multipartOverhead = 1 << 20
	maxMemory         = 32 << 20
)

// FileService is the part of files.Service the handlers need
type FileService interface {
	List(ctx context.Context) ([]models.FileAsset, error)
	Upload(ctx context.Context, u *files.Upload) (*files.UploadResult, error)
	Delete(ctx context.Context, name string) (*files.DeleteResult, error)
	BackendName() string
	Degraded() bool
}

// FilesHandler serves GET, POST and DELETE on the files collection
type FilesHandler struct {
	service       FileService
	logger        *log.Logger
	exposeDetails bool
}

// NewFilesHandler creates the handler. exposeDetails adds the full error
// chain to 500 responses and must be off in production.
func NewFilesHandler(service FileService, logger *log.Logger, exposeDetails bool) *FilesHandler {
	return &FilesHandler{
		service:       service,
		logger:        logger,
		exposeDetails: exposeDetails,
	}
}

// List handles GET /files
func (fh *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := fh.service.List(r.Context())
	if err != nil {
		fh.writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, models.Envelope{Success: true, Data: assets})
}

// Upload handles POST /files with a multipart "archivo" field
func (fh *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	span := trace.SpanFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, files.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		fh.writeError(w, r, classifyFormError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(FormField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			fh.writeError(w, r, files.ErrMissingFile)
			return
		}
		fh.writeError(w, r, fmt.Errorf("%w: %v", files.ErrMissingFile, err))
		return
	}
	defer file.Close()

	span.SetAttributes(
		attribute.String("original_name", header.Filename),
		attribute.Int64("file_size", header.Size),
	)

	if header.Size > files.MaxUploadSize {
		fh.writeError(w, r, tooLarge(header.Size))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		fh.writeError(w, r, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}

	result, err := fh.service.Upload(r.Context(), &files.Upload{
		Data:         data,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
	})
	if err != nil {
		fh.writeError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, models.Envelope{
		Success: true,
		Data:    result.Asset,
		Warning: result.Warning,
	})
}

// Delete handles DELETE /files?nombre=<name>
func (fh *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get(NameParam)
	if name == "" {
		fh.writeError(w, r, files.ErrMissingName)
		return
	}

	result, err := fh.service.Delete(r.Context(), name)
	if err != nil {
		fh.writeError(w, r, err)
		return
	}

	message := "file deleted"
	if result.Degraded {
		message = "file deleted (in-memory store)"
	}
	respond(w, r, http.StatusOK, models.Envelope{Success: true, Message: message})
}

// BackendStatus reports which backend the service resolved to
func (fh *FilesHandler) BackendStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, models.Envelope{
		Success: true,
		Data: map[string]interface{}{
			"backend":  fh.service.BackendName(),
			"degraded": fh.service.Degraded(),
		},
	})
}

func classifyFormError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
		return tooLarge(-1)
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return fmt.Errorf("%w: expected a multipart form", files.ErrMissingFile)
	}
	return fmt.Errorf("%w: invalid multipart form: %v", files.ErrMissingFile, err)
}

func tooLarge(size int64) error {
	limit := humanize.IBytes(uint64(files.MaxUploadSize))
	if size < 0 {
		return fmt.Errorf("%w: maximum size is %s", files.ErrPayloadTooLarge, limit)
	}
	return fmt.Errorf("%w: %s exceeds the %s limit", files.ErrPayloadTooLarge, humanize.IBytes(uint64(size)), limit)
}
