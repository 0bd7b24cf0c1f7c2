package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/maneesh/licitafiles/internal/files"
	"github.com/maneesh/licitafiles/internal/models"
)

func respond(w http.ResponseWriter, r *http.Request, status int, env models.Envelope) {
	render.Status(r, status)
	render.JSON(w, r, env)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, files.ErrMissingFile),
		errors.Is(err, files.ErrMissingName),
		errors.Is(err, files.ErrPayloadTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, files.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (fh *FilesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	env := models.Envelope{Success: false, Error: err.Error()}

	if status == http.StatusInternalServerError {
		var be *files.BackendError
		if errors.As(err, &be) {
			env.Error = be.Err.Error()
		}
		if fh.exposeDetails {
			env.Details = err.Error()
		}
		fh.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		fh.logger.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}

	respond(w, r, status, env)
}
