package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Collection paths the files routes are mounted on. The second one is the
// path the tender UI already calls.
var collectionPaths = []string{"/files", "/api/licitaciones/archivos"}

// NewRouter wires the files handler, health checks and request logging
func NewRouter(fh *FilesHandler, logger *log.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	// Health check endpoints (no tracing needed)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/health/backend", fh.BackendStatus).Methods(http.MethodGet)

	for _, path := range collectionPaths {
		router.Handle(path, otelhttp.NewHandler(http.HandlerFunc(fh.List), "GET "+path)).Methods(http.MethodGet)
		router.Handle(path, otelhttp.NewHandler(http.HandlerFunc(fh.Upload), "POST "+path)).Methods(http.MethodPost)
		router.Handle(path, otelhttp.NewHandler(http.HandlerFunc(fh.Delete), "DELETE "+path)).Methods(http.MethodDelete)
	}

	return router
}
