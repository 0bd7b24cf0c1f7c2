package models

import "time"

// MockURL is the locator handed out for assets kept in the in-memory store.
// It is not a dereferenceable link.
const MockURL = "#mock-url"

// DefaultContentType is used when an upload or a listing entry carries no MIME type
const DefaultContentType = "application/octet-stream"

// FileAsset represents one uploaded tender file
type FileAsset struct {
	Name         string    `json:"nombre"`
	OriginalName string    `json:"nombreOriginal,omitempty"`
	SizeBytes    int64     `json:"tamaño"`
	ContentType  string    `json:"tipo"`
	CreatedAt    time.Time `json:"fechaCreacion"`
	URL          string    `json:"url"`
}

// Envelope is the JSON body returned by every /files endpoint
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Details string      `json:"details,omitempty"`
}

// FileEvent is an audit record written after a successful upload or delete
type FileEvent struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	Backend      string    `json:"backend"`
	CreatedAt    time.Time `json:"created_at"`
}

// Audit actions
const (
	ActionUpload = "upload"
	ActionDelete = "delete"
)
