package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/maneesh/licitafiles/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditLog records file events after they have been committed
type AuditLog interface {
	Record(ctx context.Context, event *models.FileEvent) error
}

// NoopAuditLog discards every event
type NoopAuditLog struct{}

func (NoopAuditLog) Record(context.Context, *models.FileEvent) error { return nil }

const createFileEventsTable = `CREATE TABLE IF NOT EXISTS file_events (
	id            CHAR(36)     NOT NULL PRIMARY KEY,
	action        VARCHAR(16)  NOT NULL,
	name          VARCHAR(512) NOT NULL,
	original_name VARCHAR(512) NOT NULL,
	size_bytes    BIGINT       NOT NULL,
	backend       VARCHAR(32)  NOT NULL,
	created_at    DATETIME(3)  NOT NULL,
	INDEX idx_file_events_name (name)
)`

// MySQLAuditLog writes file events to a MySQL-compatible database
type MySQLAuditLog struct {
	db *sql.DB
}

// NewMySQLAuditLog opens the database and prepares it with NewAuditLogFromDB
func NewMySQLAuditLog(dsn string) (*MySQLAuditLog, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	al, err := NewAuditLogFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return al, nil
}

// NewAuditLogFromDB pings db and creates the events table
func NewAuditLogFromDB(db *sql.DB) (*MySQLAuditLog, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(createFileEventsTable); err != nil {
		return nil, fmt.Errorf("failed to create file_events table: %w", err)
	}

	return &MySQLAuditLog{db: db}, nil
}

// Close closes the database connection
func (al *MySQLAuditLog) Close() error {
	return al.db.Close()
}

// Record inserts one event with tracing
func (al *MySQLAuditLog) Record(ctx context.Context, event *models.FileEvent) error {
	ctx, span := tracer.Start(ctx, "mysql.record_file_event",
		trace.WithAttributes(
			attribute.String("event_id", event.ID),
			attribute.String("action", event.Action),
			attribute.String("file_name", event.Name),
		),
	)
	defer span.End()

	query := `INSERT INTO file_events (id, action, name, original_name, size_bytes, backend, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := al.db.ExecContext(ctx, query,
		event.ID, event.Action, event.Name, event.OriginalName, event.SizeBytes, event.Backend, event.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert file event: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}
