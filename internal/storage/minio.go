package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/maneesh/licitafiles/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MinioConfig holds the parts of a minio:// connection string
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set
	Region string
	// URLExpiry bounds the lifetime of presigned download links
	URLExpiry time.Duration
}

// MinioBackend stores tender files in a MinIO bucket with tracing
type MinioBackend struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
	logger     *log.Logger
}

// NewMinioBackend builds the client without touching the network
func NewMinioBackend(cfg MinioConfig, logger *log.Logger) (*MinioBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinioBackend{
		client:     client,
		bucketName: cfg.Bucket,
		urlExpiry:  urlExpiryOrDefault(cfg.URLExpiry),
		logger:     logger,
	}, nil
}

func (mb *MinioBackend) Name() string   { return "minio" }
func (mb *MinioBackend) Degraded() bool { return false }

// EnsureBucket creates the bucket if it does not exist yet
func (mb *MinioBackend) EnsureBucket(ctx context.Context) error {
	exists, err := mb.client.BucketExists(ctx, mb.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		mb.logger.Info("Creating bucket", "bucket", mb.bucketName)
		if err := mb.client.MakeBucket(ctx, mb.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// List enumerates every object in the bucket
func (mb *MinioBackend) List(ctx context.Context) ([]models.FileAsset, error) {
	ctx, span := tracer.Start(ctx, "minio.list_objects",
		trace.WithAttributes(attribute.String("bucket", mb.bucketName)),
	)
	defer span.End()

	assets := []models.FileAsset{}
	for obj := range mb.client.ListObjects(ctx, mb.bucketName, minio.ListObjectsOptions{
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			span.RecordError(obj.Err)
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}

		originalName := lookupMeta(obj.UserMetadata, MetaOriginalName)
		if originalName == "" {
			originalName = originalNameFromKey(obj.Key)
		}
		contentType := obj.ContentType
		if contentType == "" {
			contentType = lookupMeta(obj.UserMetadata, "content-type")
		}

		assets = append(assets, models.FileAsset{
			Name:         obj.Key,
			OriginalName: originalName,
			SizeBytes:    obj.Size,
			ContentType:  contentTypeOrDefault(contentType),
			CreatedAt:    timeOrNow(obj.LastModified),
			URL:          mb.downloadURL(ctx, obj.Key),
		})
	}

	span.SetAttributes(attribute.Int("object_count", len(assets)))
	return assets, nil
}

// Put uploads the object with its content type and provenance metadata
func (mb *MinioBackend) Put(ctx context.Context, obj Object) (*models.FileAsset, error) {
	ctx, span := tracer.Start(ctx, "minio.put_object",
		trace.WithAttributes(
			attribute.String("object_key", obj.Name),
			attribute.Int("size_bytes", len(obj.Data)),
		),
	)
	defer span.End()

	contentType := contentTypeOrDefault(obj.ContentType)
	uploadedAt := timeOrNow(obj.UploadedAt)

	info, err := mb.client.PutObject(ctx, mb.bucketName, obj.Name, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			MetaOriginalName: obj.OriginalName,
			MetaUploadDate:   uploadedAt.Format(time.RFC3339),
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return &models.FileAsset{
		Name:         info.Key,
		OriginalName: obj.OriginalName,
		SizeBytes:    info.Size,
		ContentType:  contentType,
		CreatedAt:    timeOrNow(info.LastModified),
		URL:          mb.downloadURL(ctx, info.Key),
	}, nil
}

func (mb *MinioBackend) Exists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "minio.stat_object",
		trace.WithAttributes(attribute.String("object_key", name)),
	)
	defer span.End()

	_, err := mb.client.StatObject(ctx, mb.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		// A HEAD carries no error body, so minio-go reports any 404 on an
		// object as NoSuchKey, even when the bucket is the missing part.
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			if bucketOK, bErr := mb.client.BucketExists(ctx, mb.bucketName); bErr == nil && !bucketOK {
				span.RecordError(ErrBucketNotFound)
				return false, fmt.Errorf("%w: %s", ErrBucketNotFound, mb.bucketName)
			}
			span.SetAttributes(attribute.Bool("found", false))
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to stat object: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return true, nil
}

// Delete removes the object. MinIO treats removal of a missing key as success.
func (mb *MinioBackend) Delete(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "minio.remove_object",
		trace.WithAttributes(attribute.String("object_key", name)),
	)
	defer span.End()

	if err := mb.client.RemoveObject(ctx, mb.bucketName, name, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrObjectNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// downloadURL presigns a GET for key. Signing is local once the bucket region
// is known; on failure the unsigned object URL is returned instead.
func (mb *MinioBackend) downloadURL(ctx context.Context, key string) string {
	u, err := mb.client.PresignedGetObject(ctx, mb.bucketName, key, mb.urlExpiry, nil)
	if err != nil {
		mb.logger.Warn("Failed to presign download URL", "key", key, "err", err)
		return mb.objectURL(key)
	}
	return u.String()
}

func (mb *MinioBackend) objectURL(key string) string {
	return mb.client.EndpointURL().JoinPath(mb.bucketName, key).String()
}

// lookupMeta finds a user metadata value regardless of the header prefix and
// casing the provider returns it with.
func lookupMeta(meta map[string]string, key string) string {
	key = strings.ToLower(key)
	for k, v := range meta {
		k = strings.ToLower(k)
		if k == key || strings.HasSuffix(k, "-"+key) {
			return v
		}
	}
	return ""
}
