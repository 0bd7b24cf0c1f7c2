package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"
	"github.com/maneesh/licitafiles/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// S3Config holds the parts of an s3:// connection string
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	// URLExpiry bounds the lifetime of presigned download links
	URLExpiry time.Duration
}

// S3Backend stores tender files in an AWS S3 (or compatible) bucket
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	logger  *log.Logger
}

// NewS3Backend resolves AWS configuration and builds the client. Static
// credentials win over the default credential chain when both keys are set.
func NewS3Backend(ctx context.Context, cfg S3Config, logger *log.Logger) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	cfg.URLExpiry = urlExpiryOrDefault(cfg.URLExpiry)
	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (sb *S3Backend) Name() string   { return "s3" }
func (sb *S3Backend) Degraded() bool { return false }

// EnsureBucket creates the bucket if HeadBucket reports it missing
func (sb *S3Backend) EnsureBucket(ctx context.Context) error {
	_, err := sb.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(sb.cfg.Bucket)})
	if err == nil {
		return nil
	}
	if !isS3NotFound(err) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	sb.logger.Info("Creating bucket", "bucket", sb.cfg.Bucket)
	input := &s3.CreateBucketInput{Bucket: aws.String(sb.cfg.Bucket)}
	if sb.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(sb.cfg.Region),
		}
	}
	if _, err := sb.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// List pages through ListObjectsV2. S3 listings carry no content type, so every
// entry gets the default.
func (sb *S3Backend) List(ctx context.Context) ([]models.FileAsset, error) {
	ctx, span := tracer.Start(ctx, "s3.list_objects",
		trace.WithAttributes(attribute.String("bucket", sb.cfg.Bucket)),
	)
	defer span.End()

	assets := []models.FileAsset{}
	paginator := s3.NewListObjectsV2Paginator(sb.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(sb.cfg.Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			assets = append(assets, models.FileAsset{
				Name:         key,
				OriginalName: originalNameFromKey(key),
				SizeBytes:    aws.ToInt64(obj.Size),
				ContentType:  models.DefaultContentType,
				CreatedAt:    timeOrNow(aws.ToTime(obj.LastModified)),
				URL:          sb.downloadURL(ctx, key),
			})
		}
	}

	span.SetAttributes(attribute.Int("object_count", len(assets)))
	return assets, nil
}

func (sb *S3Backend) Put(ctx context.Context, obj Object) (*models.FileAsset, error) {
	ctx, span := tracer.Start(ctx, "s3.put_object",
		trace.WithAttributes(
			attribute.String("object_key", obj.Name),
			attribute.Int("size_bytes", len(obj.Data)),
		),
	)
	defer span.End()

	contentType := contentTypeOrDefault(obj.ContentType)
	uploadedAt := timeOrNow(obj.UploadedAt)

	_, err := sb.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sb.cfg.Bucket),
		Key:           aws.String(obj.Name),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(contentType),
		Metadata: map[string]string{
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
		Name:         obj.Name,
		OriginalName: obj.OriginalName,
		SizeBytes:    int64(len(obj.Data)),
		ContentType:  contentType,
		CreatedAt:    uploadedAt,
		URL:          sb.downloadURL(ctx, obj.Name),
	}, nil
}

func (sb *S3Backend) Exists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "s3.head_object",
		trace.WithAttributes(attribute.String("object_key", name)),
	)
	defer span.End()

	_, err := sb.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(sb.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			// HEAD has no error body; tell a missing bucket apart
			_, bErr := sb.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(sb.cfg.Bucket)})
			if bErr != nil && isS3NotFound(bErr) {
				span.RecordError(ErrBucketNotFound)
				return false, fmt.Errorf("%w: %s", ErrBucketNotFound, sb.cfg.Bucket)
			}
			span.SetAttributes(attribute.Bool("found", false))
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to head object: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return true, nil
}

// Delete removes the object. DeleteObject is idempotent on S3.
func (sb *S3Backend) Delete(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "s3.delete_object",
		trace.WithAttributes(attribute.String("object_key", name)),
	)
	defer span.End()

	_, err := sb.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(sb.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrObjectNotFound
		}
		span.RecordError(err)
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// downloadURL presigns a GetObject request. Without credentials it degrades
// to the unsigned object URL.
func (sb *S3Backend) downloadURL(ctx context.Context, key string) string {
	req, err := sb.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sb.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(sb.cfg.URLExpiry))
	if err != nil {
		sb.logger.Warn("Failed to presign download URL", "key", key, "err", err)
		return sb.objectURL(key)
	}
	return req.URL
}

func (sb *S3Backend) objectURL(key string) string {
	return s3ObjectURL(sb.cfg, key)
}

// s3ObjectURL builds a path-style URL for custom endpoints and a
// virtual-hosted URL for AWS itself.
func s3ObjectURL(cfg S3Config, key string) string {
	if cfg.Endpoint != "" {
		base, err := url.Parse(cfg.Endpoint)
		if err == nil {
			return base.JoinPath(cfg.Bucket, key).String()
		}
	}
	base := &url.URL{
		Scheme: "https",
		Host:   fmt.Sprintf("%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region),
	}
	return base.JoinPath(key).String()
}

// isS3NotFound reports a missing object. NoSuchBucket is not a match.
func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
