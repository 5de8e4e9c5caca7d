// Package s3service provides S3 storage for catalog CSV uploads.
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"game-recommendation-engine/internal/utils"
)

// Key prefixes of the catalog upload lifecycle.
const (
	UploadsPrefix   = "uploads/"
	ProcessedPrefix = "processed/"
	FailedPrefix    = "failed/"
)

const defaultExpiryMinutes = 15

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Service handles S3 operations
type Service struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucketName string
	logger     *zap.Logger
}

// PresignedURLResult contains the presigned URL details
type PresignedURLResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewService creates a new S3 service for bucket.
func NewService(ctx context.Context, bucket, region string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &Service{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucket,
		logger:     utils.Component("s3"),
	}, nil
}

// Bucket returns the bucket this service operates on.
func (s *Service) Bucket() string {
	return s.bucketName
}

// UploadKey builds the object key for a new catalog upload:
// uploads/YYYY/MM/DD/<uuid>_<name>.csv.
func UploadKey(filename string, now time.Time) string {
	name := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name = strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_")
	if name == "" || name == "." {
		name = "catalog"
	}
	return fmt.Sprintf("%s%s/%s_%s.csv", UploadsPrefix, now.UTC().Format("2006/01/02"), uuid.New().String(), name)
}

// ArchiveKey maps an upload key to its key under prefix, keeping the rest of
// the path.
func ArchiveKey(key, prefix string) string {
	return prefix + strings.TrimPrefix(key, UploadsPrefix)
}

// ReportKey returns the key of the JSON ingest report stored beside an
// archived catalog file.
func ReportKey(archivedKey string) string {
	return strings.TrimSuffix(archivedKey, path.Ext(archivedKey)) + ".report.json"
}

// IsCatalogUpload reports whether key is a CSV under the uploads prefix.
func IsCatalogUpload(key string) bool {
	return strings.HasPrefix(key, UploadsPrefix) && strings.EqualFold(path.Ext(key), ".csv")
}

// GeneratePresignedUploadURL creates a presigned URL for uploading files
func (s *Service) GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, expiryMinutes int) (*PresignedURLResult, error) {
	if expiryMinutes <= 0 {
		expiryMinutes = defaultExpiryMinutes
	}

	expiry := time.Duration(expiryMinutes) * time.Minute

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	presignedReq, err := s.presigner.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		s.logger.Error("Failed to generate presigned URL",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	s.logger.Info("Generated presigned upload URL",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Int("expiry_minutes", expiryMinutes),
	)

	return &PresignedURLResult{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// DownloadFile downloads a file from S3
func (s *Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.logger.Error("Failed to download file from S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	s.logger.Info("Downloaded file from S3",
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return data, nil
}

// UploadFile uploads a file to S3
func (s *Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("Failed to upload file to S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.logger.Info("Uploaded file to S3",
		zap.String("key", key),
		zap.Int("size", len(data)),
	)

	return nil
}

// DeleteFile deletes a file from S3
func (s *Service) DeleteFile(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	s.logger.Info("Deleted file from S3", zap.String("key", key))

	return nil
}

// CopyFile copies a file within the bucket.
func (s *Service) CopyFile(ctx context.Context, sourceKey, destKey string) error {
	source := (&url.URL{Path: s.bucketName + "/" + sourceKey}).EscapedPath()

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucketName),
		CopySource: aws.String(source),
		Key:        aws.String(destKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	s.logger.Info("Copied file in S3",
		zap.String("source", sourceKey),
		zap.String("destination", destKey),
	)

	return nil
}

// MoveFile moves a file within S3 (copy + delete)
func (s *Service) MoveFile(ctx context.Context, sourceKey, destKey string) error {
	if err := s.CopyFile(ctx, sourceKey, destKey); err != nil {
		return err
	}

	return s.DeleteFile(ctx, sourceKey)
}
