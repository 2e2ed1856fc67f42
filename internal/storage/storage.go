package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/config"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/metrics"
)

const (
	// Part size for multipart uploads (16MB)
	partSize = 16 * 1024 * 1024

	// Number of parts uploaded concurrently
	uploadThreads = 4

	defaultURLExpiry = 24 * time.Hour
)

// Storage mirrors finished artifacts into an S3 compatible bucket
type Storage struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
	logger     *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  expiry,
		logger:     logger,
	}, nil
}

// ObjectName returns the key an artifact is archived under
func ObjectName(jobID, filePath string) string {
	return path.Join("downloads", jobID, filepath.Base(filePath))
}

// UploadFile uploads a file from local filesystem
func (s *Storage) UploadFile(ctx context.Context, objectName, filePath, contentType string) error {
	if contentType == "" {
		contentType = getContentType(filePath)
	}

	var size int64
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	}

	start := time.Now()
	_, err := s.client.FPutObject(ctx, s.bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
		NumThreads:  uploadThreads,
	})
	duration := time.Since(start)
	s.logger.LogStorageOperation("upload", s.bucketName, objectName, size, duration, err)

	if err != nil {
		metrics.RecordStorageOperation("upload", "error", duration.Seconds(), 0)
		return fmt.Errorf("failed to upload file: %w", err)
	}

	metrics.RecordStorageOperation("upload", "success", duration.Seconds(), size)
	return nil
}

// GetURL returns a presigned URL for an object
func (s *Storage) GetURL(ctx context.Context, objectName string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// ArchiveArtifact uploads a finished artifact and returns a presigned URL
func (s *Storage) ArchiveArtifact(ctx context.Context, jobID, filePath, contentType string) (string, error) {
	objectName := ObjectName(jobID, filePath)
	if err := s.UploadFile(ctx, objectName, filePath, contentType); err != nil {
		return "", err
	}
	return s.GetURL(ctx, objectName)
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		metrics.RecordStorageOperation("delete", "error", time.Since(start).Seconds(), 0)
		return fmt.Errorf("failed to delete object: %w", err)
	}

	metrics.RecordStorageOperation("delete", "success", time.Since(start).Seconds(), 0)
	return nil
}

// List lists objects with a prefix
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
