package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

const singlePartLimit = 5 << 20

// R2Options locates an S3-compatible bucket (Cloudflare R2, MinIO, S3).
type R2Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// R2Storage stages audio in an S3-compatible bucket.
type R2Storage struct {
	client      *minio.Client
	bucket      string
	bucketReady atomic.Bool
	logger      *slog.Logger
}

// NewR2Storage builds the minio client. No network call happens until the first Put.
func NewR2Storage(opts R2Options, logger *slog.Logger) (*R2Storage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("r2 bucket is required")
	}
	client, err := minio.New(endpointHost(opts.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       !strings.HasPrefix(strings.ToLower(strings.TrimSpace(opts.Endpoint)), "http://"),
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init r2 client: %w", err)
	}
	return &R2Storage{
		client: client,
		bucket: opts.Bucket,
		logger: logger.With("component", "storage.r2"),
	}, nil
}

func (s *R2Storage) ensureBucket(ctx context.Context) error {
	if s.bucketReady.Load() {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil || !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("bucket created", "bucket", s.bucket)
	}
	s.bucketReady.Store(true)
	return nil
}

// Put uploads data under key.
func (s *R2Storage) Put(ctx context.Context, key string, data []byte, mimeType string) (callnotes.StoredObject, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return callnotes.StoredObject{}, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      mimeType,
		DisableMultipart: len(data) < singlePartLimit,
	})
	if err != nil {
		return callnotes.StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return callnotes.StoredObject{
		Key:      key,
		Size:     info.Size,
		MimeType: mimeType,
		ETag:     info.ETag,
	}, nil
}

// Get opens key for reading.
func (s *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces missing keys here instead of on first Read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, nil
}

// Delete removes key.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

var _ callnotes.ObjectStorage = (*R2Storage)(nil)

// endpointHost strips scheme and path, which minio.New rejects.
func endpointHost(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(raw, "/")
	return host
}
