package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"screening-agent/internal/config"
)

// MinIOConfig selects an S3-compatible bucket for cached audio.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// ExpireDays, when positive, installs a bucket lifecycle rule as a
	// backstop to Prune.
	ExpireDays int
}

// MinIOStore keeps audio in an object store bucket so every replica serves
// the same cache.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: create minio client: %w", err)
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "screening-tts"
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("tts: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("tts: create bucket %s: %w", cfg.Bucket, err)
		}
	}
	if cfg.ExpireDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:         "expire-tts",
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: filePrefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(cfg.ExpireDays)},
		}}
		if err := client.SetBucketLifecycle(ctx, cfg.Bucket, lc); err != nil {
			return nil, fmt.Errorf("tts: set lifecycle for %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

func (m *MinIOStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "audio/mpeg"})
	return err
}

func (m *MinIOStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, err
	}
	st, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return obj, st.Size, nil
}

func (m *MinIOStore) List(ctx context.Context) ([]Object, error) {
	var out []Object
	for info := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: filePrefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, Object{Name: info.Key, ModTime: info.LastModified})
	}
	return out, nil
}

func (m *MinIOStore) Remove(ctx context.Context, name string) error {
	return m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{})
}

// OpenStore returns the shared bucket when MinIO is configured, otherwise a
// local directory.
func OpenStore(ctx context.Context, cfg config.SpeechConfig) (AudioStore, error) {
	if cfg.MinIOEndpoint == "" {
		s, err := NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := NewMinIOStore(ctx, MinIOConfig{
		Endpoint:   cfg.MinIOEndpoint,
		AccessKey:  cfg.MinIOAccessKey,
		SecretKey:  cfg.MinIOSecretKey,
		Bucket:     cfg.MinIOBucket,
		UseSSL:     cfg.MinIOUseSSL,
		ExpireDays: int(cfg.CacheMaxAge / (24 * time.Hour)),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
