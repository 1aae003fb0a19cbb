package objects

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// Object is a stored blob with its content type
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Store keeps binary objects such as event images
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Get fails with common.ErrNotFound when the key is unknown
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// MinioStore stores objects in a MinIO / S3 bucket
type MinioStore struct {
	client *minio.Client
	bucket string
	log    *log.Logger
}

// NewMinioStore connects to MinIO and creates the bucket if needed
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	l := logger.Service("objects")

	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIO.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinIO.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIO.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinIO.Bucket, err)
		}
		l.Info("Bucket created", "bucket", cfg.MinIO.Bucket)
	}

	l.Info("Object store ready", "endpoint", cfg.MinIO.Endpoint, "bucket", cfg.MinIO.Bucket)
	return &MinioStore{client: client, bucket: cfg.MinIO.Bucket, log: l}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.log.Error("Failed to store object", "key", key, "error", err)
		return fmt.Errorf("put object %s: %w", key, err)
	}
	s.log.Debug("Object stored", "key", key, "size", info.Size)
	return nil
}

func (s *MinioStore) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	// GetObject is lazy; Stat surfaces a missing key
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", key, common.ErrNotFound)
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}

	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps objects in process. Used when no MinIO endpoint is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, common.ErrNotFound)
	}
	return &Object{
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
	}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// New picks MinIO when an endpoint is configured and the in-memory store otherwise
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.MinIO.Endpoint == "" {
		logger.Service("objects").Warn("MINIO_ENDPOINT not set, event images are kept in memory")
		return NewMemoryStore(), nil
	}
	store, err := NewMinioStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
