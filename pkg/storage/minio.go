package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
)

// MinioStorage is a storage implementation backed by an S3-compatible
// object store.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

var _ Storage = (*MinioStorage)(nil)

// NewMinioStorage creates a new MinioStorage from the given configuration.
func NewMinioStorage(cfg config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Open implements Storage.
func (m *MinioStorage) Open(ctx context.Context, name string) (Object, error) {
	// GetObject defers errors to the first read, so stat first to surface
	// missing objects as fs.ErrNotExist.
	info, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return nil, wrapMinioError(name, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapMinioError(name, err)
	}

	return &minioObject{Object: obj, info: info}, nil
}

// Stat implements Storage.
func (m *MinioStorage) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return nil, wrapMinioError(name, err)
	}

	return minioFileInfo{info}, nil
}

// Put implements Storage.
func (m *MinioStorage) Put(ctx context.Context, name string, r io.Reader) (int64, error) {
	info, err := m.client.PutObject(ctx, m.bucket, name, r, -1, minio.PutObjectOptions{})
	if err != nil {
		return 0, wrapMinioError(name, err)
	}

	return info.Size, nil
}

// Delete implements Storage.
func (m *MinioStorage) Delete(ctx context.Context, name string) error {
	return wrapMinioError(name, m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}))
}

// Exists implements Storage.
func (m *MinioStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

// Rename implements Storage. Object stores have no native rename, so this is
// a server-side copy followed by a delete of the source.
func (m *MinioStorage) Rename(ctx context.Context, oldName, newName string) error {
	_, err := m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.bucket, Object: newName},
		minio.CopySrcOptions{Bucket: m.bucket, Object: oldName},
	)
	if err != nil {
		return wrapMinioError(oldName, err)
	}

	return wrapMinioError(oldName, m.client.RemoveObject(ctx, m.bucket, oldName, minio.RemoveObjectOptions{}))
}

func wrapMinioError(name string, err error) error {
	if err == nil {
		return nil
	}

	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	return err
}

// minioObject adapts a minio object to the Object interface.
type minioObject struct {
	*minio.Object
	info minio.ObjectInfo
}

// Name implements Object.
func (o *minioObject) Name() string {
	return o.info.Key
}

// Stat implements Object.
func (o *minioObject) Stat() (fs.FileInfo, error) {
	return minioFileInfo{o.info}, nil
}

// minioFileInfo adapts minio object info to fs.FileInfo.
type minioFileInfo struct {
	info minio.ObjectInfo
}

var _ fs.FileInfo = minioFileInfo{}

func (f minioFileInfo) Name() string       { return path.Base(f.info.Key) }
func (f minioFileInfo) Size() int64        { return f.info.Size }
func (f minioFileInfo) Mode() fs.FileMode  { return 0o644 }
func (f minioFileInfo) ModTime() time.Time { return f.info.LastModified }
func (f minioFileInfo) IsDir() bool        { return false }
func (f minioFileInfo) Sys() any           { return nil }
