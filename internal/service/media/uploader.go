package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// Uploader stores a blob and returns the public URL it is served from.
type Uploader interface {
	Upload(ctx context.Context, folder string, blob []byte, contentType string) (string, error)
}

func objectKey(folder, contentType string) string {
	return path.Join(folder, uuid.New().String()+contentTypeToExtension(contentType))
}

func contentTypeToExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// DiskUploader writes blobs below Dir, which the HTTP server exposes at
// /uploads.
type DiskUploader struct {
	Dir     string
	BaseURL string
}

func NewDiskUploader(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create upload dir")
	}
	return &DiskUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskUploader) Upload(_ context.Context, folder string, blob []byte, contentType string) (string, error) {
	key := objectKey(folder, contentType)
	target := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", errors.WithMessage(domain.ErrUpload, err.Error())
	}
	if err := os.WriteFile(target, blob, 0o644); err != nil {
		return "", errors.WithMessage(domain.ErrUpload, err.Error())
	}
	return d.BaseURL + "/uploads/" + key, nil
}

// MinIOUploader stores blobs in an S3-compatible bucket.
type MinIOUploader struct {
	client     *minio.Client
	bucketName string
	publicURL  string
}

func NewMinIOUploader(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	u := &MinIOUploader{
		client:     client,
		bucketName: bucketName,
		publicURL:  strings.TrimRight(client.EndpointURL().String(), "/") + "/" + url.PathEscape(bucketName),
	}
	if err := u.ensureBucketExists(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *MinIOUploader) ensureBucketExists(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucketName)
	if err != nil {
		return errors.Wrap(err, "check bucket existence")
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucketName, minio.MakeBucketOptions{}); err != nil {
			return errors.Wrap(err, "create bucket")
		}
	}
	return nil
}

func (u *MinIOUploader) Upload(ctx context.Context, folder string, blob []byte, contentType string) (string, error) {
	key := objectKey(folder, contentType)
	_, err := u.client.PutObject(ctx, u.bucketName, key, bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", errors.WithMessage(domain.ErrUpload, fmt.Sprintf("put object: %v", err))
	}
	return u.publicURL + "/" + key, nil
}
