package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/storage/cidutil"
)

const contentTypeJSON = "application/json"

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucketName, objectName, opts)
}

var _ model.BlobStore = (*Client)(nil)

// Client stores JSON blobs in a bucket keyed by their CID.
type Client struct {
	api    minioAPI
	bucket string
}

// NewClient creates a new MinIO blob store using a real *minio.Client instance.
func NewClient(ctx context.Context, client *minio.Client, bucket string) (*Client, error) {
	return NewClientWithAPI(ctx, minioClientWrapper{c: client}, bucket)
}

// NewClientWithAPI allows injecting a mockable API (used in tests).
func NewClientWithAPI(ctx context.Context, api minioAPI, bucket string) (*Client, error) {
	c := &Client{
		api:    api,
		bucket: bucket,
	}

	err := c.ensureBucketExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return c, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (c *Client) ensureBucketExists(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Upload serializes payload and stores it under its CID. Blobs are immutable,
// so an object that already exists is not written again.
func (c *Client) Upload(ctx context.Context, payload any, name string) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode payload: %w", model.ErrUpload, err)
	}
	id, err := cidutil.CIDv1RawSHA256(data)
	if err != nil {
		return "", fmt.Errorf("%w: failed to derive cid: %w", model.ErrUpload, err)
	}
	key := id.String()

	exists, err := c.exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}
	if exists {
		return key, nil
	}

	opts := minio.PutObjectOptions{ContentType: contentTypeJSON}
	if name != "" {
		opts.UserMetadata = map[string]string{"name": name}
	}
	_, err = c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload object: %w", model.ErrUpload, err)
	}
	return key, nil
}

// Fetch downloads the blob stored under cid and checks it against the CID.
func (c *Client) Fetch(ctx context.Context, cid string) (json.RawMessage, error) {
	id, err := cidutil.Parse(cid)
	if err != nil {
		return nil, err
	}

	obj, err := c.api.GetObject(ctx, c.bucket, cid, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.fetchError(cid, err)
	}
	defer obj.Close()

	// MinIO defers request errors until the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.fetchError(cid, err)
	}

	if err := cidutil.Verify(id, data); err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("blob %s is not valid JSON", cid)
	}
	return data, nil
}

func (c *Client) fetchError(cid string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("blob %s: %w", cid, model.ErrNotFound)
	}
	return fmt.Errorf("%w: failed to get object: %w", model.ErrNetwork, err)
}

func (c *Client) exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
