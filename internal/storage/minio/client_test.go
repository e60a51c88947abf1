package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/storage/cidutil"
	"github.com/dtroode/househelp-server/internal/storage/storagetest"
)

var errNoSuchKey = minioLib.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int

	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error

	putErr  error
	getErr  error
	statErr error
}

func newFakeMinio() *fakeMinio {
	return &fakeMinio{bucketExists: true, objects: map[string][]byte{}}
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	return f.makeBucketErr
}
func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, r io.Reader, _ int64, _ minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.puts++
	return minioLib.UploadInfo{Key: key, Size: int64(len(data))}, nil
}
func (f *fakeMinio) GetObject(_ context.Context, _ string, key string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return io.NopCloser(&failingReader{err: errNoSuchKey}), nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
func (f *fakeMinio) StatObject(_ context.Context, _ string, key string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	if f.statErr != nil {
		return minioLib.ObjectInfo{}, f.statErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return minioLib.ObjectInfo{}, errNoSuchKey
	}
	return minioLib.ObjectInfo{Key: key}, nil
}

type failingReader struct{ err error }

func (r *failingReader) Read(_ []byte) (int, error) { return 0, r.err }

func TestClient_Conformance(t *testing.T) {
	storagetest.RunBlobStoreConformance(t, func(t *testing.T) model.BlobStore {
		c, err := NewClientWithAPI(context.Background(), newFakeMinio(), "blobs")
		require.NoError(t, err)
		return c
	})
}

func TestNewClientWithAPI_BucketExists(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: true}
	c, err := NewClientWithAPI(ctx, api, "b")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, "b", c.bucket)
}

func TestNewClientWithAPI_CreateBucket(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: false}
	c, err := NewClientWithAPI(ctx, api, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", c.bucket)
}

func TestNewClientWithAPI_BucketExistsError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExistsErr: errors.New("boom")}
	c, err := NewClientWithAPI(ctx, api, "bucket")
	assert.Nil(t, c)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestNewClientWithAPI_MakeBucketError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: false, makeBucketErr: errors.New("fail")}
	c, err := NewClientWithAPI(ctx, api, "bucket")
	assert.Nil(t, c)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestClient_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("keyed by cid", func(t *testing.T) {
		api := newFakeMinio()
		c := &Client{api: api, bucket: "b"}

		id, err := c.Upload(ctx, []any{map[string]string{"title": "Cook"}}, "jobs")
		require.NoError(t, err)

		want, err := cidutil.CIDv1RawSHA256([]byte(`[{"title":"Cook"}]`))
		require.NoError(t, err)
		assert.Equal(t, want.String(), id)
		assert.Contains(t, api.objects, id)
	})

	t.Run("existing object not rewritten", func(t *testing.T) {
		api := newFakeMinio()
		c := &Client{api: api, bucket: "b"}

		_, err := c.Upload(ctx, []any{"same"}, "")
		require.NoError(t, err)
		_, err = c.Upload(ctx, []any{"same"}, "")
		require.NoError(t, err)
		assert.Equal(t, 1, api.puts)
	})

	t.Run("put error", func(t *testing.T) {
		api := newFakeMinio()
		api.putErr = errors.New("put-fail")
		c := &Client{api: api, bucket: "b"}

		_, err := c.Upload(ctx, []any{"data"}, "")
		assert.ErrorIs(t, err, model.ErrUpload)
		assert.Contains(t, err.Error(), "failed to upload object")
	})

	t.Run("stat error", func(t *testing.T) {
		api := newFakeMinio()
		api.statErr = errors.New("stat-fail")
		c := &Client{api: api, bucket: "b"}

		_, err := c.Upload(ctx, []any{"data"}, "")
		assert.ErrorIs(t, err, model.ErrUpload)
	})

	t.Run("unencodable payload", func(t *testing.T) {
		c := &Client{api: newFakeMinio(), bucket: "b"}

		_, err := c.Upload(ctx, []any{make(chan int)}, "")
		assert.ErrorIs(t, err, model.ErrUpload)
	})
}

func TestClient_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("network error", func(t *testing.T) {
		api := newFakeMinio()
		api.getErr = errors.New("dial tcp: refused")
		c := &Client{api: api, bucket: "b"}
		id, err := cidutil.CIDv1RawSHA256([]byte("x"))
		require.NoError(t, err)

		_, err = c.Fetch(ctx, id.String())
		assert.ErrorIs(t, err, model.ErrNetwork)
	})

	t.Run("tampered object", func(t *testing.T) {
		api := newFakeMinio()
		c := &Client{api: api, bucket: "b"}
		id, err := c.Upload(ctx, []any{"original"}, "")
		require.NoError(t, err)
		api.objects[id] = []byte(`["tampered"]`)

		_, err = c.Fetch(ctx, id)
		assert.ErrorIs(t, err, model.ErrCIDMismatch)
	})

	t.Run("invalid cid", func(t *testing.T) {
		c := &Client{api: newFakeMinio(), bucket: "b"}

		_, err := c.Fetch(ctx, "nonsense")
		assert.ErrorIs(t, err, model.ErrInvalidCID)
	})
}
