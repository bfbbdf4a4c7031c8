package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	policy          string

	putKey  string
	putOpts minioLib.PutObjectOptions
	putErr  error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	return f.makeBucketErr
}

func (f *fakeMinio) SetBucketPolicy(_ context.Context, _ string, policy string) error {
	f.policy = policy
	return nil
}

func (f *fakeMinio) PutObject(_ context.Context, _ string, key string, r io.Reader, _ int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putKey = key
	f.putOpts = opts
	data, _ := io.ReadAll(r)
	return minioLib.UploadInfo{Key: key, Size: int64(len(data))}, f.putErr
}

func TestNewWithAPICreatesPublicBucket(t *testing.T) {
	api := &fakeMinio{bucketExists: false}
	s, err := NewWithAPI(context.Background(), api, "shots", "http://localhost:9002/shots")
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Contains(t, api.policy, "arn:aws:s3:::shots/*")
}

func TestNewWithAPIBucketExistsError(t *testing.T) {
	api := &fakeMinio{bucketExistsErr: errors.New("boom")}
	s, err := NewWithAPI(context.Background(), api, "shots", "")
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ensure bucket exists")
}

func TestPutReturnsPublicURL(t *testing.T) {
	api := &fakeMinio{bucketExists: true}
	s, err := NewWithAPI(context.Background(), api, "shots", "http://localhost:9002/shots")
	require.NoError(t, err)

	obj, err := s.Put(context.Background(), "screenshots/r1/a.png", "image/png", strings.NewReader("abc"), 3)
	require.NoError(t, err)

	assert.Equal(t, "screenshots/r1/a.png", api.putKey)
	assert.Equal(t, "image/png", api.putOpts.ContentType)
	assert.Equal(t, "http://localhost:9002/shots/screenshots/r1/a.png", obj.URL)
	assert.EqualValues(t, 3, obj.Size)
}
