package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"aicv-backend/internal/shared/storage/object"
)

type putAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements ObjectStore using Amazon S3 with public-read objects.
type Store struct {
	client        putAPI
	bucket        string
	prefix        string
	publicBaseURL string
}

// New creates a new S3-backed object store. When publicBaseURL is empty the
// virtual-hosted bucket URL is used.
func New(ctx context.Context, region, bucket, prefix, publicBaseURL string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if strings.TrimSpace(publicBaseURL) == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}
	return newWithClient(s3.NewFromConfig(cfg), bucket, prefix, publicBaseURL), nil
}

func newWithClient(client putAPI, bucket, prefix, publicBaseURL string) *Store {
	return &Store{
		client:        client,
		bucket:        bucket,
		prefix:        object.NormalizePrefix(prefix),
		publicBaseURL: publicBaseURL,
	}
}

// Put uploads data to the given key.
func (s *Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	objectKey := object.ApplyPrefix(s.prefix, key)
	counter := &countingReader{r: r}

	input := &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objectKey),
		Body:                 counter,
		ContentType:          aws.String(contentType),
		ACL:                  s3types.ObjectCannedACLPublicRead,
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return object.Object{}, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return object.Object{
		Key:         objectKey,
		URL:         object.JoinURL(s.publicBaseURL, objectKey),
		ContentType: contentType,
		Size:        counter.n,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ object.ObjectStore = (*Store)(nil)
