package blobsvc

import (
	"context"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
)

type S3 struct {
	client *s3.Client
	bucket string
}

var _ core.BlobStorage = (*S3)(nil) // interface compliance check

// NewS3 connects to the bucket of sc. A custom endpoint (e.g. MinIO) switches to path-style addressing.
func NewS3(sc core.StorageConfig) (*S3, error) {
	if sc.Bucket == "" {
		return nil, errors.New("s3 storage needs a bucket")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(sc.Region)}
	if sc.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKey, sc.SecretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: sc.Bucket}, nil
}

func (s *S3) Store(ctx context.Context, dir, filename string, r io.Reader) (string, error) {
	key := objectKey(dir, filename)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}
	return key, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "deleting %s", key)
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	key, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking %s", key)
	}
	return true, nil
}
