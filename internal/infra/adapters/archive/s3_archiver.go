package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"learnhub-billing/internal/domain/ports/adapter"
)

var _ adapter.AuditArchiver = (*S3Archiver)(nil)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores raw gateway responses under <prefix>/<key>.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible stores (MinIO, B2); forces path-style
	AccessKey string
	SecretKey string
	Prefix    string
}

func NewS3Archiver(ctx context.Context, o Options) (*S3Archiver, error) {
	if o.Bucket == "" {
		return nil, errors.New("s3 archive: bucket required")
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("s3 archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(opt *s3.Options) {
		if o.Endpoint != "" {
			opt.BaseEndpoint = aws.String(o.Endpoint)
			opt.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: o.Bucket, prefix: strings.Trim(o.Prefix, "/")}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, key string, body []byte) error {
	objKey := path.Join(a.prefix, key)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 archive: put %s: %w", objKey, err)
	}
	return nil
}

// NoopArchiver discards everything.
type NoopArchiver struct{}

func (NoopArchiver) Archive(ctx context.Context, key string, body []byte) error { return nil }
