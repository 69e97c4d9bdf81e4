//go:build !integration

package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_Archive(t *testing.T) {
	t.Run("should put the body under the prefix", func(t *testing.T) {
		p := &fakePutter{}
		a := &S3Archiver{client: p, bucket: "audit", prefix: "payments"}
		require.NoError(t, a.Archive(context.Background(), "2025/03/10/TXN1.json", []byte(`{"status":"VALID"}`)))
		assert.Equal(t, "audit", aws.ToString(p.in.Bucket))
		assert.Equal(t, "payments/2025/03/10/TXN1.json", aws.ToString(p.in.Key))
		assert.Equal(t, "application/json", aws.ToString(p.in.ContentType))
		assert.JSONEq(t, `{"status":"VALID"}`, string(p.body))
	})

	t.Run("empty prefix keeps the key", func(t *testing.T) {
		p := &fakePutter{}
		a := &S3Archiver{client: p, bucket: "audit"}
		require.NoError(t, a.Archive(context.Background(), "k.json", nil))
		assert.Equal(t, "k.json", aws.ToString(p.in.Key))
	})

	t.Run("should wrap put errors", func(t *testing.T) {
		a := &S3Archiver{client: &fakePutter{err: errors.New("AccessDenied")}, bucket: "audit", prefix: "p"}
		assert.ErrorContains(t, a.Archive(context.Background(), "k.json", nil), "p/k.json")
	})
}

func TestNewS3Archiver(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), Options{})
	assert.Error(t, err)

	a, err := NewS3Archiver(context.Background(), Options{
		Bucket: "audit", Region: "us-east-1", Endpoint: "http://localhost:9000",
		AccessKey: "minio", SecretKey: "minio123", Prefix: "/payments/",
	})
	require.NoError(t, err)
	assert.Equal(t, "payments", a.prefix)
}
