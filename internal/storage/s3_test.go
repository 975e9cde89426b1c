package storage

import (
	"context"
	"io"
	"testing"

	"planted-staging/pkg/errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client overrides the calls S3Storage makes; anything else panics
// through the nil embedded interface.
type mockS3Client struct {
	s3iface.S3API
	PutObjectFunc    func(*s3.PutObjectInput) (*s3.PutObjectOutput, error)
	GetObjectFunc    func(*s3.GetObjectInput) (*s3.GetObjectOutput, error)
	DeleteObjectFunc func(*s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	HeadObjectFunc   func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
}

func (m *mockS3Client) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(in)
}

func (m *mockS3Client) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(in)
}

func (m *mockS3Client) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	return m.DeleteObjectFunc(in)
}

func (m *mockS3Client) HeadObjectWithContext(_ aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	return m.HeadObjectFunc(in)
}

func TestS3UploadSendsBucketKeyAndType(t *testing.T) {
	var got *s3.PutObjectInput
	store := NewS3StorageWithClient(&mockS3Client{
		PutObjectFunc: func(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			got = in
			return &s3.PutObjectOutput{}, nil
		},
	}, "workbooks")

	err := store.Upload(context.Background(), "staged-uploads/u1/week.xlsx", []byte("PK"), "application/zip")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "workbooks", aws.StringValue(got.Bucket))
	assert.Equal(t, "staged-uploads/u1/week.xlsx", aws.StringValue(got.Key))
	assert.Equal(t, "application/zip", aws.StringValue(got.ContentType))
	assert.Equal(t, int64(2), aws.Int64Value(got.ContentLength))
}

func TestS3MissingObjects(t *testing.T) {
	missing := awserr.New(s3.ErrCodeNoSuchKey, "gone", nil)
	store := NewS3StorageWithClient(&mockS3Client{
		GetObjectFunc: func(*s3.GetObjectInput) (*s3.GetObjectOutput, error) { return nil, missing },
		HeadObjectFunc: func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return nil, awserr.NewRequestFailure(awserr.New("NotFound", "not found", nil), 404, "req-1")
		},
	}, "workbooks")

	_, err := store.Download(context.Background(), "k")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	ok, err := store.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "a/b.xlsx", []byte("data"), "application/zip"))
	ok, err := store.Exists(ctx, "a/b.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Download(ctx, "a/b.xlsx")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "data", string(body))

	require.NoError(t, store.Delete(ctx, "a/b.xlsx"))
	_, err = store.Download(ctx, "a/b.xlsx")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestArchiveKey(t *testing.T) {
	assert.Equal(t, "staged-uploads/u1/week.xlsx", ArchiveKey("staged-uploads", "u1", "week.xlsx"))
	assert.Equal(t, "staged-uploads/u1/week.xlsx", ArchiveKey("staged-uploads", "u1", `C:\Users\admin\week.xlsx`))
	assert.Equal(t, "staged-uploads/u1/workbook.xlsx", ArchiveKey("staged-uploads", "u1", ""))
}
