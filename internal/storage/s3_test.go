package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dukerupert/checkmate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockS3Client is a mock implementation of S3API for testing
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func TestS3Storage_Put(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		setupMock func(*MockS3Client)
		wantErr   bool
	}{
		{
			name:   "successful upload with prefix",
			prefix: "inspections",
			setupMock: func(m *MockS3Client) {
				m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
					return *in.Bucket == "test-bucket" &&
						strings.HasPrefix(*in.Key, "inspections/") &&
						strings.HasSuffix(*in.Key, ".jpg") &&
						*in.ContentType == "image/jpeg"
				})).Return(&s3.PutObjectOutput{}, nil)
			},
		},
		{
			name: "upload failure",
			setupMock: func(m *MockS3Client) {
				m.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockS3Client)
			tt.setupMock(client)
			s := NewS3Storage(client, "test-bucket", tt.prefix)

			ref, err := s.Put(context.Background(), bytes.NewReader([]byte("jpeg")), "image/jpeg")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.False(t, strings.HasPrefix(ref, "inspections/"), "refs are relative to the prefix")
			}
			client.AssertExpectations(t)
		})
	}
}

func TestS3Storage_Get(t *testing.T) {
	client := new(MockS3Client)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "p/2026/01/a.jpg"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("bytes"))}, nil)
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "p/missing.jpg"
	})).Return(nil, &types.NoSuchKey{})

	s := NewS3Storage(client, "test-bucket", "p")

	rc, err := s.Get(context.Background(), "2026/01/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "bytes", string(data))

	_, err = s.Get(context.Background(), "missing.jpg")
	assert.Equal(t, checkmate.ENOTFOUND, checkmate.ErrorCode(err))
}

func TestS3Storage_Delete(t *testing.T) {
	client := new(MockS3Client)
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "ok.jpg"
	})).Return(&s3.DeleteObjectOutput{}, nil)
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "fail.jpg"
	})).Return(nil, errors.New("throttled"))

	s := NewS3Storage(client, "test-bucket", "")

	assert.NoError(t, s.Delete(context.Background(), "ok.jpg"))
	assert.Error(t, s.Delete(context.Background(), "fail.jpg"))
	client.AssertExpectations(t)
}
