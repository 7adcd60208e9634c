package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Backend(t *testing.T, endpoint, prefix string, partSize int) *S3Backend {
	t.Helper()
	b, err := NewS3Backend(context.Background(), &S3BackendConfig{
		Endpoint:        endpoint,
		Bucket:          "graphs",
		Prefix:          prefix,
		AccessKeyID:     "testkey",
		SecretAccessKey: "testsecret",
		Region:          "us-east-1",
		UsePathStyle:    true,
		PartSize:        partSize,
	})
	require.NoError(t, err)
	return b
}

func readAll(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// TestS3ConnectionPoolConfig_Defaults tests connection pool configuration
func TestS3ConnectionPoolConfig_Defaults(t *testing.T) {
	backend := newTestS3Backend(t, "http://localhost:9000", "", 0)

	transport := backend.Transport()
	if transport == nil {
		t.Fatal("Transport is nil - connection pooling not configured")
	}
	if transport.MaxIdleConns != DefaultMaxIdleConns {
		t.Errorf("MaxIdleConns = %d, want %d", transport.MaxIdleConns, DefaultMaxIdleConns)
	}
	if transport.MaxIdleConnsPerHost != DefaultMaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost = %d, want %d", transport.MaxIdleConnsPerHost, DefaultMaxIdleConnsPerHost)
	}
	if transport.IdleConnTimeout != DefaultIdleConnTimeout {
		t.Errorf("IdleConnTimeout = %v, want %v", transport.IdleConnTimeout, DefaultIdleConnTimeout)
	}
	if backend.partSize != DefaultPartSize {
		t.Errorf("partSize = %d, want %d", backend.partSize, DefaultPartSize)
	}
}

// TestS3ConnectionPoolConfig_Custom tests custom connection pool settings
func TestS3ConnectionPoolConfig_Custom(t *testing.T) {
	backend, err := NewS3Backend(context.Background(), &S3BackendConfig{
		Endpoint:            "http://localhost:9000",
		Bucket:              "test-bucket",
		Prefix:              "/team/graphs/",
		AccessKeyID:         "testkey",
		SecretAccessKey:     "testsecret",
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     120 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewS3Backend failed: %v", err)
	}

	transport := backend.Transport()
	if transport.MaxIdleConns != 200 {
		t.Errorf("MaxIdleConns = %d, want 200", transport.MaxIdleConns)
	}
	if transport.MaxIdleConnsPerHost != 50 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 50", transport.MaxIdleConnsPerHost)
	}
	if transport.IdleConnTimeout != 120*time.Second {
		t.Errorf("IdleConnTimeout = %v, want 120s", transport.IdleConnTimeout)
	}
	if backend.Prefix() != "team/graphs" {
		t.Errorf("Prefix = %q, want team/graphs", backend.Prefix())
	}
	if backend.Bucket() != "test-bucket" {
		t.Errorf("Bucket = %q, want test-bucket", backend.Bucket())
	}
}

func TestS3BackendConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3BackendConfig
		wantErr bool
	}{
		{"valid", S3BackendConfig{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}, false},
		{"default credential chain", S3BackendConfig{Bucket: "b"}, false},
		{"missing bucket", S3BackendConfig{AccessKeyID: "k", SecretAccessKey: "s"}, true},
		{"key without secret", S3BackendConfig{Bucket: "b", AccessKeyID: "k"}, true},
		{"negative part size", S3BackendConfig{Bucket: "b", PartSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := NewS3Backend(context.Background(), &S3BackendConfig{})
	assert.Error(t, err)
}

func TestBuildS3Key(t *testing.T) {
	assert.Equal(t, "g.csc", buildS3Key("", "g.csc"))
	assert.Equal(t, "team/a/g.csc", buildS3Key("team", "a/g.csc"))
}

func TestS3Backend_WriteReadList(t *testing.T) {
	fake, srv := newFakeS3(t)
	b := newTestS3Backend(t, srv.URL, "prod", 0)
	ctx := context.Background()

	require.NoError(t, b.WriteGraph(ctx, "social/g1.csc", []byte("first")))
	require.NoError(t, b.WriteGraph(ctx, "g0.csc", []byte("second")))

	stored, ok := fake.object("graphs", "prod/social/g1.csc")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), stored)

	rc, err := b.ReadGraph(ctx, "social/g1.csc")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), readAll(t, rc))

	names, err := b.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g0.csc", "social/g1.csc"}, names)

	// Overwrite replaces the object.
	require.NoError(t, b.WriteGraph(ctx, "g0.csc", []byte("third")))
	rc, err = b.ReadGraph(ctx, "g0.csc")
	require.NoError(t, err)
	assert.Equal(t, []byte("third"), readAll(t, rc))
}

func TestS3Backend_Multipart(t *testing.T) {
	fake, srv := newFakeS3(t)
	b := newTestS3Backend(t, srv.URL, "", 16)
	ctx := context.Background()

	data := bytes.Repeat([]byte("0123456789"), 10)
	require.NoError(t, b.WriteGraph(ctx, "big.csc", data))
	assert.Equal(t, 7, fake.partCount())

	rc, err := b.ReadGraph(ctx, "big.csc")
	require.NoError(t, err)
	assert.Equal(t, data, readAll(t, rc))
}

func TestS3Backend_NotFound(t *testing.T) {
	_, srv := newFakeS3(t)
	b := newTestS3Backend(t, srv.URL, "", 0)

	_, err := b.ReadGraph(context.Background(), "missing.csc")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestS3Backend_Delete(t *testing.T) {
	fake, srv := newFakeS3(t)
	b := newTestS3Backend(t, srv.URL, "", 0)
	ctx := context.Background()

	require.NoError(t, b.WriteGraph(ctx, "g.csc", []byte("x")))
	require.NoError(t, b.DeleteGraph(ctx, "g.csc"))
	_, ok := fake.object("graphs", "g.csc")
	assert.False(t, ok)

	names, err := b.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestS3Backend_AccessDenied(t *testing.T) {
	fake, srv := newFakeS3(t)
	fake.denyWrites()
	b := newTestS3Backend(t, srv.URL, "", 0)

	err := b.WriteGraph(context.Background(), "g.csc", []byte("x"))
	require.Error(t, err)
	var s3err *S3Error
	require.True(t, errors.As(err, &s3err))
	assert.Equal(t, "upload", s3err.Op)
	assert.Equal(t, "graphs", s3err.Bucket)
	assert.Equal(t, "g.csc", s3err.Key)
	assert.False(t, IsNotFoundError(err))
}

func TestS3Backend_InvalidName(t *testing.T) {
	b := newTestS3Backend(t, "http://localhost:9000", "", 0)
	for _, name := range []string{"", ".", "../escape.csc", "/abs.csc", "a//b.csc"} {
		err := b.WriteGraph(context.Background(), name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
}
