package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/23skdu/cscgraph/internal/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Defaults applied by NewS3Backend to unset S3BackendConfig fields.
const (
	DefaultRegion              = "us-east-1"
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 100
	DefaultIdleConnTimeout     = 90 * time.Second
	// DefaultPartSize is both the multipart threshold and the part size; it
	// is the smallest part S3 accepts.
	DefaultPartSize = 5 * 1024 * 1024
)

const graphContentType = "application/vnd.cscgraph"

// S3BackendConfig locates a bucket of serialized graphs. Zero values fall
// back to the Default* constants and, for credentials, to the AWS default
// chain (environment, shared config, instance role).
type S3BackendConfig struct {
	Endpoint        string // override for S3-compatible stores such as MinIO
	Bucket          string
	Prefix          string // prepended to every graph name
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UsePathStyle    bool

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// PartSize switches uploads of at least this many bytes to multipart.
	PartSize int
}

// Validate reports configuration errors that no default can fix.
func (c *S3BackendConfig) Validate() error {
	switch {
	case c.Bucket == "":
		return errors.New("S3 bucket is required")
	case (c.AccessKeyID == "") != (c.SecretAccessKey == ""):
		return errors.New("S3 access key and secret key must be set together")
	case c.PartSize < 0:
		return errors.New("S3 part size must not be negative")
	}
	return nil
}

func (c S3BackendConfig) withDefaults() S3BackendConfig {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if c.PartSize == 0 {
		c.PartSize = DefaultPartSize
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return c
}

// S3Backend stores each graph as one object under the configured prefix.
type S3Backend struct {
	client    *s3.Client
	bucket    string
	prefix    string
	partSize  int
	transport *http.Transport
}

// NewS3Backend builds an S3 client for cfg. No request is made until the
// first graph operation.
func NewS3Backend(ctx context.Context, cfg *S3BackendConfig) (*S3Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}
	c := cfg.withDefaults()

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        c.MaxIdleConns,
		MaxIdleConnsPerHost: c.MaxIdleConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(c.Region),
		config.WithHTTPClient(&http.Client{Transport: transport}),
	}
	if c.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
		// Many S3-compatible stores reject the flexible checksum headers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Backend{
		client:    client,
		bucket:    c.Bucket,
		prefix:    c.Prefix,
		partSize:  c.PartSize,
		transport: transport,
	}, nil
}

// Kind implements Backend.
func (b *S3Backend) Kind() string { return KindS3 }

func (b *S3Backend) Bucket() string { return b.bucket }

func (b *S3Backend) Prefix() string { return b.prefix }

// Transport exposes the pooled HTTP transport shared by all requests.
func (b *S3Backend) Transport() *http.Transport { return b.transport }

func buildS3Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// WriteGraph implements Backend. Payloads of at least partSize bytes go up
// as a multipart upload.
func (b *S3Backend) WriteGraph(ctx context.Context, name string, data []byte) (err error) {
	defer func() { recordOp(KindS3, "write", err) }()
	if err := validateName(name); err != nil {
		return err
	}
	key := buildS3Key(b.prefix, name)

	if len(data) >= b.partSize {
		if err := b.writeMultipart(ctx, key, data); err != nil {
			return NewS3Error("upload", b.bucket, key, err)
		}
	} else {
		_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(graphContentType),
		})
		if err != nil {
			return NewS3Error("upload", b.bucket, key, err)
		}
	}
	metrics.StorageBytesTotal.WithLabelValues(KindS3, "write").Add(float64(len(data)))
	return nil
}

// writeMultipart uploads data in partSize pieces and aborts the upload on
// failure.
func (b *S3Backend) writeMultipart(ctx context.Context, key string, data []byte) (err error) {
	created, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(graphContentType),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_, _ = b.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(b.bucket),
				Key:      aws.String(key),
				UploadId: created.UploadId,
			})
		}
	}()

	parts, err := b.uploadParts(ctx, key, created.UploadId, data)
	if err != nil {
		return err
	}
	_, err = b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(key),
		UploadId:        created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	return err
}

func (b *S3Backend) uploadParts(ctx context.Context, key string, uploadID *string, data []byte) ([]types.CompletedPart, error) {
	parts := make([]types.CompletedPart, 0, len(data)/b.partSize+1)
	for off := 0; off < len(data); off += b.partSize {
		num := aws.Int32(int32(len(parts) + 1))
		out, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(b.bucket),
			Key:        aws.String(key),
			UploadId:   uploadID,
			PartNumber: num,
			Body:       bytes.NewReader(data[off:min(off+b.partSize, len(data))]),
		})
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", *num, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: num})
	}
	return parts, nil
}

// ReadGraph implements Backend. A missing key is reported as NotFoundError.
func (b *S3Backend) ReadGraph(ctx context.Context, name string) (_ io.ReadCloser, err error) {
	defer func() { recordOp(KindS3, "read", err) }()
	if err := validateName(name); err != nil {
		return nil, err
	}
	key := buildS3Key(b.prefix, name)

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, NewS3Error("download", b.bucket, key, err)
	}
	metrics.StorageBytesTotal.WithLabelValues(KindS3, "read").Add(float64(aws.ToInt64(result.ContentLength)))
	return result.Body, nil
}

// ListGraphs implements Backend. Names are relative to the prefix, sorted,
// and exclude directory markers.
func (b *S3Backend) ListGraphs(ctx context.Context) (_ []string, err error) {
	defer func() { recordOp(KindS3, "list", err) }()
	listPrefix := ""
	if b.prefix != "" {
		listPrefix = b.prefix + "/"
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, NewS3Error("list", b.bucket, b.prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			if name != "" && !strings.HasSuffix(name, "/") {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// DeleteGraph removes a graph from S3. S3 does not report missing keys on
// delete, so deleting an absent graph succeeds.
func (b *S3Backend) DeleteGraph(ctx context.Context, name string) (err error) {
	defer func() { recordOp(KindS3, "delete", err) }()
	if err := validateName(name); err != nil {
		return err
	}
	key := buildS3Key(b.prefix, name)

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return NewS3Error("delete", b.bucket, key, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// Some S3-compatible services only report it in the message.
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
