package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// ErrInvalidName is returned for graph names that are empty or escape the
// backend root.
var ErrInvalidName = errors.New("invalid graph name")

// NotFoundError indicates a graph object was not found.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("graph not found: %s", e.Name)
}

// Is makes errors.Is(err, fs.ErrNotExist) hold for missing graphs.
func (e *NotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// S3Error provides rich context for S3 backend operations.
type S3Error struct {
	Op        string    // Operation: "upload", "download", "list", "delete"
	Bucket    string    // S3 bucket name
	Key       string    // S3 object key
	Cause     error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *S3Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("S3 %s failed for s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Cause)
	}
	return fmt.Sprintf("S3 %s failed for s3://%s/%s", e.Op, e.Bucket, e.Key)
}

func (e *S3Error) Unwrap() error {
	return e.Cause
}

// NewS3Error creates an S3 error with timestamp.
func NewS3Error(op, bucket, key string, cause error) error {
	return &S3Error{
		Op:        op,
		Bucket:    bucket,
		Key:       key,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// LocalError provides context for local directory backend operations.
type LocalError struct {
	Op    string // Operation: "write", "read", "list", "delete"
	Path  string
	Cause error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("local %s failed for %s: %v", e.Op, e.Path, e.Cause)
}

func (e *LocalError) Unwrap() error {
	return e.Cause
}
