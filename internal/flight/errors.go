package flight

import (
	"context"
	"errors"

	"github.com/23skdu/cscgraph/internal/graph"
	"github.com/23skdu/cscgraph/internal/serialize"
	"github.com/23skdu/cscgraph/internal/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCStatus converts domain errors into gRPC status errors. Errors that
// already carry a status pass through unchanged.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case storage.IsNotFoundError(err), errors.Is(err, errGraphNotRegistered):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, graph.ErrNodeIDOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, serialize.ErrMalformedStream):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, serialize.ErrSerializationIO):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, graph.ErrInvalidGraphStructure),
		errors.Is(err, graph.ErrInvalidMetadata),
		errors.Is(err, storage.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		var s3Err *storage.S3Error
		if errors.As(err, &s3Err) {
			return status.Error(codes.Unavailable, err.Error())
		}
		return status.Error(codes.Internal, err.Error())
	}
}
