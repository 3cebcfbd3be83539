package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusUnauthorized:       codes.Unauthenticated,
	StatusForbidden:          codes.PermissionDenied,
	StatusNotFound:           codes.NotFound,
	StatusNotImplemented:     codes.Unimplemented,
	StatusServiceUnavailable: codes.Unavailable,
	StatusInternal:           codes.Internal,
}

// GRPCCode maps the status onto a gRPC code. Statuses the gRPC surface never
// returns map to Unknown.
func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError converts err for the health server's responses.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var base BaseError
	if errors.As(err, &base) {
		return status.Error(base.Code.GRPCCode(), base.messageWithErr())
	}
	return status.Error(codes.Internal, err.Error())
}
