package errutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToGRPCError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{Internal("db not ready", errors.New("closed")), codes.Internal},
		{NotImplemented("watch is not supported", nil), codes.Unimplemented},
		{NotFound("missing", nil), codes.NotFound},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{ValidationFailed("bad", nil), codes.Unknown},
		{errors.New("plain"), codes.Internal},
		{status.Error(codes.Aborted, "already a status"), codes.Aborted},
	}

	for _, tc := range cases {
		st, ok := status.FromError(ToGRPCError(tc.err))
		require.True(t, ok, tc.err)
		require.Equal(t, tc.want, st.Code(), tc.err)
	}
	require.NoError(t, ToGRPCError(nil))
}
