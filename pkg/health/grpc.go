package health

import (
	"context"

	"sundayschool-points/pkg/errutil"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

// GRPCHealth answers grpc.health.v1 probes by pinging the database.
type GRPCHealth struct {
	grpc_health_v1.UnimplementedHealthServer
	db *gorm.DB
}

func ProvideGRPCHealth(db *gorm.DB) *GRPCHealth {
	return &GRPCHealth{db: db}
}

func (h *GRPCHealth) Register(srv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(srv, h)
}

func (h *GRPCHealth) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	sqlDB, err := h.db.DB()
	if err != nil {
		return nil, errutil.ToGRPCError(errutil.Internal("db not ready", err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}

	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (h *GRPCHealth) Watch(req *grpc_health_v1.HealthCheckRequest, srv grpc_health_v1.Health_WatchServer) error {
	return errutil.ToGRPCError(errutil.NotImplemented("watch is not supported", nil))
}
