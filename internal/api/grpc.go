package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/helioscope/solar-anomaly/internal/config"
	"github.com/helioscope/solar-anomaly/internal/models"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "solar.anomaly.v1.AnomalyEngine"

// AnomalyEngineServer is the server API for the AnomalyEngine service. Every
// message is a google.protobuf.Struct carrying the JSON form of the models.
type AnomalyEngineServer interface {
	RunDetection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WeatherAdjustedPerformance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnomalyDistribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SystemHealth(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFindings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateFindingStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(AnomalyEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnomalyEngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnomalyEngineServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AnomalyEngineServiceDesc describes the AnomalyEngine service for grpc.Server.RegisterService.
var AnomalyEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnomalyEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("RunDetection", AnomalyEngineServer.RunDetection),
		unaryHandler("WeatherAdjustedPerformance", AnomalyEngineServer.WeatherAdjustedPerformance),
		unaryHandler("AnomalyDistribution", AnomalyEngineServer.AnomalyDistribution),
		unaryHandler("SystemHealth", AnomalyEngineServer.SystemHealth),
		unaryHandler("ListFindings", AnomalyEngineServer.ListFindings),
		unaryHandler("UpdateFindingStatus", AnomalyEngineServer.UpdateFindingStatus),
	},
	Metadata: "solar/anomaly/v1/anomaly.proto",
}

// GRPCHandler adapts Service to AnomalyEngineServer.
type GRPCHandler struct {
	logger  *slog.Logger
	service Service
}

// NewGRPCHandler builds the gRPC adapter.
func NewGRPCHandler(logger *slog.Logger, service Service) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{logger: logger.With("component", "grpc"), service: service}
}

func (h *GRPCHandler) failure(method string, err error) error {
	if statusCode(err) == codes.Internal {
		h.logger.Error("rpc failed", slog.String("method", method), slog.Any("error", err))
	}
	return toStatus(err)
}

func (h *GRPCHandler) reply(method string, v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, h.failure(method, err)
	}
	out, err := toStruct(v)
	if err != nil {
		h.logger.Error("encode response failed", slog.String("method", method), slog.Any("error", err))
		return nil, toStatus(err)
	}
	return out, nil
}

// RunDetection triggers a detection run over all active units, or one unit when unitId is set.
func (h *GRPCHandler) RunDetection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RunRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	var (
		res models.RunResult
		err error
	)
	if req.UnitID != "" {
		res, err = h.service.RunDetectionForUnit(ctx, req.UnitID)
	} else {
		res, err = h.service.RunDetection(ctx)
	}
	if err == nil || res.StartedAt.IsZero() {
		return h.reply("RunDetection", res, err)
	}
	// A run that failed midway still reports its partial aggregate as a status detail.
	st := status.Convert(h.failure("RunDetection", err))
	if partial, encErr := toStruct(res); encErr == nil {
		if detailed, detErr := st.WithDetails(partial); detErr == nil {
			st = detailed
		}
	}
	return nil, st.Err()
}

// WeatherAdjustedPerformance returns the daily performance report.
func (h *GRPCHandler) WeatherAdjustedPerformance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req WindowRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	res, err := h.service.WeatherAdjustedPerformance(ctx, req.UnitID, windowDays(req.Days))
	return h.reply("WeatherAdjustedPerformance", res, err)
}

// AnomalyDistribution returns finding counts grouped by type, severity and status.
func (h *GRPCHandler) AnomalyDistribution(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req WindowRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	res, err := h.service.AnomalyDistribution(ctx, req.UnitID, windowDays(req.Days))
	return h.reply("AnomalyDistribution", res, err)
}

// SystemHealth returns the composite health score.
func (h *GRPCHandler) SystemHealth(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req WindowRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	res, err := h.service.SystemHealth(ctx, req.UnitID, windowDays(req.Days))
	return h.reply("SystemHealth", res, err)
}

// ListFindings returns one page of findings.
func (h *GRPCHandler) ListFindings(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FindingsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	findings, err := h.service.ListFindings(ctx, req.Query())
	if findings == nil {
		findings = []models.Finding{}
	}
	return h.reply("ListFindings", FindingsResponse{Findings: findings, Count: len(findings)}, err)
}

// UpdateFindingStatus records a review decision.
func (h *GRPCHandler) UpdateFindingStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req StatusUpdateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	err := h.service.UpdateFindingStatus(ctx, req.ID, req.Status, req.ResolvedBy, req.Notes)
	return h.reply("UpdateFindingStatus", map[string]any{"id": req.ID, "status": req.Status}, err)
}

// Server wraps the gRPC server implementation and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewGRPCServer builds an instrumented grpc.Server with the AnomalyEngine,
// health and reflection services registered.
func NewGRPCServer(service AnomalyEngineServer, opts ...grpc.ServerOption) *grpc.Server {
	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	grpcServer.RegisterService(&AnomalyEngineServiceDesc, service)
	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)
	return grpcServer
}

// NewServer constructs a gRPC server bound to the configured address.
func NewServer(cfg config.ServerConfig, service AnomalyEngineServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}
	return &Server{
		cfg:        cfg,
		grpcServer: NewGRPCServer(service, opts...),
		listener:   lis,
	}, nil
}

// Start serves incoming gRPC requests until Stop/Shutdown is invoked.
func (s *Server) Start() error {
	if s.grpcServer == nil || s.listener == nil {
		return fmt.Errorf("server not initialised")
	}
	return s.grpcServer.Serve(s.listener)
}

// Shutdown attempts a graceful shutdown, falling back to Stop after timeout.
func (s *Server) Shutdown(ctx context.Context) {
	if s.grpcServer == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
