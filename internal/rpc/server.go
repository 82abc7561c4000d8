// Package rpc exposes the business services over grpc with a JSON codec, so
// clients dispatch by full method name without generated stubs.
package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/gomem/gomem/internal/config"
	"github.com/gomem/gomem/pkg/auth"
	"github.com/gomem/gomem/pkg/observability"
)

// Server wraps a grpc.Server carrying the six service descriptors.
type Server struct {
	cfg    config.RPCConfig
	grpc   *grpc.Server
	logger observability.Logger
}

// NewServer builds the grpc server with recovery and authentication
// interceptors. TLS is enabled when a cert/key pair is configured; without
// one the server listens in plaintext, which is only acceptable for local
// development.
func NewServer(cfg config.RPCConfig, authn *auth.Authenticator, svcs Services, logger observability.Logger, metrics observability.MetricsClient) (*Server, error) {
	if metrics == nil {
		metrics = observability.NoopMetricsClient{}
	}
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			metricsInterceptor(metrics),
			auth.UnaryServerInterceptor(authn, InitSystemMethod),
		),
		grpc.ForceServerCodec(jsonCodec{}),
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading rpc tls credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("rpc server running without tls", map[string]interface{}{
			"listen_address": cfg.ListenAddress,
		})
	}

	srv := grpc.NewServer(opts...)
	for _, desc := range serviceDescs(svcs) {
		srv.RegisterService(desc, nil)
	}

	return &Server{cfg: cfg, grpc: srv, logger: logger}, nil
}

// ListenAndServe blocks serving on the configured address until Stop is
// called or the listener fails.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(lis)
}

// Serve blocks serving on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("rpc server listening", map[string]interface{}{
		"address": lis.Addr().String(),
	})
	return s.grpc.Serve(lis)
}

// Stop drains in-flight RPCs and shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func metricsInterceptor(metrics observability.MetricsClient) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.IncrementCounter("rpc_requests", 1)
		if err != nil {
			metrics.IncrementCounter("rpc_requests_failed", 1)
		}
		metrics.RecordLatency("rpc "+info.FullMethod, time.Since(start))
		return resp, err
	}
}

func recoveryInterceptor(logger observability.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rpc handler panicked", map[string]interface{}{
					"method": info.FullMethod,
					"panic":  fmt.Sprintf("%v", r),
				})
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
