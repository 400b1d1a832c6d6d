package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/turtacn/ChargeMatch/internal/config"
	"github.com/turtacn/ChargeMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChargeMatch/pkg/errors"
)

const (
	defaultMaxRecvMsgSize  = 16 * 1024 * 1024
	defaultMaxSendMsgSize  = 16 * 1024 * 1024
	defaultGracefulTimeout = 10 * time.Second
)

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle:     15 * time.Minute,
	MaxConnectionAge:      30 * time.Minute,
	MaxConnectionAgeGrace: 5 * time.Second,
	Time:                  5 * time.Minute,
	Timeout:               1 * time.Second,
}

var defaultKeepalivePolicy = keepalive.EnforcementPolicy{
	MinTime:             5 * time.Second,
	PermitWithoutStream: true,
}

// Option configures the gRPC Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger          logging.Logger
	metrics         Recorder
	tlsConfig       *tls.Config
	maxRecvMsgSize  int
	maxSendMsgSize  int
	keepaliveParams keepalive.ServerParameters
	gracefulTimeout time.Duration
	listener        net.Listener
}

// WithLogger sets the logger for the gRPC server.
func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// WithMetrics records every unary call on m.
func WithMetrics(m Recorder) Option {
	return func(o *serverOptions) {
		o.metrics = m
	}
}

// WithTLSConfig sets TLS configuration for the gRPC server.
func WithTLSConfig(tc *tls.Config) Option {
	return func(o *serverOptions) {
		o.tlsConfig = tc
	}
}

// WithMaxRecvMsgSize sets the maximum receive message size in bytes.
func WithMaxRecvMsgSize(size int) Option {
	return func(o *serverOptions) {
		if size > 0 {
			o.maxRecvMsgSize = size
		}
	}
}

// WithMaxSendMsgSize sets the maximum send message size in bytes.
func WithMaxSendMsgSize(size int) Option {
	return func(o *serverOptions) {
		if size > 0 {
			o.maxSendMsgSize = size
		}
	}
}

// WithKeepaliveParams sets keepalive parameters for the gRPC server.
func WithKeepaliveParams(params keepalive.ServerParameters) Option {
	return func(o *serverOptions) {
		o.keepaliveParams = params
	}
}

// WithGracefulTimeout sets the graceful shutdown timeout.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *serverOptions) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// WithListener serves on lis instead of binding cfg's address.
func WithListener(lis net.Listener) Option {
	return func(o *serverOptions) {
		o.listener = lis
	}
}

// Server wraps a gRPC server with lifecycle management, interceptor chains,
// health checking and graceful shutdown.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	cfg          *config.GRPCConfig
	opts         *serverOptions
	healthServer *health.Server
	mu           sync.Mutex
	started      bool
}

// NewServer binds the listener, assembles the interceptor chain and
// registers the health service.  Reflection is registered in debug mode only.
func NewServer(cfg *config.GRPCConfig, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("grpc config must not be nil")
	}

	sopts := &serverOptions{
		maxRecvMsgSize:  defaultMaxRecvMsgSize,
		maxSendMsgSize:  defaultMaxSendMsgSize,
		keepaliveParams: defaultKeepaliveParams,
		gracefulTimeout: defaultGracefulTimeout,
	}
	for _, o := range opts {
		o(sopts)
	}
	if sopts.logger == nil {
		sopts.logger = logging.NewNopLogger()
	}

	lis := sopts.listener
	if lis == nil {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		var err error
		lis, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to bind gRPC listener").WithDetail("addr=" + addr)
		}
	}

	grpcOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(sopts.maxRecvMsgSize),
		grpc.MaxSendMsgSize(sopts.maxSendMsgSize),
		grpc.KeepaliveParams(sopts.keepaliveParams),
		grpc.KeepaliveEnforcementPolicy(defaultKeepalivePolicy),
		// recovery → logging → metrics → error mapping → validation
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(sopts.logger),
			loggingUnaryInterceptor(sopts.logger),
			metricsUnaryInterceptor(sopts.metrics),
			errorUnaryInterceptor(),
			validationUnaryInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			recoveryStreamInterceptor(sopts.logger),
			loggingStreamInterceptor(sopts.logger),
		),
	}
	if sopts.tlsConfig != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(sopts.tlsConfig)))
	}

	gs := grpc.NewServer(grpcOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if cfg.Debug {
		reflection.Register(gs)
		sopts.logger.Info("grpc reflection service registered (debug mode)")
	}

	return &Server{
		grpcServer:   gs,
		listener:     lis,
		cfg:          cfg,
		opts:         sopts,
		healthServer: hs,
	}, nil
}

// RegisterService registers a service implementation and marks it SERVING.
// Must be called before Start.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.grpcServer.RegisterService(desc, impl)
	s.healthServer.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.opts.logger.Info("grpc service registered", logging.String("service", desc.ServiceName))
}

// SetServing flips the overall health status, e.g. while the repository reloads.
func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
}

// Start serves until Stop.  It returns nil after a graceful stop.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.InvalidState("grpc server already started")
	}
	s.started = true
	s.mu.Unlock()

	s.opts.logger.Info("grpc server starting", logging.String("address", s.listener.Addr().String()))
	if err := s.grpcServer.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
		return errors.Wrap(err, errors.CodeInternal, "grpc server failed")
	}
	return nil
}

// Stop performs a graceful shutdown, forcing an immediate stop once the
// graceful period expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.grpcServer.Stop()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		return nil
	}

	s.opts.logger.Info("grpc server stopping")
	// NOT_SERVING lets load balancers drain traffic.
	s.healthServer.Shutdown()

	gracefulCtx, cancel := context.WithTimeout(ctx, s.opts.gracefulTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.opts.logger.Info("grpc server stopped gracefully")
	case <-gracefulCtx.Done():
		s.opts.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCServer returns the underlying grpc.Server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

//Personal.AI order the ending
