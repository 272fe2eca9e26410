package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"fieldbook/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// BookingServiceName is the health entry reported for the booking engine.
const BookingServiceName = "fieldbook.v1.Booking"

// GRPCServer exposes the standard health protocol so that orchestrators can
// probe the engine. Liveness of the database drives the serving status.
type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

// NewGRPCServer listens on the configured port unless lis is provided.
func NewGRPCServer(cfg *config.APIConfig, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	if lis == nil {
		addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		var err error
		lis, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
		}
	}

	auth := NewAuthInterceptor(cfg)
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			LoggingUnaryInterceptor(logger),
			auth.Unary(),
		),
	}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			lis.Close()
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus(BookingServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		health:   hs,
		listener: lis,
		log:      serverLogger,
	}, nil
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("tls: cert_file and key_file are required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tls: load key pair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, errors.New("tls: client_ca_file is required for client certificates")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("tls: read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("tls: no certificates in client ca file")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing flips both the overall and the booking health entries.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(BookingServiceName, st)
}

// WatchReadiness re-evaluates probe every interval until ctx is done.
// Only transitions are logged.
func (s *GRPCServer) WatchReadiness(ctx context.Context, probe func(context.Context) error, interval time.Duration) {
	var (
		known   bool
		serving bool
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe(pctx)
		cancel()

		if !known || serving != (err == nil) {
			if err != nil {
				s.log.Warn().Err(err).Msg("booking engine not ready")
			} else {
				s.log.Info().Msg("booking engine ready")
			}
		}
		known, serving = true, err == nil
		s.SetServing(serving)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown marks the server as not serving and drains in-flight calls.
// When ctx expires first the remaining calls are cut off.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC drain timed out, forcing stop")
		s.server.Stop()
	}
}
