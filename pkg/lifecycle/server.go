/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/carverauto/fleetradar/pkg/logger"
	"github.com/carverauto/fleetradar/pkg/models"
)

const shutdownTimeout = 10 * time.Second

var (
	errServiceRequired    = errors.New("service is required")
	errListenAddrRequired = errors.New("listen address is required")
	errFailedToParseCA    = errors.New("failed to parse CA certificate")
)

// Service is a long-running component managed by RunServer.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// GRPCServiceRegistrar registers additional gRPC services on the health server.
type GRPCServiceRegistrar func(*grpc.Server) error

// ServerOptions configures RunServer.
type ServerOptions struct {
	ListenAddr           string
	ServiceName          string
	Service              Service
	RegisterGRPCServices []GRPCServiceRegistrar
	EnableHealthCheck    bool
	Security             *models.SecurityConfig
	Logger               logger.Logger
}

// RunServer starts the service and a gRPC endpoint exposing grpc.health.v1, then blocks
// until ctx is cancelled, a termination signal arrives or the endpoint fails.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts.Service == nil {
		return errServiceRequired
	}

	if opts.ListenAddr == "" {
		return errListenAddrRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.New(logger.WithComponent("lifecycle"))
	}

	serverOpts, err := grpcServerOptions(opts.Security)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(serverOpts...)
	healthSrv := health.NewServer()

	if opts.EnableHealthCheck {
		healthpb.RegisterHealthServer(srv, healthSrv)
	}

	reflection.Register(srv)

	for _, register := range opts.RegisterGRPCServices {
		if err := register(srv); err != nil {
			return fmt.Errorf("failed to register gRPC service: %w", err)
		}
	}

	lc := &net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := opts.Service.Start(ctx); err != nil {
		_ = lis.Close()

		return fmt.Errorf("failed to start service: %w", err)
	}

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if opts.ServiceName != "" {
		healthSrv.SetServingStatus(opts.ServiceName, healthpb.HealthCheckResponse_SERVING)
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info().Str("addr", opts.ListenAddr).Msg("gRPC health endpoint listening")

		serveErr <- srv.Serve(lis)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown requested")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("gRPC server failed: %w", err)
		}
	}

	healthSrv.Shutdown()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := opts.Service.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Service stop failed")

		runErr = errors.Join(runErr, err)
	}

	gracefulStop(stopCtx, srv, log)

	return runErr
}

func gracefulStop(ctx context.Context, srv *grpc.Server, log logger.Logger) {
	stopped := make(chan struct{})

	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info().Msg("gRPC server stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("gRPC server shutdown timed out, forcing stop")
		srv.Stop()
	}
}

func grpcServerOptions(sec *models.SecurityConfig) ([]grpc.ServerOption, error) {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 10 * time.Minute,
			Time:              120 * time.Second,
			Timeout:           20 * time.Second,
		}),
	}

	if sec == nil || sec.Mode != models.SecurityModeMTLS {
		return opts, nil
	}

	tlsConfig, err := serverTLSConfig(sec)
	if err != nil {
		return nil, err
	}

	return append(opts, grpc.Creds(credentials.NewTLS(tlsConfig))), nil
}

func serverTLSConfig(sec *models.SecurityConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(sec.TLS.CertFile, sec.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	config := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	caFile := sec.TLS.ClientCAFile
	if caFile == "" {
		caFile = sec.TLS.CAFile
	}

	if caFile == "" {
		return config, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client CA: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errFailedToParseCA
	}

	config.ClientCAs = pool
	config.ClientAuth = tls.RequireAndVerifyClientCert

	return config, nil
}
