// Package api exposes the decision engine over gRPC.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"tin/internal/config"
	"tin/internal/engine"
)

// Server hosts the Decider service on a gRPC listener.
type Server struct {
	grpcAddr string
	grpc     *grpc.Server
	log      *slog.Logger
}

// NewServer creates a Server configured from cfg and backed by eng.
func NewServer(cfg *config.Config, eng *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	apiLog := log.With("component", "api")

	gs := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(apiLog)))
	NewDeciderService(eng, log).Register(gs)

	return &Server{
		grpcAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)),
		grpc:     gs,
		log:      apiLog,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.grpcAddr
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then stops gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("grpc server listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight calls.
func (s *Server) Shutdown() {
	s.log.Info("grpc server shutting down")
	s.grpc.GracefulStop()
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
		return resp, err
	}
}
