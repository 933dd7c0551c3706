package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"

	"github.com/panyam/jsmlc/compiler"
)

// DefaultAddress is used when neither --addr nor JSMLC_GRPC_ADDR is given.
const DefaultAddress = "localhost:9090"

type Server struct {
	Address  string
	Defaults compiler.Options
}

// NewGRPCServer builds a server with the compiler service registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	server := grpc.NewServer(opts...)
	RegisterCompilerServiceServer(server, NewCompilerService(s.Defaults))
	return server
}

// ListenAndServe listens on Address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Address)
	if err != nil {
		slog.Error("error in listening on port", "port", s.Address, "err", err)
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	server := s.NewGRPCServer()
	slog.Info("Starting grpc endpoint", "addr", l.Addr().String())

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("Shutting down gRPC server...")
		server.GracefulStop()
		slog.Info("gRPC server stopped.")
	}()

	if err := server.Serve(l); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc server failed to serve: %w", err)
	}
	<-stopped
	return nil
}
