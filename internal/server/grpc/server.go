package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/rpcapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
	"google.golang.org/grpc"
)

type UserService interface {
	Register(ctx context.Context, reg users.Registration) (*models.User, error)
	Login(ctx context.Context, identifier, secret string) (string, error)
	Profile(ctx context.Context, userID string) (*users.PublicUser, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	rpcapi.UnimplementedAuthServiceServer
	address string
	users   UserService
	tokens  TokenVerifier
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us UserService, tv TokenVerifier) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		tokens:  tv,
	}
}

// newServer builds a grpc.Server with the codec, interceptors and service
// registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		rpcapi.ServerCodec(),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	)
	rpcapi.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run serves on the configured address until ctx is canceled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is canceled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
