package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpcapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	msgUnauthenticated = "credentials invalid or not provided"
	msgAlreadyExists   = "the username and/or email address is already registered"
	msgNotFound        = "not found"
	msgInternal        = "internal error"
)

// toStatus maps service errors to gRPC statuses with stable messages.
// Validation details describe the caller's own input and are passed through.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var ve *users.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, "validation error")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, msgAlreadyExists)
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, msgUnauthenticated)
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, msgNotFound)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, msgInternal)
}

func (s *GRPCServer) Register(ctx context.Context, req *rpcapi.RegisterRequest) (*rpcapi.RegisterResponse, error) {
	user, err := s.users.Register(ctx, users.Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpcapi.RegisterResponse{ID: user.ID}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpcapi.LoginRequest) (*rpcapi.LoginResponse, error) {
	token, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpcapi.LoginResponse{AccessToken: token}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *rpcapi.MeRequest) (*rpcapi.MeResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, msgUnauthenticated)
	}

	view, err := s.users.Profile(ctx, claims.Subject)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &rpcapi.MeResponse{
		ID:        view.ID,
		FirstName: view.FirstName,
		LastName:  view.LastName,
		Email:     view.Email,
		IsAdmin:   view.IsAdmin,
		CreatedAt: view.CreatedAt,
		UpdatedAt: view.UpdatedAt,
	}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *rpcapi.PingRequest) (*rpcapi.PingResponse, error) {
	return &rpcapi.PingResponse{Status: "OK"}, nil
}
