package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/rpcapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth/authtest"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeUsers struct {
	registerErr error
	loginErr    error
	profileErr  error

	lastReg users.Registration
}

func (f *fakeUsers) Register(_ context.Context, reg users.Registration) (*models.User, error) {
	f.lastReg = reg
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-1"}, nil
}

func (f *fakeUsers) Login(_ context.Context, identifier, _ string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "token-" + identifier, nil
}

func (f *fakeUsers) Profile(_ context.Context, userID string) (*users.PublicUser, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &users.PublicUser{ID: userID, FirstName: "Ann", Email: "ann@example.com"}, nil
}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	iss, err := auth.NewTokenIssuer(authtest.KeyPEM(), "RS256", time.Hour)
	require.NoError(t, err)
	return iss
}

// dial starts s on an in-memory listener and returns a client.
func dial(t *testing.T, s *GRPCServer) rpcapi.AuthServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		rpcapi.ClientCodec(),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return rpcapi.NewAuthServiceClient(conn)
}

func TestRegisterAndLogin(t *testing.T) {
	fu := &fakeUsers{}
	client := dial(t, NewGRPCServer("", logging.Nop(), fu, newIssuer(t)))
	ctx := context.Background()

	reg, err := client.Register(ctx, &rpcapi.RegisterRequest{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "longenough1"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", reg.ID)
	assert.Equal(t, "ann@example.com", fu.lastReg.Email)
	assert.False(t, fu.lastReg.IsAdmin)

	login, err := client.Login(ctx, &rpcapi.LoginRequest{Username: "ann@example.com", Password: "longenough1"})
	require.NoError(t, err)
	assert.Equal(t, "token-ann@example.com", login.AccessToken)

	ping, err := client.Ping(ctx, &rpcapi.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		fu   *fakeUsers
		want codes.Code
	}{
		{"validation", &fakeUsers{registerErr: &users.ValidationError{Fields: map[string]string{"password": "too short"}}}, codes.InvalidArgument},
		{"duplicate", &fakeUsers{registerErr: common.ErrorAlreadyExists}, codes.AlreadyExists},
		{"crypto", &fakeUsers{registerErr: common.ErrorCrypto}, codes.Internal},
		{"store", &fakeUsers{registerErr: errors.New("db down")}, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := dial(t, NewGRPCServer("", logging.Nop(), tt.fu, newIssuer(t)))
			_, err := client.Register(context.Background(), &rpcapi.RegisterRequest{})
			assert.Equal(t, tt.want, status.Code(err))
			if tt.want == codes.Internal {
				assert.Equal(t, msgInternal, status.Convert(err).Message())
			}
		})
	}
}

func TestLogin_Unauthenticated(t *testing.T) {
	client := dial(t, NewGRPCServer("", logging.Nop(), &fakeUsers{loginErr: common.ErrorUnauthorized}, newIssuer(t)))

	_, err := client.Login(context.Background(), &rpcapi.LoginRequest{Username: "x", Password: "y"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, msgUnauthenticated, status.Convert(err).Message())
}

func TestMe_WithToken(t *testing.T) {
	iss := newIssuer(t)
	client := dial(t, NewGRPCServer("", logging.Nop(), &fakeUsers{}, iss))

	token, err := iss.Issue(&models.User{ID: "u-42"})
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
	me, err := client.Me(ctx, &rpcapi.MeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u-42", me.ID)
	assert.Equal(t, "ann@example.com", me.Email)
}

func TestMe_RejectsMissingOrBadToken(t *testing.T) {
	client := dial(t, NewGRPCServer("", logging.Nop(), &fakeUsers{}, newIssuer(t)))

	_, err := client.Me(context.Background(), &rpcapi.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "garbage")
	_, err = client.Me(ctx, &rpcapi.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestMe_UnknownSubject(t *testing.T) {
	iss := newIssuer(t)
	client := dial(t, NewGRPCServer("", logging.Nop(), &fakeUsers{profileErr: common.ErrorNotFound}, iss))

	token, err := iss.Issue(&models.User{ID: "gone"})
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
	_, err = client.Me(ctx, &rpcapi.MeRequest{})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), &fakeUsers{}, newIssuer(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeUsers{}, newIssuer(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
