// Package cli implements authctl, a small command-line client for the
// authkeeper gRPC service.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/rpcapi"
	"google.golang.org/grpc/status"
)

// TokenEnv names the variable `me` reads the access token from.
const TokenEnv = "AUTHKEEPER_TOKEN"

// valueFlags are the global flags that take a value.
var valueFlags = []string{"-a", "-w", "-c", "-config"}

type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, req *rpcapi.RegisterRequest) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context) (*rpcapi.MeResponse, error)
	SetAccessToken(token string)
	Close() error
}

type App struct {
	cfg    *config.Config
	client Client
	in     *bufio.Reader
	out    io.Writer
	getenv func(string) string
}

func NewApp(cfg *config.Config) (*App, error) {
	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, c, os.Stdin, os.Stdout, os.Getenv), nil
}

func newApp(cfg *config.Config, c Client, in io.Reader, out io.Writer, getenv func(string) string) *App {
	return &App{cfg: cfg, client: c, in: bufio.NewReader(in), out: out, getenv: getenv}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "usage: authctl [-a addr] [-w seconds] [-c config.json] <register|login|me|ping> [token]")
}

// Run executes the subcommand found in args and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer a.client.Close()

	cmd, rest := flagx.Subcommand(args, valueFlags)

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	var err error
	switch cmd {
	case "register":
		err = a.register(ctx)
	case "login":
		err = a.login(ctx)
	case "me":
		err = a.me(ctx, rest)
	case "ping":
		err = a.client.Ping(ctx)
		if err == nil {
			fmt.Fprintln(a.out, "OK")
		}
	default:
		a.usage()
		return 2
	}

	if err != nil {
		fmt.Fprintln(a.out, "error:", describe(err))
		return 1
	}
	return 0
}

// describe prefers the server's status message over the transport wrapping.
func describe(err error) string {
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

func (a *App) register(ctx context.Context) error {
	first, err := GetSimpleText(a.in, "First name", a.out)
	if err != nil {
		return err
	}
	last, err := GetSimpleText(a.in, "Last name", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}

	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		return errors.New("passwords do not match")
	}

	id, err := a.client.Register(ctx, &rpcapi.RegisterRequest{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Password:  string(pw),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Registered, id="+id)
	return nil
}

func (a *App) login(ctx context.Context) error {
	email, err := GetSimpleText(a.in, "Email", a.out)
	if err != nil {
		return err
	}
	pw, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	token, err := a.client.Login(ctx, email, string(pw))
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, token)
	return nil
}

func (a *App) me(ctx context.Context, rest []string) error {
	token := a.getenv(TokenEnv)
	if len(rest) > 0 {
		token = rest[0]
	}
	if token == "" {
		return fmt.Errorf("no access token: pass it as an argument or set %s", TokenEnv)
	}
	a.client.SetAccessToken(token)

	me, err := a.client.Me(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(me)
}
