// Package server wires configuration, storage, crypto and transports into a
// running authkeeper server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/users"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
	grpc   *gs.GRPCServer
}

// NewApp validates key material, opens and migrates the store and builds both
// transports. Any crypto misconfiguration is returned here, before anything
// starts serving.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.NewLogger(c.LogLevel, logOut)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cipher, err := cryptox.NewFieldCipher(c.CryptoAlgorithm, []byte(c.CryptoSecurityKey), []byte(c.CryptoInitVector))
	if err != nil {
		return nil, fmt.Errorf("field cipher: %w", err)
	}
	hasher, err := cryptox.NewHasher(c.PasswordHasher, c.HashCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(c.AccessTokenSecret, c.AccessTokenAlgorithm, c.AccessTokenLife)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	rm, err := repomanager.New(c.StoreDriver)
	if err != nil {
		return nil, err
	}
	db, err := openDB(ctx, c.StoreDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	mx := metrics.New()
	svc := services.NewUserService(db, rm, users.NewRecords(cipher, hasher), hasher, issuer, mx, logger)

	logger.Info(ctx, "configuration loaded", "config", c)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		http:   httpapi.NewServer(svc, issuer, mx, logger, c.IsDevelopment(),
			httpapi.WithLoginLimit(c.LoginRateLimit, c.LoginRateWindow)),
		grpc:   gs.NewGRPCServer(c.GRPCAddr, logger, svc, issuer),
	}, nil
}

func openDB(ctx context.Context, storeDriver, dsn string) (*sql.DB, error) {
	name, err := repomanager.SQLDriverName(storeDriver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	if storeDriver == repomanager.DriverSQLite {
		// One writer at a time; avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves HTTP and gRPC until ctx is canceled, a signal arrives or one of
// the servers fails. The database is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	ln, err := net.Listen("tcp", app.config.HTTPAddr)
	if err != nil {
		_ = app.db.Close()
		return fmt.Errorf("http listen: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancelFunc()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err)
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.http.Serve(ln); err != nil && ctx.Err() == nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			fail(err)
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.http.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn(ctx, "http shutdown", "error", err)
		}
		_ = ln.Close()
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "Stopped")

	if err := app.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
