// Package app initializes and runs the service. It wires the
// configuration, logger, storage and router together and handles
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patric-chuzhbe/usersvc/internal/config"
	"github.com/patric-chuzhbe/usersvc/internal/db/memorystorage"
	"github.com/patric-chuzhbe/usersvc/internal/db/postgresdb"
	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/models"
	"github.com/patric-chuzhbe/usersvc/internal/router"
)

type storage interface {
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)
	GetUser(ctx context.Context, userID int) (*models.User, bool, error)
	CreateUser(ctx context.Context, name, surname, password string) (*models.User, error)
	UpdateUser(ctx context.Context, userID int, patch models.UserPatch) (*models.User, bool, error)
	DeleteUser(ctx context.Context, userID int) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// StartupHook is an initialization function executed before the server
// starts accepting requests. Reserved for future work such as warmup;
// no hooks are registered by default.
type StartupHook func(ctx context.Context) error

// App encapsulates the configuration, storage backend and HTTP handler
// of the service.
type App struct {
	cfg          *config.Config
	db           storage
	httpHandler  http.Handler
	startupHooks []StartupHook
}

// InitOption configures App construction.
type InitOption func(*initOptions)

type initOptions struct {
	startupHooks []StartupHook
}

// WithStartupHook registers a hook to run before the server starts.
func WithStartupHook(hook StartupHook) InitOption {
	return func(options *initOptions) {
		options.startupHooks = append(options.startupHooks, hook)
	}
}

// New initializes a new App by loading configuration, initializing the
// logger, opening the storage and building the router.
func New(optionsProto ...InitOption) (*App, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	var err error
	app := &App{
		startupHooks: options.startupHooks,
	}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = newStorage(app.cfg)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(app.db)

	return app, nil
}

// Run executes the startup hooks and starts the HTTP server with graceful
// shutdown support. It blocks until the server stops or a termination
// signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, hook := range a.startupHooks {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("startup hook: %w", err)
		}
	}

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func newStorage(cfg *config.Config) (storage, error) {
	if cfg.InMemoryStorage {
		return memorystorage.New()
	}

	return postgresdb.New(
		context.Background(),
		cfg.DatabaseDSN(),
		cfg.DBConnectionTimeout,
		cfg.MigrationsDir,
		postgresdb.WithPoolSize(cfg.DBPoolSize),
		postgresdb.WithMaxOverflow(cfg.DBMaxOverflow),
	)
}
