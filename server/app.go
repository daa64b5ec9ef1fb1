// Package server wires the gallery application together: database, blob
// storage, auth, HTTP routes, and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-gallery/auth"
	"github.com/goliatone/go-gallery/config"
	"github.com/goliatone/go-gallery/images"
	"github.com/goliatone/go-gallery/storage"
)

type App struct {
	config *config.Config
	logger *glog.BaseLogger
	debug  bool

	db    *bun.DB
	blobs storage.BlobStore

	repo   auth.RepositoryManager
	auther auth.Authenticator
	imgSvc *images.Service

	router *fiber.App
}

type Option func(*App)

// WithLogger overrides the default logger
func WithLogger(lgr *glog.BaseLogger) Option {
	return func(a *App) {
		if lgr != nil {
			a.logger = lgr
		}
	}
}

// WithDB injects an already-open database, used by tests
func WithDB(db *bun.DB) Option {
	return func(a *App) {
		a.db = db
	}
}

// WithBlobStore injects the blob backend, used by tests
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(a *App) {
		a.blobs = blobs
	}
}

func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		debug:  cfg.Server.Debug,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("gallery"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}

	if a.db == nil {
		db, err := openDatabase(cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	if err := createTables(ctx, a.db); err != nil {
		return nil, err
	}

	if a.blobs == nil {
		blobs, err := storage.NewS3Store(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		a.blobs = blobs
	}

	a.repo = auth.NewRepositoryManager(a.db)

	provider := auth.NewUserProvider(a.repo.Users())
	a.auther = auth.NewAuthenticator(provider, cfg.Auth).
		WithLogger(a.GetLogger("auth"))

	a.imgSvc = images.NewService(
		images.NewImagesRepository(a.db),
		a.blobs,
		images.WithServiceLogger(a.GetLogger("images")),
	)

	bodyLimit := a.config.Server.BodyLimit
	if bodyLimit < images.MaxUploadSize {
		bodyLimit = config.DefaultBodyLimit
	}

	a.router = fiber.New(fiber.Config{
		AppName:      "go-gallery",
		BodyLimit:    bodyLimit,
		ErrorHandler: a.ErrorHandler,
	})

	a.registerRoutes()

	return a, nil
}

// GetLogger returns a named child logger
func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

// Router exposes the fiber app, used by tests
func (a *App) Router() *fiber.App {
	return a.router
}

// DB exposes the database handle
func (a *App) DB() *bun.DB {
	return a.db
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.initSignalHandler(cancel)

	lgr := a.GetLogger("server")
	addr := net.JoinHostPort(a.config.Server.Host, a.config.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("listening", "addr", addr)
		errCh <- a.router.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "server stopped unexpectedly")
		}
		return nil
	case <-ctx.Done():
	}

	lgr.Info("shutting down", "timeout", a.config.Server.ShutdownTimeout)

	shutdownCtx, done := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer done()

	if err := a.router.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "server shutdown failed")
	}

	if err := a.db.Close(); err != nil {
		lgr.Warn("database close", "error", err)
	}

	return nil
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func createTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*auth.User)(nil),
		(*images.Image)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create table")
		}
	}

	return nil
}
