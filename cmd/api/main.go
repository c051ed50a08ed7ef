package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-nlmap/internal/config"
	"backend-nlmap/internal/db"
	"backend-nlmap/internal/logging"
	"backend-nlmap/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(level string) (*zap.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectMongo    func(config.Config) (*mongo.Client, error)
	migrate         func(context.Context, db.Querier) error
	notify          func(chan<- os.Signal, ...os.Signal)
	exit            func(code int)
	run             func(context.Context, config.Config, server.Backends, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logging.New,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectMongo:    db.ConnectMongo,
		migrate:         db.Migrate,
		notify:          signal.Notify,
		exit:            os.Exit,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	logger, err := deps.newLogger(cfg.LogLevel)
	if err != nil {
		logger = zap.NewExample()
		logger.Warn("logger config failed, using example logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	backends := server.Backends{Logger: logger}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		// Markers cannot be served at all without their document store.
		if cfg.DocumentBackend != "mongo" {
			logger.Error("postgres connection failed, exiting", zap.Error(err))
			deps.exit(1)
			return
		}
		logger.Error("postgres connection failed", zap.Error(err))
	} else {
		backends.Postgres = pg
		if err := deps.migrate(context.Background(), pg); err != nil {
			logger.Error("migrations failed", zap.Error(err))
		}
	}

	backends.Redis = deps.connectRedis(cfg)

	if cfg.DocumentBackend == "mongo" {
		mc, err := deps.connectMongo(cfg)
		if err != nil {
			logger.Error("mongo connection failed", zap.Error(err))
		} else {
			backends.Mongo = mc
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, backends, signals, nil); err != nil {
		logger.Error("server exited with error", zap.Error(err))
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, b server.Backends, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, b)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Close()
	if b.Postgres != nil {
		b.Postgres.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Mongo != nil {
		_ = b.Mongo.Disconnect(shutdownCtx)
	}
	return nil
}
