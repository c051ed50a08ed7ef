package server

import (
	"errors"
	"time"

	"backend-nlmap/internal/auth"
	"backend-nlmap/internal/config"
	"backend-nlmap/internal/db"
	"backend-nlmap/internal/geocode"
	"backend-nlmap/internal/logging"
	"backend-nlmap/internal/mapview"
	"backend-nlmap/internal/marker"
	"backend-nlmap/internal/storage"
	"backend-nlmap/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Backends are the connections the server runs on. Any of them may be nil.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Mongo    *mongo.Client
	Logger   *zap.Logger
}

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	Stream  *stream.Hub
	Markers *marker.Service
	Logger  *zap.Logger

	backends Backends
}

func NewServer(cfg config.Config, b Backends) *Server {
	logger := logging.OrNop(b.Logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    64 * 1024 * 1024,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: logging.PanicHandler(logger),
	}))
	app.Use(logging.RequestLogger(logger))

	s := &Server{
		App:      app,
		Cfg:      cfg,
		Stream:   stream.NewHub(b.Redis, logger),
		Logger:   logger,
		backends: b,
	}

	registerRoutes(s)
	return s
}

// errorHandler renders every failure as a single message.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Static("/files", s.Cfg.StorageDir)

	var pg db.Querier
	if s.backends.Postgres != nil {
		pg = s.backends.Postgres
	}
	rdb := s.backends.Redis

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	optionalJWT := auth.OptionalJWTMiddleware(s.Cfg.JWTSecret)

	authSvc := auth.NewService(s.Cfg.JWTSecret, pg)
	federated := auth.NewFederated(authSvc,
		auth.GoogleConfig(s.Cfg.GoogleClientID, s.Cfg.GoogleClientSecret, s.Cfg.GoogleRedirectURL),
		rdb, "", s.Logger)
	authGroup := s.App.Group("/auth")
	auth.RegisterRoutes(authGroup, authSvc)
	auth.RegisterFederatedRoutes(authGroup, federated)

	storageSvc := storage.NewService(pg, s.Cfg.StorageDir, s.Cfg.PublicBaseURL, s.Logger)
	storage.RegisterRoutes(s.App.Group("/storage"), storageSvc, jwtMiddleware)

	s.Markers = marker.NewService(markerStore(s.Cfg, s.backends, pg, s.Logger), storageSvc, s.Stream, s.Logger)
	marker.RegisterRoutes(s.App.Group("/markers"), s.Markers, optionalJWT)

	geocoder := geocode.NewClient(s.Cfg.GeocoderURL, s.Cfg.GeocoderUserAgent,
		geocode.WithCache(rdb),
		geocode.WithLogger(s.Logger))
	geocode.RegisterRoutes(s.App.Group("/geocode"), geocoder)

	mapSvc := mapview.NewService(mapview.NewSessionStore(rdb), geocoder, s.Markers, s.Logger)
	mapview.RegisterRoutes(s.App.Group("/map"), mapSvc)

	streamGroup := s.App.Group("/stream")
	stream.RegisterRoutes(streamGroup, s.Stream)
	geocode.RegisterStreamRoutes(streamGroup, geocoder, time.Duration(s.Cfg.SearchDebounceMS)*time.Millisecond)
}

func markerStore(cfg config.Config, b Backends, pg db.Querier, logger *zap.Logger) marker.Store {
	if cfg.DocumentBackend == "mongo" {
		if b.Mongo != nil {
			coll := b.Mongo.Database(cfg.MongoDatabase).Collection(marker.CollectionName)
			return marker.NewMongoStore(coll)
		}
		logger.Warn("mongo backend selected but not connected, using postgres")
	}
	return marker.NewPostgresStore(pg)
}

// Close releases the hub's Redis subscription.
func (s *Server) Close() error {
	return s.Stream.Close()
}
