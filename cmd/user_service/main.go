package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"user_service/internal/auth"
	"user_service/internal/config"
	"user_service/internal/handler"
	"user_service/internal/metrics"
	"user_service/internal/service"
	"user_service/internal/storage"

	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const storageTimeout = 10 * time.Second

func main() {
	//LOAD .env
	_ = godotenv.Load()

	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config file")

	flag.Parse()

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting user service", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))

	//INIT DB
	st, err := setupStorage(cfg, lgr)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}

	//INIT SERVER
	tokens := auth.NewTokenManager(cfg.Token.Secret, cfg.Token.TTL)
	srvc := service.NewService(st, tokens)
	h := handler.NewHandler(srvc, tokens, metrics.New(), lgr)

	router := h.InitRoutes(handler.RouterOptions{
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		GuardedRoutes:  cfg.HTTPServer.GuardedRoutes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	lgr.Info("user service is running", slog.String("addr", srv.Addr))

	if err := srv.ListenAndServe(); err != nil {
		lgr.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// setupStorage opens the configured backend. A failed ping is logged and the
// server keeps starting, requests then fail individually.
func setupStorage(cfg *config.Config, lgr *slog.Logger) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	switch cfg.Storage.Driver {
	case storage.DriverMemory:
		lgr.Warn("using in-memory storage, data is lost on restart")

		return storage.NewMemoryStorage(), nil

	case storage.DriverPostgres:
		st, err := storage.NewPostgresStorage(cfg.Postgres.DbURL)
		if err != nil {
			return nil, err
		}

		if err := st.Migrate(ctx); err != nil {
			lgr.Error("failed to migrate postgres", slog.Any("error", err))
		} else if err := st.Ping(ctx); err != nil {
			lgr.Error("failed to ping postgres", slog.Any("error", err))
		} else {
			lgr.Info("connected to postgres")
		}

		return st, nil

	default:
		if cfg.Storage.Driver != storage.DriverMongo {
			lgr.Warn("unknown storage driver, falling back to mongo", slog.String("driver", cfg.Storage.Driver))
		}

		st, err := storage.NewMongoStorage(ctx, cfg.MongoURI(), cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, err
		}

		if err := st.Ping(ctx); err != nil {
			lgr.Error("failed to ping mongo", slog.Any("error", err))
		} else {
			lgr.Info("Pinged your deployment. You successfully connected to MongoDB!")
		}

		return st, nil
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
