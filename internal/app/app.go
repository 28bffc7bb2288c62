package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/linkpulse/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/linkpulse/internal/adapter/geo"
	"github.com/vadimbarashkov/linkpulse/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/linkpulse/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/linkpulse/internal/classifier"
	"github.com/vadimbarashkov/linkpulse/internal/config"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
	"github.com/vadimbarashkov/linkpulse/internal/usecase"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/linkpulse/internal/adapter/delivery/http"
	pg "github.com/vadimbarashkov/linkpulse/pkg/postgres"
)

type linkStore interface {
	Save(ctx context.Context, link *entity.ShortLink) (*entity.ShortLink, error)
	RetrieveByAlias(ctx context.Context, alias string) (*entity.ShortLink, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*entity.ShortLink, error)
	HasVisitor(ctx context.Context, linkID int64, ip string) (bool, error)
	SaveVisit(ctx context.Context, link *entity.ShortLink, visitorIP string) error
}

type targetCache interface {
	Get(ctx context.Context, alias string) (string, bool, error)
	Set(ctx context.Context, alias, target string) error
}

// NewLogger returns the service logger: JSON in prod, concise text otherwise.
func NewLogger(env string, w io.Writer) *httplog.Logger {
	opts := httplog.Options{
		LogLevel: slog.LevelDebug,
		Concise:  true,
		Writer:   w,
	}

	if env == config.EnvProd {
		opts.LogLevel = slog.LevelInfo
		opts.JSON = true
		opts.Concise = false
	}

	return httplog.NewLogger("linkpulse", opts)
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg.Env, os.Stdout)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStore()

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return fmt.Errorf("%s: invalid analytics timezone: %w", op, err)
	}

	var (
		ipLookup      classifier.IPLookup
		countryLookup classifier.CountryLookup
	)
	if cfg.Geo.SelfIPURL != "" {
		ipLookup = geo.NewIPifyClient(cfg.Geo.SelfIPURL, cfg.Geo.Timeout)
	}
	if cfg.Geo.IPAPIURL != "" {
		countryLookup = geo.NewIPAPIClient(cfg.Geo.IPAPIURL, cfg.Geo.Timeout)
	}

	visitClassifier := classifier.New(ipLookup, countryLookup, logger.Logger)
	analyticsUC := usecase.NewAnalyticsUseCase(store, visitClassifier, cfg.Analytics.MaxRetries, loc, logger.Logger)

	tracker := usecase.NewVisitTracker(usecase.TrackerConfig{
		Workers:             cfg.Analytics.Workers,
		QueueSize:           cfg.Analytics.QueueSize,
		ClassifyConcurrency: cfg.Analytics.ClassifyConcurrency,
		ClassifyTimeout:     cfg.Analytics.ClassifyTimeout,
	}, visitClassifier, analyticsUC, logger.Logger)

	cache, closeCache, err := openCache(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeCache()

	linkUC := usecase.NewLinkUseCase(cfg.ShortCodeLength, store, cache, tracker, logger.Logger)

	reportUC := usecase.NewReportUseCase(store)
	auth := delivery.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("jwt secret is not configured, authenticated routes will reject every request")
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(logger, auth, cfg.HTTPServer.AllowedOrigins, linkUC, reportUC),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tracker.Run(ctx)
	})

	g.Go(func() error {
		var err error

		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("storage", cfg.Storage))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

// openCache returns a nil cache when Redis is disabled.
func openCache(ctx context.Context, cfg config.Redis) (targetCache, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	client, err := redis.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return redis.NewTargetCache(client, cfg.TTL), func() { client.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config) (linkStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		return memory.NewLinkRepository(), func() {}, nil
	}

	db, err := pg.New(
		ctx,
		cfg.Postgres.DSN(),
		pg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		pg.WithConnectRetry(cfg.Postgres.ConnectAttempts, time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pg.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres.NewLinkRepository(db), func() { db.Close() }, nil
}
