package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/skinsight/review-console/internal/application"
	appai "github.com/skinsight/review-console/internal/application/ai"
	appauth "github.com/skinsight/review-console/internal/application/auth"
	appreview "github.com/skinsight/review-console/internal/application/review"
	appscans "github.com/skinsight/review-console/internal/application/scans"
	"github.com/skinsight/review-console/internal/config"
	domai "github.com/skinsight/review-console/internal/domain/ai"
	"github.com/skinsight/review-console/internal/domain/analysis"
	"github.com/skinsight/review-console/internal/domain/operator"
	openaiClient "github.com/skinsight/review-console/internal/infra/ai/openai"
	"github.com/skinsight/review-console/internal/infra/db/memory"
	mysqlp "github.com/skinsight/review-console/internal/infra/db/mysql"
	"github.com/skinsight/review-console/internal/infra/db/postgres"
	"github.com/skinsight/review-console/internal/infra/events"
	"github.com/skinsight/review-console/internal/infra/httpserver"
	"github.com/skinsight/review-console/internal/infra/storage"
	"github.com/skinsight/review-console/internal/logger"
	"github.com/skinsight/review-console/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	clock := application.SystemClock{}
	checks := map[string]middleware.HealthChecker{}

	// storage
	var (
		repo      analysis.Repository
		operators operator.Repository
	)
	switch cfg.Database.Driver {
	case "mysql", "postgres":
		var db *sqlx.DB
		var err error
		if cfg.Database.Driver == "mysql" {
			db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
			repo, operators = mysqlp.NewAnalysisRepository(db), mysqlp.NewOperatorRepository(db)
		} else {
			db, err = postgres.Connect(ctx, cfg.PostgresDSN())
			repo, operators = postgres.NewAnalysisRepository(db), postgres.NewOperatorRepository(db)
		}
		if err != nil {
			return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
		}
		defer db.Close()
		checks["database"] = middleware.CheckFunc(db.PingContext)
	case "memory":
		mem, ops, err := memoryStores(cfg)
		if err != nil {
			return err
		}
		if cfg.Database.SeedFile != "" {
			n, err := mem.LoadSeedFile(cfg.Database.SeedFile)
			if err != nil {
				return fmt.Errorf("load seed %s: %w", cfg.Database.SeedFile, err)
			}
			log.Info().Int("records", n).Str("file", cfg.Database.SeedFile).Msg("memory store seeded")
		}
		repo, operators = mem, ops
		log.Warn().Msg("using in-memory storage; data is lost on restart")
	}

	// scan images
	var images interface {
		analysis.ImageStore
		Ping(context.Context) error
	}
	if cfg.Minio.Endpoint != "" {
		store, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		images = store
	} else {
		images = storage.NewDir(cfg.Server.UploadsDir)
	}
	checks["storage"] = middleware.CheckFunc(images.Ping)

	// AI draft generator
	var client domai.DraftGenerator = appai.Unavailable{}
	if cfg.OpenAI.APIKey != "" {
		oc := openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		oc.Timeout = cfg.OpenAI.Timeout
		client = oc
	} else {
		log.Warn().Msg("openai.apiKey not set; drafts start empty")
	}
	generator := appai.NewService(client, cfg.OpenAI.CacheTTL)

	// verified events
	var publisher appreview.Publisher = events.Nop{}
	if cfg.Redis.URL != "" {
		pub, rdb, err := events.NewRedisPublisher(ctx, cfg.Redis.URL, cfg.Redis.Channel, log)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher = pub
		checks["redis"] = middleware.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	scans := &appscans.Service{Repo: repo, Images: images, Clock: clock, Log: log}
	review := appreview.NewService(appreview.Options{
		Records:           scans,
		Repo:              repo,
		Generator:         generator,
		Events:            publisher,
		Observer:          metrics,
		Clock:             clock,
		Log:               log,
		ModelVersion:      cfg.OpenAI.Model,
		GenerationTimeout: cfg.Review.GenerationTimeout,
		SessionTTL:        cfg.Review.SessionTTL,
	})
	scans.Reviews = review
	auth := &appauth.Service{
		Repo:   operators,
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Clock:  clock,
	}

	go review.Run(ctx, time.Minute)
	go limiter.Run(ctx)

	handler := httpserver.NewRouter(httpserver.Deps{
		Scans:          scans,
		Review:         review,
		Generator:      generator,
		Auth:           auth,
		Images:         images,
		Metrics:        metrics,
		Limiter:        limiter,
		Health:         checks,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // GET review ?wait= holds up to 30s
		IdleTimeout:  60 * time.Second,
	}

	// run server
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Int("open_reviews", review.Active()).Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	return nil
}

// memoryStores builds the in-memory driver, seeding the admin account from config.
func memoryStores(cfg *config.Config) (*memory.AnalysisRepository, *memory.OperatorRepository, error) {
	var ops []operator.Operator
	if cfg.Auth.AdminEmail != "" {
		hash, err := appauth.HashPassword(cfg.Auth.AdminPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("hash admin password: %w", err)
		}
		ops = append(ops, operator.Operator{
			ID:           1,
			Name:         "Admin",
			Email:        cfg.Auth.AdminEmail,
			PasswordHash: hash,
			CreatedAt:    time.Now(),
		})
	}
	return memory.NewAnalysisRepository(), memory.NewOperatorRepository(ops...), nil
}
