package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/arnavt866/Content-Violation-Detection/internal/application/analysis"
	"github.com/arnavt866/Content-Violation-Detection/internal/config"
	domain "github.com/arnavt866/Content-Violation-Detection/internal/domain/analysis"
	mysqlp "github.com/arnavt866/Content-Violation-Detection/internal/infra/db/mysql"
	postgresp "github.com/arnavt866/Content-Violation-Detection/internal/infra/db/postgres"
	"github.com/arnavt866/Content-Violation-Detection/internal/infra/httpserver"
	"github.com/arnavt866/Content-Violation-Detection/internal/infra/storage"
	"github.com/arnavt866/Content-Violation-Detection/internal/middleware"
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
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// init snapshot repository
	repo, checkers, closeFn, err := buildSnapshotRepo(ctx, cfg)
	if err != nil {
		log.Fatalf("snapshot repository init error: %v", err)
	}
	defer closeFn()

	// init store + rehydrate from the last snapshot
	store := appanalysis.NewStore(repo, nil)
	store.PersistFailure = func(err error) {
		middleware.IncrementPersistFailures()
		log.Printf("snapshot save error: %v", err)
	}
	if err := store.Rehydrate(ctx); err != nil {
		if errors.Is(err, domain.ErrSnapshotVersion) {
			log.Printf("discarding stored snapshot: %v", err)
		} else {
			log.Printf("rehydrate error, starting empty: %v", err)
		}
	}

	// init router with middleware chain
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.RateLimitMiddleware(100, 50))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Get("/healthz", middleware.HealthHandler(checkers))
	mux.Mount("/", httpserver.NewRouter(store))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// drain pending snapshot writes, then do a final flush
	if err := store.Close(ctx2); err != nil {
		log.Printf("persistence worker close error: %v", err)
	}
	if err := store.Flush(ctx2); err != nil {
		log.Printf("final snapshot flush error: %v", err)
	}
}

// buildSnapshotRepo wires the configured snapshot backend and its health
// checkers. The returned close function releases backend resources.
func buildSnapshotRepo(ctx context.Context, cfg *config.Config) (domain.SnapshotRepository, map[string]middleware.HealthChecker, func(), error) {
	checkers := make(map[string]middleware.HealthChecker)

	switch cfg.Snapshot.Backend {
	case config.BackendMySQL:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		repo := mysqlp.NewSnapshotRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		checkers["mysql"] = &middleware.DatabaseHealthChecker{DB: db}
		checkers["snapshot"] = &middleware.SnapshotHealthChecker{Repo: repo}
		return repo, checkers, func() { db.Close() }, nil

	case config.BackendPostgres:
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		repo := postgresp.NewSnapshotRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		checkers["postgres"] = &middleware.DatabaseHealthChecker{DB: db}
		checkers["snapshot"] = &middleware.SnapshotHealthChecker{Repo: repo}
		return repo, checkers, func() { db.Close() }, nil

	case config.BackendMinio:
		repo, err := storage.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, nil, nil, err
		}
		checkers["snapshot"] = &middleware.SnapshotHealthChecker{Repo: repo}
		return repo, checkers, func() {}, nil

	case config.BackendMemory:
		repo := storage.NewMemory()
		checkers["snapshot"] = &middleware.SnapshotHealthChecker{Repo: repo}
		return repo, checkers, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown snapshot backend: %q", cfg.Snapshot.Backend)
	}
}
