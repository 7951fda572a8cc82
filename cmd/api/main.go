package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blackout/api/internal/app"
	"blackout/api/internal/archive"
	"blackout/api/internal/config"
	"blackout/api/internal/export"
	"blackout/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var (
		sessions  store.SessionStore
		archivePG *archive.PG
	)
	switch cfg.StoreBackend {
	case "redis":
		redisStore, err := store.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		log.Printf("Using Redis session store")
	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		sessions = store.NewPostgresStore(db)
		archivePG = archive.NewPG(db)
		log.Printf("Using PostgreSQL session store")
	case "memory":
		sessions = store.NewMemoryStore()
		log.Printf("Using in-memory session store (single node, no persistence)")
	default:
		log.Fatalf("unknown store backend %q", cfg.StoreBackend)
	}

	var meiliClient *archive.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = archive.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}

	var blobs *archive.BlobStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		var err error
		blobs, err = archive.NewBlobStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	}

	archiveService := archive.NewService(archivePG, meiliClient, blobs)
	exportService := export.NewService(sessions)

	service := app.NewService(cfg, sessions, archiveService, exportService)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Blackout API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
