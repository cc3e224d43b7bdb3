package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cinesync/cinesync/internal/ai"
	"github.com/cinesync/cinesync/internal/database"
	"github.com/cinesync/cinesync/internal/geoip"
	"github.com/cinesync/cinesync/internal/metrics"
	"github.com/cinesync/cinesync/internal/party"
	"github.com/cinesync/cinesync/internal/server"
	"github.com/cinesync/cinesync/internal/storage"
	"github.com/cinesync/cinesync/internal/syncchannel"
)

func main() {
	port := getEnv("PORT", "8080")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var syncStore syncchannel.Store
	switch mode := getEnv("SYNC_STORE", "postgres"); mode {
	case "postgres":
		pg := syncchannel.NewPostgresStore(db.Pool)
		go func() {
			if err := pg.Listen(bgCtx, db.Pool); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("sync listener stopped: %v", err)
			}
		}()
		syncStore = pg
	case "memory":
		syncStore = syncchannel.NewMemoryStore()
	default:
		log.Fatalf("unknown SYNC_STORE %q (want postgres or memory)", mode)
	}
	log.Printf("sync store: %s", getEnv("SYNC_STORE", "postgres"))

	baseURL := getEnv("BASE_URL", "http://localhost:8080")
	allowedOrigins := getEnvList("CORS_ORIGINS")

	var media party.MediaStore
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       endpoint,
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getEnv("S3_BUCKET", "cinesync"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 4*1024*1024*1024),
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		if len(allowedOrigins) > 0 {
			if err := store.SetCORS(ctx, allowedOrigins); err != nil {
				log.Printf("storage CORS update failed: %v", err)
			}
		}
		media = store
		log.Println("storage bucket ready, media sharing enabled")
	} else {
		log.Println("S3_ENDPOINT not set, media sharing disabled")
	}

	geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	if err != nil {
		log.Fatalf("geoip initialization failed: %v", err)
	}
	defer func() { _ = geo.Close() }()

	var m *metrics.Metrics
	if getEnvBool("METRICS_ENABLED", false) {
		m = metrics.New()
		log.Println("metrics enabled at /metrics")
	}

	var aiClient *ai.Client
	if getEnvBool("AI_ENABLED", false) {
		model := getEnv("AI_MODEL", "mistral-small-latest")
		aiClient = ai.NewClient(
			os.Getenv("AI_BASE_URL"),
			os.Getenv("AI_API_KEY"),
			model,
			os.Getenv("AI_IMAGE_MODEL"),
		)
		log.Printf("AI features enabled (model: %s)", model)
	}

	var webFS fs.FS
	if dir := os.Getenv("WEB_DIR"); dir != "" {
		webFS = os.DirFS(dir)
		log.Printf("serving frontend from %s", dir)
	}

	srv := server.New(server.Config{
		DB:                    db.Pool,
		Pinger:                db,
		Storage:               media,
		SyncStore:             syncStore,
		GeoIP:                 geo,
		Metrics:               m,
		AI:                    aiClient,
		WebFS:                 webFS,
		JWTSecret:             jwtSecret,
		BaseURL:               baseURL,
		S3PublicEndpoint:      os.Getenv("S3_PUBLIC_ENDPOINT"),
		AllowedOrigins:        allowedOrigins,
		AllowedFrameAncestors: os.Getenv("ALLOWED_FRAME_ANCESTORS"),
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("cinesync listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
