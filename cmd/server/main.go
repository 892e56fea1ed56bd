package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"Anchor/internal/api/middleware"
	"Anchor/internal/api/routes"
	"Anchor/internal/atproto/pds"
	"Anchor/internal/core/auth"
	"Anchor/internal/core/checkin"
	"Anchor/internal/core/crosspost"
	"Anchor/internal/credstore"
	postgresRepo "Anchor/internal/db/postgres"
)

func main() {
	// PDS configuration
	pdsHost := os.Getenv("PDS_HOST")
	if pdsHost == "" {
		pdsHost = "https://bsky.social"
	}

	cfg := auth.Config{
		PDSHost:          pdsHost,
		UserAgent:        "anchor-gateway/1.0",
		RefreshThreshold: envDuration("REFRESH_THRESHOLD", 1*time.Hour),
		MaxRetryAttempts: 3,
		RetryBaseDelay:   1 * time.Second,
		MaxRetryDelay:    8 * time.Second,
		RequestTimeout:   envDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	sealSecret := loadSealSecret()

	// Credential store selection: Postgres when DATABASE_URL is set,
	// otherwise a sealed file next to the binary.
	store, cleanup := buildCredentialStore(sealSecret)
	defer cleanup()

	sessionClient := auth.NewXRPCSessionClient(cfg)
	manager := auth.NewManager(store, sessionClient, cfg)

	ctx := context.Background()
	if err := manager.Resume(ctx); err != nil {
		log.Printf("Could not resume persisted session: %v", err)
	}
	go manager.KeepFresh(ctx)

	recordClient, err := pds.NewClient(pdsHost, cfg.UserAgent, manager, nil)
	if err != nil {
		log.Fatal("Failed to create PDS client:", err)
	}

	crosspostSvc := crosspost.NewService(recordClient, nil)
	checkinSvc := checkin.NewService(recordClient, checkin.WithCrossposter(crosspostSvc))

	sealer, err := auth.NewSealer(sealSecret)
	if err != nil {
		log.Fatal("Failed to create sealer:", err)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	sessionAuth := middleware.NewSessionAuth(sealer, manager)
	routes.RegisterSessionRoutes(r, manager, sealer)
	routes.RegisterCheckinRoutes(r, checkinSvc, sessionAuth)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	port := os.Getenv("ANCHOR_PORT")
	if port == "" {
		port = "8080"
	}

	fmt.Printf("Anchor gateway starting on port %s\n", port)
	fmt.Printf("PDS host: %s\n", pdsHost)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

// buildCredentialStore picks the backend from the environment and returns
// it with a cleanup function for any held resources.
func buildCredentialStore(sealSecret []byte) (auth.CredentialStore, func()) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatal("Failed to ping database:", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			log.Fatal("Failed to set goose dialect:", err)
		}
		if err := goose.Up(db, "internal/db/migrations"); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		log.Println("Using Postgres credential store")
		return postgresRepo.NewCredentialRepository(db), func() { db.Close() }
	}

	path := os.Getenv("ANCHOR_CREDENTIALS_FILE")
	if path == "" {
		path = "anchor-credentials.sealed"
	}
	store, err := credstore.NewSealedFileStore(path, sealSecret)
	if err != nil {
		log.Fatal("Failed to create sealed file store:", err)
	}
	log.Printf("Using sealed file credential store at %s", path)
	return store, func() {}
}

// loadSealSecret reads the 32-byte base64 seal secret from the environment.
// A fixed dev secret keeps local development working; never deploy with it.
func loadSealSecret() []byte {
	encoded := os.Getenv("ANCHOR_SEAL_SECRET")
	if encoded == "" {
		log.Println("WARNING: ANCHOR_SEAL_SECRET not set, using dev secret")
		return []byte("anchor-dev-seal-secret-32-bytes!")
	}
	secret, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		log.Fatal("ANCHOR_SEAL_SECRET is not valid base64:", err)
	}
	if len(secret) != 32 {
		log.Fatalf("ANCHOR_SEAL_SECRET must decode to 32 bytes, got %d", len(secret))
	}
	return secret
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return d
}
