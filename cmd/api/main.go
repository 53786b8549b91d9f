package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lexdraft/api/db"
	"lexdraft/api/internal/app"
	"lexdraft/api/internal/blob"
	"lexdraft/api/internal/config"
	"lexdraft/api/internal/email"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/identity"
	"lexdraft/api/internal/llm"
	"lexdraft/api/internal/logging"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/search"
	"lexdraft/api/internal/session"
	"lexdraft/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flush, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer flush()
	logger := zap.S()
	ctx := context.Background()

	database, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("database connection failed", "error", err)
	}
	defer database.Close()

	if err := store.ApplyMigrations(cfg.DatabaseURL, db.MigrationsFS); err != nil {
		logger.Fatalw("migrations failed", "error", err)
	}
	dataStore := store.NewPostgresStore(database)

	generator, closeLLM, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		logger.Fatalw("llm client failed", "provider", cfg.LLM.Provider, "error", err)
	}
	defer closeLLM()

	var locks session.Locker = session.NewMemoryLocker()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Infow("using redis for session locks")
		redisLocker, err := session.NewRedisLocker(cfg.RedisURL, sessionLockTTL(cfg.LLM))
		if err != nil {
			logger.Fatalw("redis connection failed", "error", err)
		}
		defer redisLocker.Close()
		locks = redisLocker
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("document storage failed", "error", err)
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		logger.Fatalw("failed to create revisions dir", "dir", cfg.RevisionsDir, "error", err)
	}

	pgfts := search.NewPgFTS(database)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(context.Background())
	}

	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mail.IsConfigured() {
		logger.Infow("smtp not configured, verification emails disabled")
	}

	service := app.New(cfg, app.Deps{
		Store:     dataStore,
		LLM:       generator,
		Locks:     locks,
		Revisions: revisions.New(cfg.RevisionsDir),
		Blobs:     blobs,
		Exporter:  export.NewService(),
		Search:    searchService,
		Mailer:    mail,
		Identity:  identity.NewVerifier(identity.DefaultEndpoints(), nil),
	})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation can take the full LLM budget on every retry.
		WriteTimeout: cfg.LLM.Timeout*time.Duration(cfg.LLM.MaxRetries+1) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infow("LexDraft API listening", "addr", cfg.Addr, "llm_provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("shutdown error", "error", err)
	}
}

// sessionLockTTL covers a generation that uses every attempt and backoff. The locker also
// renews the hold, so this only bounds how long a crashed replica can block a session.
func sessionLockTTL(cfg config.LLMConfig) time.Duration {
	policy := llm.DefaultPolicy()
	attempts := time.Duration(cfg.MaxRetries + 1)
	return cfg.Timeout*attempts + policy.MaxBackoff*time.Duration(cfg.MaxRetries) + 30*time.Second
}

func newGenerator(ctx context.Context, cfg config.LLMConfig) (llm.Generator, func(), error) {
	policy := llm.DefaultPolicy()
	policy.Timeout = cfg.Timeout
	policy.MaxRetries = cfg.MaxRetries

	switch cfg.Provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGemini(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, nil, err
		}
		return llm.WithRetry(gemini, policy), func() { _ = gemini.Close() }, nil
	default:
		return llm.WithRetry(llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, nil), policy), func() {}, nil
	}
}

// newBlobStore prefers MinIO when an endpoint is set and falls back to the documents directory.
func newBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		minioStore, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return minioStore, nil
	}
	localStore, err := blob.NewLocalStore(cfg.DocumentsDir)
	if err != nil {
		return nil, err
	}
	return localStore, nil
}
