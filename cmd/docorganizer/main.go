package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/config"
	"github.com/obig20/docorganizer/internal/db"
	dbRedis "github.com/obig20/docorganizer/internal/db/redis"
	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/index/keyword"
	"github.com/obig20/docorganizer/internal/index/vector"
	logpkg "github.com/obig20/docorganizer/internal/logger"
	"github.com/obig20/docorganizer/internal/metrics"
	"github.com/obig20/docorganizer/internal/repository/embcache"
	"github.com/obig20/docorganizer/internal/store"
	chiTransport "github.com/obig20/docorganizer/internal/transport/chi"
	openaiEmb "github.com/obig20/docorganizer/internal/transport/openai"
	documentuc "github.com/obig20/docorganizer/internal/usecase/document"
	indexeruc "github.com/obig20/docorganizer/internal/usecase/indexer"
	searchuc "github.com/obig20/docorganizer/internal/usecase/search"
	"github.com/obig20/docorganizer/internal/version"
)

func main() {
	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docorganizer API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.Bool("semantic_enabled", cfg.Embedding.Enabled()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterHTTPMetrics()

	// System of record
	docStore, err := store.Open(cfg.Storage.DocumentsDB)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() { _ = docStore.Close() }()

	// Keyword index: falls back to a null backend when sqlite cannot open.
	kwIndex := keyword.Open(cfg.Storage.KeywordIndex, logger)
	defer func() { _ = kwIndex.Close() }()

	vecStore, err := vector.Open(cfg.Storage.VectorIndex, cfg.Embedding.Dimensions)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}

	// Embedder chain: nil means semantic search is disabled for the
	// process lifetime and every query degrades to keyword search.
	var embedder domain.Embedder
	var cacheStore db.Store
	if cfg.Embedding.Enabled() {
		embedder = buildEmbedder(cfg, &cacheStore, logger)
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	} else {
		logger.Warn("No embedding API key configured, semantic search disabled")
	}
	if cacheStore != nil {
		defer cacheStore.Close()
	}

	// Use case services
	indexerSvc := indexeruc.New(kwIndex, vecStore, embedder, docStore, logger)
	searchSvc := searchuc.New(kwIndex, vecStore, embedder, logger).
		WithSnippetLength(cfg.Search.SnippetLength).
		WithStoreFallback(docStore)
	documentSvc := documentuc.New(docStore, indexerSvc, cfg.Storage.UploadDir, logger)

	server := chiTransport.NewServer(
		documentSvc, searchSvc, indexerSvc,
		time.Duration(cfg.Search.QueryTimeoutSec)*time.Second,
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Flush vector rows appended since the last persist.
	if err := vecStore.Persist(); err != nil {
		logger.Error("Failed to persist vector index", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached. The cache is
// optional and skipped when no Redis address is configured.
func buildEmbedder(cfg config.Config, cacheStore *db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if len(cfg.Cache.Addrs) == 0 {
		return base
	}

	redisStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Cache.Addrs,
		Password: cfg.Cache.Password,
	})
	if err != nil {
		logger.Warn("Failed to connect embedding cache, continuing without it", zap.Error(err))
		return base
	}
	*cacheStore = redisStore

	return embcache.New(base, redisStore, metrics.EmbeddingCacheTotal, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
