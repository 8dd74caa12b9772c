package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/config"
	"github.com/fyrsmithlabs/suggestd/internal/embeddings"
	"github.com/fyrsmithlabs/suggestd/internal/httpapi"
	"github.com/fyrsmithlabs/suggestd/internal/llm"
	"github.com/fyrsmithlabs/suggestd/internal/logging"
	"github.com/fyrsmithlabs/suggestd/internal/predictive"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the suggestd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe initializes all dependencies and blocks until a shutdown signal.
//
//  1. Loads and validates configuration
//  2. Initializes the logger
//  3. Creates the embedding provider and vector store backend
//  4. Ensures both collections exist
//  5. Wires the profile manager, engines and predictive pipeline
//  6. Starts the HTTP server and shuts down gracefully on SIGINT/SIGTERM
func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting suggestd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Backend),
		zap.String("embeddings", cfg.Embeddings.Provider),
	)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}
	defer embedder.Close()

	store, err := newStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer store.Close()

	dim := cfg.Embeddings.Dimension
	for _, collection := range []string{cfg.VectorStore.UsersCollection, cfg.VectorStore.ItemsCollection} {
		if err := store.EnsureCollection(ctx, collection, dim); err != nil {
			return fmt.Errorf("ensuring collection %s: %w", collection, err)
		}
	}
	logger.Info("collections verified",
		zap.String("users", cfg.VectorStore.UsersCollection),
		zap.String("items", cfg.VectorStore.ItemsCollection),
		zap.Int("dimension", dim),
	)

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey.Value(),
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.Timeout),
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing llm client: %w", err)
	}

	profiles := profile.NewManager(store, embedder, cfg.VectorStore.UsersCollection, logger)
	engine := recommend.NewEngine(store, embedder, profiles, cfg.VectorStore.ItemsCollection, logger)
	booster := recommend.NewBooster(store, profiles, cfg.VectorStore.ItemsCollection, logger)
	pipeline := predictive.NewPipeline(store, embedder, profiles, llmClient, llmClient, nil,
		cfg.VectorStore.ItemsCollection, logger)

	server, err := httpapi.NewServer(engine, booster, profiles, pipeline, logger, &httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		TopK:         cfg.Recommend.TopK,
		SimilarUsers: cfg.Recommend.SimilarUsers,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// newLogger builds the structured logger from configuration.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// newEmbedder creates the configured embedding provider.
func newEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	return embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		CacheDir:  cfg.Embeddings.CacheDir,
		APIKey:    cfg.Embeddings.APIKey.Value(),
	})
}

// newStore creates the configured vector store backend.
func newStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	switch cfg.VectorStore.Backend {
	case "chromem":
		return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			Path: cfg.VectorStore.Path,
		}, logger)
	default:
		return vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:   cfg.VectorStore.Host,
			Port:   cfg.VectorStore.Port,
			UseTLS: cfg.VectorStore.UseTLS,
		}, logger)
	}
}
