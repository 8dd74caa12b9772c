package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/config"
	"github.com/fyrsmithlabs/suggestd/internal/llm"
	"github.com/fyrsmithlabs/suggestd/internal/mcpapi"
	"github.com/fyrsmithlabs/suggestd/internal/predictive"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Run suggestd as an MCP server over stdio, exposing the recommend,
submit_feedback, get_user_profile and predictive_suggest tools to assistant
clients.

Examples:
  # Run the MCP server with the default configuration
  suggestd mcp

  # Run with an explicit configuration file
  suggestd mcp --config /etc/suggestd/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

// runMCP wires the same service stack as serve and blocks on the stdio
// transport until the client disconnects. Logging goes to stderr, so it
// never corrupts the protocol stream on stdout.
func runMCP(ctx context.Context) error {
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

	server, err := mcpapi.NewServer(&mcpapi.Config{
		Version:      version,
		TopK:         cfg.Recommend.TopK,
		SimilarUsers: cfg.Recommend.SimilarUsers,
		Logger:       logger,
	}, engine, booster, profiles, pipeline)
	if err != nil {
		return fmt.Errorf("initializing mcp server: %w", err)
	}

	logger.Info("starting mcp server", zap.String("version", version))
	return server.Run(ctx)
}
