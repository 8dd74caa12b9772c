// Package mcpapi exposes the suggestion services as MCP tools over stdio.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the internal services directly, so assistant clients get the same
// behavior as the HTTP API without a proxy hop.
package mcpapi

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/predictive"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
)

// Server exposes recommend, feedback, profile and predictive suggestion tools.
type Server struct {
	mcp          *mcp.Server
	engine       *recommend.Engine
	booster      *recommend.Booster
	profiles     *profile.Manager
	pipeline     *predictive.Pipeline
	topK         int
	similarUsers int
	logger       *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "suggestd")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// TopK is the default recommendation count per tool call.
	TopK int

	// SimilarUsers is how many neighbor profiles the booster consults.
	SimilarUsers int

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:         "suggestd",
		Version:      "1.0.0",
		TopK:         3,
		SimilarUsers: recommend.DefaultSimilarUsers,
		Logger:       zap.NewNop(),
	}
}

// NewServer creates a new MCP server over the given services.
func NewServer(
	cfg *Config,
	engine *recommend.Engine,
	booster *recommend.Booster,
	profiles *profile.Manager,
	pipeline *predictive.Pipeline,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Name == "" {
		cfg.Name = "suggestd"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.SimilarUsers <= 0 {
		cfg.SimilarUsers = recommend.DefaultSimilarUsers
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if engine == nil {
		return nil, fmt.Errorf("recommendation engine is required")
	}
	if booster == nil {
		return nil, fmt.Errorf("collaborative booster is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile manager is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("predictive pipeline is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:          mcpServer,
		engine:       engine,
		booster:      booster,
		profiles:     profiles,
		pipeline:     pipeline,
		topK:         cfg.TopK,
		similarUsers: cfg.SimilarUsers,
		logger:       cfg.Logger,
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
