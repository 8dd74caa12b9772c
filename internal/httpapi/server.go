// Package httpapi provides the HTTP API for suggestd.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/predictive"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
)

// Server provides HTTP endpoints for suggestd.
type Server struct {
	echo     *echo.Echo
	engine   *recommend.Engine
	booster  *recommend.Booster
	profiles *profile.Manager
	pipeline *predictive.Pipeline
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// TopK is the default recommendation count per request.
	TopK int
	// SimilarUsers is how many neighbor profiles the booster consults.
	SimilarUsers int
}

// NewServer creates a new HTTP server.
func NewServer(
	engine *recommend.Engine,
	booster *recommend.Booster,
	profiles *profile.Manager,
	pipeline *predictive.Pipeline,
	logger *zap.Logger,
	cfg *Config,
) (*Server, error) {
	if engine == nil || booster == nil || profiles == nil || pipeline == nil {
		return nil, fmt.Errorf("engine, booster, profiles and pipeline are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.TopK == 0 {
		cfg.TopK = 3
	}
	if cfg.SimilarUsers == 0 {
		cfg.SimilarUsers = recommend.DefaultSimilarUsers
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		engine:   engine,
		booster:  booster,
		profiles: profiles,
		pipeline: pipeline,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/recommend", s.handleRecommend)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/profile", s.handleProfile)
	v1.POST("/predictive_suggest", s.handlePredictiveSuggest)
}

// RecommendRequest is the request body for POST /api/v1/recommend.
type RecommendRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	TopK   int    `json:"top_k"`
}

// RecommendResponse is the response body for POST /api/v1/recommend.
type RecommendResponse struct {
	Recommendations []recommend.Candidate `json:"recommendations"`
	MemoryRecall    string                `json:"memory_recall,omitempty"`
}

// FeedbackRequest is the request body for POST /api/v1/feedback.
type FeedbackRequest struct {
	UserID       string `json:"user_id"`
	ItemID       string `json:"item_id"`
	FeedbackType string `json:"feedback_type"`
}

// FeedbackResponse is the response body for POST /api/v1/feedback.
type FeedbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProfileResponse is the response body for GET /api/v1/profile.
type ProfileResponse struct {
	UserID           string   `json:"user_id"`
	AgeRange         string   `json:"age_range,omitempty"`
	HouseholdSize    string   `json:"household_size,omitempty"`
	City             string   `json:"city,omitempty"`
	StylePreference  string   `json:"style_preference,omitempty"`
	LikedItems       []string `json:"liked_items"`
	DislikedItems    []string `json:"disliked_items"`
	PreferencesCount int      `json:"preferences_count"`
	LastUpdated      string   `json:"last_updated,omitempty"`
}

// PredictiveSuggestRequest is the request body for POST /api/v1/predictive_suggest.
type PredictiveSuggestRequest struct {
	UserID          string   `json:"user_id"`
	Context         string   `json:"context"`
	DetectedTopic   string   `json:"detected_topic"`
	PreviousContext []string `json:"previous_context"`
}

// PredictiveSuggestResponse is the response body for POST /api/v1/predictive_suggest.
type PredictiveSuggestResponse struct {
	Suggestion    *predictive.Suggestion `json:"suggestion"`
	OptInRequired bool                   `json:"opt_in_required"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRecommend ranks items for the user's query and boosts the ranking
// with similar-user signals.
func (s *Server) handleRecommend(c echo.Context) error {
	var req RecommendRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid recommend request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and query fields are required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	ctx := c.Request().Context()
	result := s.engine.GetRecommendations(ctx, req.UserID, req.Query, topK)
	// The enhanced list may exceed topK: the booster appends items popular
	// with similar users beyond the similarity ranking, and those ride along.
	candidates := s.booster.Enhance(ctx, req.UserID, result.Candidates, s.config.SimilarUsers)
	if candidates == nil {
		candidates = []recommend.Candidate{}
	}

	return c.JSON(http.StatusOK, RecommendResponse{
		Recommendations: candidates,
		MemoryRecall:    result.MemoryRecall,
	})
}

// handleFeedback records a like or dislike for an item.
func (s *Server) handleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.ItemID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and item_id fields are required")
	}

	_, err := s.profiles.SubmitFeedback(c.Request().Context(), req.UserID, req.ItemID, profile.FeedbackType(req.FeedbackType))
	if err != nil {
		if errors.Is(err, profile.ErrInvalidFeedback) {
			return echo.NewHTTPError(http.StatusBadRequest, "feedback_type must be 'like' or 'dislike'")
		}
		s.logger.Error("feedback submission failed",
			zap.String("user_id", req.UserID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record feedback")
	}

	return c.JSON(http.StatusOK, FeedbackResponse{
		Status:  "success",
		Message: fmt.Sprintf("Recorded %s for item %s", req.FeedbackType, req.ItemID),
	})
}

// handleProfile returns the stored profile for a user.
func (s *Server) handleProfile(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id query parameter is required")
	}

	p, err := s.profiles.Get(c.Request().Context(), userID)
	if err != nil {
		s.logger.Error("profile lookup failed",
			zap.String("user_id", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch profile")
	}
	if p == nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}

	m := p.Metadata
	liked := m.LikedItems
	if liked == nil {
		liked = []string{}
	}
	disliked := m.DislikedItems
	if disliked == nil {
		disliked = []string{}
	}
	return c.JSON(http.StatusOK, ProfileResponse{
		UserID:           userID,
		AgeRange:         m.AgeRange,
		HouseholdSize:    m.HouseholdSize,
		City:             m.City,
		StylePreference:  m.StylePreference,
		LikedItems:       liked,
		DislikedItems:    disliked,
		PreferencesCount: len(liked) + len(disliked),
		LastUpdated:      m.LastUpdated,
	})
}

// handlePredictiveSuggest runs the predictive suggestion pipeline for a
// conversation turn.
func (s *Server) handlePredictiveSuggest(c echo.Context) error {
	var req PredictiveSuggestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid predictive suggest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.Context == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and context fields are required")
	}

	// Clients sometimes send "none" rather than omitting the topic.
	topic := req.DetectedTopic
	if topic == "none" {
		topic = ""
	}

	decision := s.pipeline.Generate(c.Request().Context(), predictive.Request{
		UserID:          req.UserID,
		Context:         req.Context,
		DetectedTopic:   topic,
		PreviousContext: req.PreviousContext,
	})

	return c.JSON(http.StatusOK, PredictiveSuggestResponse{
		Suggestion:    decision.Suggestion,
		OptInRequired: decision.OptInRequired,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
