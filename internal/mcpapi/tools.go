package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/predictive"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/recommend"
)

// previousContextLimit caps how many prior conversation turns a predictive
// suggestion call carries forward.
const previousContextLimit = 5

type recommendInput struct {
	UserID string `json:"user_id" jsonschema:"required,Unique identifier for the user"`
	Query  string `json:"query" jsonschema:"required,User's search query or request for recommendations"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"Maximum recommendations to return (default: 3)"`
}

type recommendOutput struct {
	Recommendations []recommend.Candidate `json:"recommendations" jsonschema:"Ranked product recommendations"`
	MemoryRecall    string                `json:"memory_recall,omitempty" jsonschema:"Note about the user's accumulated preferences"`
}

type feedbackInput struct {
	UserID       string `json:"user_id" jsonschema:"required,Unique identifier for the user"`
	ItemID       string `json:"item_id" jsonschema:"required,Identifier of the product item"`
	FeedbackType string `json:"feedback_type" jsonschema:"required,Type of feedback: 'like' or 'dislike'"`
}

type feedbackOutput struct {
	Status string `json:"status" jsonschema:"Outcome of the feedback submission"`
}

type profileInput struct {
	UserID string `json:"user_id" jsonschema:"required,Unique identifier for the user"`
}

type profileOutput struct {
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

type predictiveInput struct {
	UserID              string   `json:"user_id" jsonschema:"required,Unique identifier for the user"`
	ConversationContext string   `json:"conversation_context" jsonschema:"required,The conversation context or user message to analyze for suggestions"`
	DetectedTopic       string   `json:"detected_topic,omitempty" jsonschema:"Optional pre-detected topic (e.g. 'gaming', 'entertainment'). Detected automatically when omitted."`
	PreviousTopics      []string `json:"previous_topics,omitempty" jsonschema:"Optional list of previous conversation messages (not topic names), combined with conversation_context for richer context"`
}

type predictiveOutput struct {
	Suggestion    *predictive.Suggestion `json:"suggestion" jsonschema:"The generated suggestion, or null when none is appropriate"`
	OptInRequired bool                   `json:"opt_in_required" jsonschema:"Whether the suggestion requires user opt-in"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recommend",
		Description: "Generate product recommendations based on user query and profile. Returns a list of recommended products with details like name, price, similarity score, and rationale.",
	}, s.handleRecommend)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Submit user feedback (like or dislike) for a product recommendation. This updates the user's profile to improve future recommendations.",
	}, s.handleFeedback)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_user_profile",
		Description: "Retrieve user profile information including preferences, liked/disliked items, and metadata like age range, city, style preferences.",
	}, s.handleProfile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "predictive_suggest",
		Description: "Generate predictive suggestions based on conversation context. Detects topics in the conversation and suggests relevant products or partner offers.",
	}, s.handlePredictiveSuggest)
}

func (s *Server) handleRecommend(ctx context.Context, req *mcp.CallToolRequest, args recommendInput) (*mcp.CallToolResult, recommendOutput, error) {
	if args.UserID == "" || args.Query == "" {
		return nil, recommendOutput{}, fmt.Errorf("user_id and query are required")
	}
	topK := args.TopK
	if topK <= 0 {
		topK = s.topK
	}

	result := s.engine.GetRecommendations(ctx, args.UserID, args.Query, topK)
	candidates := s.booster.Enhance(ctx, args.UserID, result.Candidates, s.similarUsers)
	if candidates == nil {
		candidates = []recommend.Candidate{}
	}

	output := recommendOutput{
		Recommendations: candidates,
		MemoryRecall:    result.MemoryRecall,
	}
	return textResult(formatRecommendations(candidates, result.MemoryRecall)), output, nil
}

func (s *Server) handleFeedback(ctx context.Context, req *mcp.CallToolRequest, args feedbackInput) (*mcp.CallToolResult, feedbackOutput, error) {
	if args.UserID == "" || args.ItemID == "" {
		return nil, feedbackOutput{}, fmt.Errorf("user_id and item_id are required")
	}

	_, err := s.profiles.SubmitFeedback(ctx, args.UserID, args.ItemID, profile.FeedbackType(args.FeedbackType))
	if err != nil {
		if errors.Is(err, profile.ErrInvalidFeedback) {
			return nil, feedbackOutput{}, fmt.Errorf("feedback_type must be 'like' or 'dislike'")
		}
		s.logger.Error("feedback submission failed",
			zap.String("user_id", args.UserID), zap.Error(err))
		return nil, feedbackOutput{}, fmt.Errorf("failed to record feedback: %w", err)
	}

	text := fmt.Sprintf("Thank you! I've saved your %s for this item. I'll keep this in mind for future recommendations.", args.FeedbackType)
	return textResult(text), feedbackOutput{Status: "success"}, nil
}

func (s *Server) handleProfile(ctx context.Context, req *mcp.CallToolRequest, args profileInput) (*mcp.CallToolResult, profileOutput, error) {
	if args.UserID == "" {
		return nil, profileOutput{}, fmt.Errorf("user_id is required")
	}

	p, err := s.profiles.Get(ctx, args.UserID)
	if err != nil {
		s.logger.Error("profile lookup failed",
			zap.String("user_id", args.UserID), zap.Error(err))
		return nil, profileOutput{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if p == nil {
		return nil, profileOutput{}, fmt.Errorf("profile not found for user %s", args.UserID)
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
	output := profileOutput{
		UserID:           args.UserID,
		AgeRange:         m.AgeRange,
		HouseholdSize:    m.HouseholdSize,
		City:             m.City,
		StylePreference:  m.StylePreference,
		LikedItems:       liked,
		DislikedItems:    disliked,
		PreferencesCount: len(liked) + len(disliked),
		LastUpdated:      m.LastUpdated,
	}
	return textResult(formatProfile(output)), output, nil
}

func (s *Server) handlePredictiveSuggest(ctx context.Context, req *mcp.CallToolRequest, args predictiveInput) (*mcp.CallToolResult, predictiveOutput, error) {
	if args.UserID == "" || args.ConversationContext == "" {
		return nil, predictiveOutput{}, fmt.Errorf("user_id and conversation_context are required")
	}

	// Assistant clients sometimes send "none" rather than omitting the topic.
	topic := args.DetectedTopic
	if topic == "none" {
		topic = ""
	}

	previous := make([]string, 0, len(args.PreviousTopics))
	for _, turn := range args.PreviousTopics {
		turn = strings.TrimSpace(turn)
		if turn != "" {
			previous = append(previous, turn)
		}
	}
	if len(previous) > previousContextLimit {
		previous = previous[len(previous)-previousContextLimit:]
	}

	decision := s.pipeline.Generate(ctx, predictive.Request{
		UserID:          args.UserID,
		Context:         args.ConversationContext,
		DetectedTopic:   topic,
		PreviousContext: previous,
	})

	output := predictiveOutput{
		Suggestion:    decision.Suggestion,
		OptInRequired: decision.OptInRequired,
	}
	return textResult(formatSuggestion(decision)), output, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// formatRecommendations renders the ranked list for assistant display.
func formatRecommendations(candidates []recommend.Candidate, memoryRecall string) string {
	var sb strings.Builder
	sb.WriteString("Here are my recommendations:\n\n")
	if memoryRecall != "" {
		fmt.Fprintf(&sb, "%s\n\n", memoryRecall)
	}
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. **%s**\n", i+1, c.Name)
		fmt.Fprintf(&sb, "   - Price: $%.2f\n", c.Price)
		fmt.Fprintf(&sb, "   - Similarity Score: %.3f\n", c.SimilarityScore)
		fmt.Fprintf(&sb, "   - %s\n", c.Rationale)
		if c.SimilarUserSignal {
			sb.WriteString("   - Popular with similar users\n")
		}
		fmt.Fprintf(&sb, "   - Item ID: %s\n\n", c.ItemID)
	}
	return sb.String()
}

// formatProfile renders a profile summary, listing at most five items per
// preference list.
func formatProfile(p profileOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**User Profile for %s**\n\n", p.UserID)
	fmt.Fprintf(&sb, "Preferences Count: %d\n", p.PreferencesCount)
	lastUpdated := p.LastUpdated
	if lastUpdated == "" {
		lastUpdated = "N/A"
	}
	fmt.Fprintf(&sb, "Last Updated: %s\n\n", lastUpdated)

	if p.AgeRange != "" {
		fmt.Fprintf(&sb, "Age Range: %s\n", p.AgeRange)
	}
	if p.HouseholdSize != "" {
		fmt.Fprintf(&sb, "Household Size: %s\n", p.HouseholdSize)
	}
	if p.City != "" {
		fmt.Fprintf(&sb, "City: %s\n", p.City)
	}
	if p.StylePreference != "" {
		fmt.Fprintf(&sb, "Style Preference: %s\n", p.StylePreference)
	}

	writeItemList(&sb, "Liked Items", p.LikedItems)
	writeItemList(&sb, "Disliked Items", p.DislikedItems)
	return sb.String()
}

func writeItemList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	shown := items
	if len(shown) > 5 {
		shown = shown[:5]
	}
	fmt.Fprintf(sb, "\n%s (%d): %s", label, len(items), strings.Join(shown, ", "))
	if len(items) > 5 {
		fmt.Fprintf(sb, " and %d more", len(items)-5)
	}
	sb.WriteString("\n")
}

// formatSuggestion renders a predictive suggestion, or an empty string when
// none is appropriate so the assistant shows nothing.
func formatSuggestion(d predictive.Decision) string {
	if d.Suggestion == nil {
		return ""
	}
	sg := d.Suggestion

	var sb strings.Builder
	sb.WriteString(sg.Text)

	if sg.ItemID != "" && !sg.IsSponsored {
		name := sg.ItemName
		if name == "" {
			name = "Product"
		}
		fmt.Fprintf(&sb, "\n\n**%s** - $%.2f", name, sg.ItemPrice)
		fmt.Fprintf(&sb, "\nItem ID: %s", sg.ItemID)
		if strings.TrimSpace(sg.ItemURL) != "" {
			fmt.Fprintf(&sb, "\nURL: %s", sg.ItemURL)
		}
	}

	if sg.IsSponsored {
		sb.WriteString("\n\n*[Sponsored Partner Offer]*")
		if d.OptInRequired {
			sb.WriteString(" *Opt-in required*")
		}
	}
	return sb.String()
}
