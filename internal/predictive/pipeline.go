// Package predictive decides whether and what to suggest from conversational
// context.
//
// A request runs through a strictly ordered stage pipeline: context
// enrichment, rejection detection, topic detection, the suggestion gate,
// product search, and a partner-offer fallback. Any stage's capability
// failure degrades to a documented safe default; no error ever escapes the
// pipeline.
package predictive

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/suggestd/internal/embeddings"
	"github.com/fyrsmithlabs/suggestd/internal/llm"
	"github.com/fyrsmithlabs/suggestd/internal/profile"
	"github.com/fyrsmithlabs/suggestd/internal/vectorstore"
)

// tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("suggestd.predictive")

// historyWindow is how many prior conversation strings are considered.
const historyWindow = 3

// Request is a predictive suggestion request.
type Request struct {
	UserID string
	// Context is the current conversation turn.
	Context string
	// DetectedTopic optionally supplies the topic, skipping detection.
	DetectedTopic string
	// PreviousContext holds prior conversation strings, oldest first.
	PreviousContext []string
}

// Suggestion is a concrete product or partner suggestion.
type Suggestion struct {
	Text        string  `json:"text"`
	Partner     string  `json:"partner,omitempty"`
	IsSponsored bool    `json:"is_sponsored"`
	ItemID      string  `json:"item_id,omitempty"`
	ItemName    string  `json:"item_name,omitempty"`
	ItemPrice   float64 `json:"item_price,omitempty"`
	ItemURL     string  `json:"item_url,omitempty"`
}

// Decision is the pipeline's terminal outcome. Ephemeral, per-request.
type Decision struct {
	// Topic is the detected or supplied topic, empty when none.
	Topic string
	// RejectedProducts lists phrases the user rejected in conversation.
	RejectedProducts []string
	// ShouldSuggest records the gate's decision.
	ShouldSuggest bool
	// Suggestion is nil when nothing is suggested.
	Suggestion *Suggestion
	// OptInRequired is true only for partner offers.
	OptInRequired bool
}

// requestContext separates the two context scopes threaded through the
// stages. EnrichedContext (history + current turn) feeds rejection and topic
// detection only; Current feeds the gate and product search so prior turns
// never leak into current-turn intent.
type requestContext struct {
	Current  string
	Enriched string
	History  []string
}

// PartnerSource supplies partner offers for the fallback stage.
type PartnerSource interface {
	// Offer returns a partner suggestion for the topic and context, or nil
	// when no offer applies.
	Offer(ctx context.Context, topic, enrichedContext string) (*Suggestion, error)
}

// NoPartnerOffers is the always-empty PartnerSource. The fallback stage is a
// reserved extension point; no partner inventory exists yet.
type NoPartnerOffers struct{}

// Offer always yields nothing.
func (NoPartnerOffers) Offer(context.Context, string, string) (*Suggestion, error) {
	return nil, nil
}

// Pipeline is the predictive suggestion pipeline.
type Pipeline struct {
	store      vectorstore.Store
	embedder   embeddings.Provider
	profiles   *profile.Manager
	classifier llm.Classifier
	generator  llm.Generator
	partner    PartnerSource
	items      string
	logger     *zap.Logger
}

// NewPipeline creates a predictive suggestion pipeline over the given items
// collection. A nil partner source disables partner offers.
func NewPipeline(
	store vectorstore.Store,
	embedder embeddings.Provider,
	profiles *profile.Manager,
	classifier llm.Classifier,
	generator llm.Generator,
	partner PartnerSource,
	itemsCollection string,
	logger *zap.Logger,
) *Pipeline {
	if partner == nil {
		partner = NoPartnerOffers{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		profiles:   profiles,
		classifier: classifier,
		generator:  generator,
		partner:    partner,
		items:      itemsCollection,
		logger:     logger,
	}
}

// Generate runs the staged pipeline and always returns a well-formed
// decision; the worst case is a nil suggestion.
func (p *Pipeline) Generate(ctx context.Context, req Request) Decision {
	ctx, span := tracer.Start(ctx, "predictive.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", req.UserID))

	rc := enrichContext(req)

	// Rejection detection reads the enriched context so objections from
	// earlier turns still exclude items. Failure degrades to no rejections.
	rejected, err := p.classifier.DetectRejections(ctx, rc.Enriched)
	if err != nil {
		p.logger.Debug("rejection detection failed, assuming none", zap.Error(err))
		rejected = nil
	}

	topic := req.DetectedTopic
	if topic == "" {
		// Failure degrades to no topic.
		topic, err = p.classifier.DetectTopic(ctx, rc.Enriched)
		if err != nil {
			p.logger.Debug("topic detection failed, assuming none", zap.Error(err))
			topic = ""
		}
	}
	span.SetAttributes(attribute.String("topic", topic))

	// The gate reads the current turn only, so unrelated history never
	// triggers a suggestion. Failure degrades to suggesting only when a
	// topic was detected.
	shouldSuggest, err := p.classifier.ShouldSuggest(ctx, rc.Current, topic)
	if err != nil {
		p.logger.Debug("suggestion gate failed, falling back to topic presence", zap.Error(err))
		shouldSuggest = topic != ""
	}

	decision := Decision{
		Topic:            topic,
		RejectedProducts: rejected,
		ShouldSuggest:    shouldSuggest,
	}
	if !shouldSuggest {
		span.SetAttributes(attribute.Bool("suggested", false))
		return decision
	}

	userProfile, err := p.profiles.Get(ctx, req.UserID)
	if err != nil {
		p.logger.Debug("profile lookup failed, searching without profile",
			zap.String("user_id", req.UserID), zap.Error(err))
		userProfile = nil
	}

	if suggestion := p.findRelevantProduct(ctx, rc, userProfile, topic, rejected); suggestion != nil {
		decision.Suggestion = suggestion
		span.SetAttributes(attribute.Bool("suggested", true))
		return decision
	}

	offer, err := p.partner.Offer(ctx, topic, rc.Enriched)
	if err != nil {
		p.logger.Debug("partner offer lookup failed", zap.Error(err))
		offer = nil
	}
	if offer != nil {
		decision.Suggestion = offer
		decision.OptInRequired = true
	}
	span.SetAttributes(attribute.Bool("suggested", decision.Suggestion != nil))
	return decision
}

// enrichContext builds the per-request context scopes, concatenating up to
// the last 3 prior conversation strings (oldest first) with the current turn.
func enrichContext(req Request) requestContext {
	history := req.PreviousContext
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	rc := requestContext{
		Current:  req.Context,
		Enriched: req.Context,
		History:  history,
	}
	if len(history) > 0 {
		rc.Enriched = strings.Join(history, ". ") + ". " + req.Context
	}
	return rc
}
