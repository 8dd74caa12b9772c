package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// System prompts for the classification and generation capabilities.
const (
	topicSystemPrompt = "You are a topic detection assistant. Analyze conversations and identify the primary topic or interest. Always respond with valid JSON only."

	rejectionSystemPrompt = "You are an assistant that identifies rejected or negatively mentioned products. Be thorough - if a user says they 'liked' a product but it was 'too expensive' or 'too much', that product is still REJECTED and should be in the list. Always respond with valid JSON only."

	gateSystemPrompt = "You are an assistant that determines when product/service suggestions are appropriate. This system can suggest ANY type of purchasable product or service (electronics, furniture, travel packages, experiences, etc.). Be flexible and open-minded - if the conversation relates to any purchasable product or service, suggest it. Only return false if the conversation is about non-purchasable topics (general advice, personal problems) or the user explicitly doesn't want suggestions. If a user rejects one product but is still shopping, suggest alternatives. Always respond with valid JSON only."

	expandSystemPrompt = "You are an assistant that creates optimized search queries for product/service matching. You must correctly infer the TYPE of product or service the user is looking for based on their intent and context, not just keywords (vacation -> cruises, home furnishing -> furniture, entertainment -> TVs, activities -> experiences). When users say they liked a product but it was 'too expensive', create queries that find similar products at lower prices. Always respond with valid JSON only."

	generateSystemPrompt = "You are a helpful friend making product recommendations. Generate natural, conversational suggestions that match the user's conversation style. Be brief, helpful, and genuine - never pushy or salesy."
)

func topicPrompt(text string) string {
	return fmt.Sprintf(`Analyze this conversation and identify the primary topic or interest related to products.

Conversation: %q

Respond with ONLY a JSON object in this exact format:
{
  "topic": "a brief topic name (e.g., 'gaming', 'entertainment', 'art_design', 'home_theater', 'sports', 'work', 'family', 'apartment', 'budget', 'premium') or null if no clear topic",
  "confidence": "high" or "medium" or "low",
  "reasoning": "brief explanation"
}

If no clear topic is detected, set topic to null.

JSON response:`, text)
}

func rejectionPrompt(text string) string {
	return fmt.Sprintf(`Analyze this conversation and identify any products that were mentioned negatively or rejected.

Conversation: %q

Respond with ONLY a JSON object:
{
  "rejected_products": ["product name 1", "product name 2"] or [],
  "reasoning": "brief explanation"
}

Include products that were:
- Explicitly rejected or disliked
- Mentioned as "too expensive", "too much", "out of budget", "can't afford"
- Said to be "not for me" or similar negative sentiment

If the user says they liked something but it was "too much" or "too expensive", that product should be in rejected_products.

If no products were rejected, return an empty array.

JSON response:`, text)
}

func gatePrompt(text, topic string) string {
	if topic == "" {
		topic = "none"
	}
	return fmt.Sprintf(`Analyze this conversation and determine if it's appropriate to suggest a product or service.

Conversation: %q
Detected topic: %s

This system can suggest various types of products and services, including electronics, furniture and home decor, travel and vacation packages, activities and experiences, and any other purchasable products or services.

Do NOT suggest if the conversation is about:
- General advice or non-purchasable topics
- Personal problems or emotional support
- Questions that don't relate to products/services
- The user explicitly said they don't want suggestions or are done shopping

Respond with ONLY a JSON object:
{
  "should_suggest": true or false,
  "reasoning": "brief explanation"
}

Important considerations:
- Suggest if the conversation is about ANY purchasable product or service
- If the user rejected ONE specific product but is still discussing products/services, suggest ALTERNATIVES (should_suggest = true)
- If the user explicitly said they don't want help, suggestions, or are done shopping, then should_suggest = false
- Rejecting a single product does NOT mean they don't want suggestions - they likely want alternatives

JSON response:`, text, topic)
}

func expandPrompt(text, topic string, rejected []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this conversation and create an enhanced search query for finding relevant products or services.\n\nConversation: %q", text)
	if topic != "" {
		fmt.Fprintf(&sb, " Detected topic: %s.", topic)
	}
	if len(rejected) > 0 {
		fmt.Fprintf(&sb, " Rejected products (DO NOT include these): %s", strings.Join(rejected, ", "))
	}
	if mentionsPriceConcern(text) {
		sb.WriteString(" IMPORTANT: The user mentioned price concerns. Find similar products but at LOWER prices. If they liked a product but said it was too expensive, find alternatives with similar features/design but cheaper.")
	}
	sb.WriteString(`

STEP 1 - IDENTIFY PRODUCT/SERVICE TYPE: Infer what TYPE of product or service the user is looking for from intent and context, not just keywords (vacation/travel needs -> cruises/travel packages, home furnishing needs -> furniture, entertainment/display needs -> TVs/electronics, activity/learning needs -> experiences).

STEP 2 - REASONING: Infer what the user LIKED about any mentioned products, what they DISLIKED or rejected, and what they are ACTUALLY looking for.

STEP 3 - SEARCH QUERY: Create a search query that reflects the identified product/service type, includes the POSITIVE aspects the user liked, EXCLUDES the NEGATIVE aspects, NEVER includes rejected product names, and uses natural language that would match product descriptions in the catalog.

Available product categories include: televisions, furniture (living_room, bedroom, kitchen, bathroom), cruises, experiences (outdoor, cultural, food, wellness, entertainment).

Respond with ONLY a JSON object:
{
  "product_type": "the type of product/service (cruises, furniture, TVs/electronics, experiences, etc.)",
  "reasoning": "brief explanation of what user liked/disliked and what they're looking for",
  "search_query": "enhanced search query text that captures their needs and includes the correct product type keywords"
}

JSON response:`)
	return sb.String()
}

// priceConcernPhrases trigger the lower-price framing in query expansion.
var priceConcernPhrases = []string{
	"too much", "too expensive", "out of budget", "can't afford",
	"cheaper", "less expensive", "affordable",
}

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func mentionsPriceConcern(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range priceConcernPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func generatePrompt(input GenerationInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a natural, conversational product suggestion that feels like a friend making a recommendation.\n\nCurrent conversation: %q", input.Context)
	if input.Topic != "" {
		fmt.Fprintf(&sb, " The conversation topic is: %s.", input.Topic)
	}
	if len(input.Rejected) > 0 {
		fmt.Fprintf(&sb, " The user previously mentioned/rejected: %s. If they said something was 'too expensive', naturally mention that this is more affordable.", strings.Join(input.Rejected, ", "))
	}
	if len(input.PreviousContext) > 0 {
		fmt.Fprintf(&sb, "\n\nPrevious conversation (for style reference): %q", strings.Join(input.PreviousContext, ". "))
	}

	description := truncateRunes(input.Item.Description, 200)
	fmt.Fprintf(&sb, `

Product to suggest:
- Name: %s
- Price: $%.2f
- Brand: %s
- Description: %s

Create a suggestion that:
- Feels natural and conversational, like a friend would say it
- Matches the tone and style of the previous conversation (if provided)
- Is contextually relevant to what the user is currently discussing
- If they rejected something for being too expensive, naturally mention this is more affordable
- Keep it brief (1-2 sentences)
- Don't be pushy or salesy

Respond with ONLY the suggestion text (no quotes, no JSON, just the natural conversational text):

Suggestion:`, input.Item.Name, input.Item.Price, input.Item.Brand, description)
	return sb.String()
}
