package llm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/suggestd/internal/catalog"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain json",
			in:   `{"topic": "tv"}`,
			want: `{"topic": "tv"}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"topic\": \"tv\"}\n```",
			want: `{"topic": "tv"}`,
		},
		{
			name: "bare fence",
			in:   "```\n{\"topic\": \"tv\"}\n```",
			want: `{"topic": "tv"}`,
		},
		{
			name: "surrounding prose",
			in:   "Sure, here you go: {\"topic\": \"tv\"} hope that helps",
			want: `{"topic": "tv"}`,
		},
		{
			name: "whitespace",
			in:   "  \n{\"a\": 1}\n  ",
			want: `{"a": 1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.in))
		})
	}
}

func TestStripWrappingQuotes(t *testing.T) {
	assert.Equal(t, "hello", stripWrappingQuotes(`"hello"`))
	assert.Equal(t, "hello", stripWrappingQuotes(`'hello'`))
	assert.Equal(t, `say "hi"`, stripWrappingQuotes(`say "hi"`))
	assert.Equal(t, "plain", stripWrappingQuotes("plain"))
}

func TestMentionsPriceConcern(t *testing.T) {
	assert.True(t, mentionsPriceConcern("I loved it but it was TOO EXPENSIVE"))
	assert.True(t, mentionsPriceConcern("that's way too much for me"))
	assert.True(t, mentionsPriceConcern("looking for something more affordable"))
	assert.False(t, mentionsPriceConcern("I want a bigger screen"))
}

func TestGatePromptDefaultsTopicToNone(t *testing.T) {
	prompt := gatePrompt("hello", "")
	assert.Contains(t, prompt, "Detected topic: none")

	prompt = gatePrompt("hello", "entertainment")
	assert.Contains(t, prompt, "Detected topic: entertainment")
}

func TestExpandPrompt(t *testing.T) {
	prompt := expandPrompt("I liked it but it was too expensive", "entertainment", []string{"The Frame"})

	assert.Contains(t, prompt, "Rejected products (DO NOT include these): The Frame")
	assert.Contains(t, prompt, "LOWER prices")
	assert.Contains(t, prompt, "Detected topic: entertainment")
}

func TestExpandPromptWithoutExtras(t *testing.T) {
	prompt := expandPrompt("need a new tv", "", nil)

	assert.NotContains(t, prompt, "Rejected products")
	assert.NotContains(t, prompt, "LOWER prices")
}

func TestGeneratePromptCapsDescription(t *testing.T) {
	input := GenerationInput{
		Context: "need better sound",
		Item: catalog.ItemMetadata{
			Name:        "Soundbar X",
			Price:       299,
			Description: strings.Repeat("d", 300),
		},
	}
	prompt := generatePrompt(input)

	assert.Contains(t, prompt, strings.Repeat("d", 200))
	assert.NotContains(t, prompt, strings.Repeat("d", 201))
	assert.Contains(t, prompt, "Soundbar X")
	assert.Contains(t, prompt, "$299.00")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 200))
	assert.Equal(t, "ab", truncateRunes("abcd", 2))

	// A multi-byte rune straddling the limit is dropped, not split.
	got := truncateRunes(strings.Repeat("d", 199)+"émore", 200)
	assert.Equal(t, strings.Repeat("d", 199), got)
	assert.True(t, utf8.ValidString(got))
}

func TestGeneratePromptIncludesRejectionFraming(t *testing.T) {
	prompt := generatePrompt(GenerationInput{
		Context:         "still shopping",
		Rejected:        []string{"The Frame"},
		PreviousContext: []string{"earlier turn"},
		Item:            catalog.ItemMetadata{Name: "Budget TV", Price: 399},
	})

	assert.Contains(t, prompt, "The Frame")
	assert.Contains(t, prompt, "more affordable")
	assert.Contains(t, prompt, "earlier turn")
}
