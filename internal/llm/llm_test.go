package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-processor/internal/llm"
)

func TestNewClient(t *testing.T) {
	client := llm.NewClient("test-api-key")
	require.NotNil(t, client)
}

func TestNewClient_WithOptions(t *testing.T) {
	client := llm.NewClient("test-api-key",
		llm.WithBaseURL("https://custom.api.com/v1"),
		llm.WithDefaultModel(llm.ModelGPT4o),
	)
	require.NotNil(t, client)
}

func TestNewExtractor(t *testing.T) {
	client := llm.NewClient("test-api-key")
	extractor := llm.NewExtractor(client)
	require.NotNil(t, extractor)
}

func TestNewExtractor_WithModel(t *testing.T) {
	client := llm.NewClient("test-api-key")
	extractor := llm.NewExtractor(client, llm.WithModel(llm.ModelGPT4oMini))
	require.NotNil(t, extractor)
}

func TestExtractJSON_CodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "Here is the classification:\n```json\n{\"category\": \"beverage_soda\"}\n```",
			expected: `{"category": "beverage_soda"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"category\": \"food_snack\"}\n```",
			expected: `{"category": "food_snack"}`,
		},
		{
			name:     "raw json object",
			input:    `{"category": "retail_cleaning"}`,
			expected: `{"category": "retail_cleaning"}`,
		},
		{
			name:     "raw json array",
			input:    `[{"id": 1}, {"id": 2}]`,
			expected: `[{"id": 1}, {"id": 2}]`,
		},
		{
			name:     "json with explanation",
			input:    "I classified it as follows:\n```json\n{\"category\": \"equipment\"}\n```\nThis is a power tool.",
			expected: `{"category": "equipment"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := llm.ExtractJSON(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestModelConstants(t *testing.T) {
	models := []string{
		llm.ModelClaude35Sonnet,
		llm.ModelClaude3Haiku,
		llm.ModelGPT4oMini,
		llm.ModelGPT4o,
		llm.ModelGeminiFlash,
	}

	for _, m := range models {
		assert.NotEmpty(t, m)
		assert.Contains(t, m, "/") // All models have provider/model format
	}
}

func TestTaxonomy_ContainsUnknownFallback(t *testing.T) {
	assert.Contains(t, llm.Taxonomy, "unknown")
	assert.Contains(t, llm.Taxonomy, "equipment")
	assert.Contains(t, llm.Taxonomy, "deposit")
}

func TestPromptTemplates(t *testing.T) {
	assert.NotEmpty(t, llm.SystemPromptItemRecognizer)
	assert.NotEmpty(t, llm.UserPromptItemRecognition)

	assert.Contains(t, llm.SystemPromptItemRecognizer, "categor")
	assert.Contains(t, llm.UserPromptItemRecognition, "JSON")
	assert.Contains(t, llm.UserPromptItemRecognition, "Taxonomy")
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api/v1", llm.DefaultBaseURL)
}

// Benchmark tests

func BenchmarkExtractJSON(b *testing.B) {
	input := "Here is the data:\n```json\n{\"category\": \"beverage_soda\", \"confidence\": 0.9}\n```"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		llm.ExtractJSON(input)
	}
}
