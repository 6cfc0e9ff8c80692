package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	recognizerTemperature = 0.0
	recognizerMaxTokens   = 1024
	confidenceFloor       = 0.60
)

// RecognitionResult is the Item Recognizer's output: an expanded
// description, brand, free-text product type, one taxonomy category,
// and the model's self-reported confidence.
type RecognitionResult struct {
	NormalizedDescription string
	Brand                 string
	ProductType            string
	Category               string
	Confidence             float64
}

type extractorConfig struct {
	model string
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*extractorConfig)

// WithModel overrides the model used for recognition calls.
func WithModel(model string) ExtractorOption {
	return func(cfg *extractorConfig) {
		cfg.model = model
	}
}

// Extractor wraps a Client with the Item Recognizer's prompt and
// response contract.
type Extractor struct {
	client *Client
	model  string
}

// NewExtractor builds an Extractor bound to client, optionally
// overriding which model is used.
func NewExtractor(client *Client, opts ...ExtractorOption) *Extractor {
	cfg := &extractorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Extractor{client: client, model: cfg.model}
}

type recognitionResponse struct {
	NormalizedDescription string  `json:"normalized_description"`
	Brand                 string  `json:"brand"`
	ProductType           string  `json:"product_type"`
	Category              string  `json:"category"`
	Confidence            float64 `json:"confidence"`
}

// Recognize calls the LLM to classify a single receipt line.
// webContext is the optional vendor-website lookup result, empty
// when that lookup is disabled or found nothing. On a response the
// extractor cannot parse, it returns category "unknown" with confidence
// 0 rather than erroring — a malformed LLM response degrades to a
// reviewable line, it does not fail the pipeline.
func (e *Extractor) Recognize(ctx context.Context, vendor, description, webContext string) (*RecognitionResult, Usage, error) {
	prompt := fmt.Sprintf(UserPromptItemRecognition, vendor, description, webContext, taxonomyList())

	raw, usage, err := e.client.ChatTextWithUsage(ctx, e.model, SystemPromptItemRecognizer, prompt, recognizerTemperature, recognizerMaxTokens)
	if err != nil {
		return nil, Usage{}, fmt.Errorf("item recognition call failed: %w", err)
	}

	var parsed recognitionResponse
	if jsonErr := json.Unmarshal([]byte(ExtractJSON(raw)), &parsed); jsonErr != nil {
		return &RecognitionResult{Category: "unknown", Confidence: 0}, usage, nil
	}

	result := &RecognitionResult{
		NormalizedDescription: parsed.NormalizedDescription,
		Brand:                 parsed.Brand,
		ProductType:           parsed.ProductType,
		Category:              parsed.Category,
		Confidence:            parsed.Confidence,
	}

	if result.Confidence < confidenceFloor {
		result.Category = "unknown"
	}
	if !isKnownCategory(result.Category) {
		result.Category = "unknown"
	}

	return result, usage, nil
}

func isKnownCategory(category string) bool {
	for _, c := range Taxonomy {
		if c == category {
			return true
		}
	}
	return false
}

func taxonomyList() string {
	return strings.Join(Taxonomy, ", ")
}
