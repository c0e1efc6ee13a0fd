package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// geminiClient implements the Client interface for Google Gemini via the
// genai SDK.
type geminiClient struct {
	client *genai.Client
	model  string
}

// newGeminiClient creates a new Gemini client.
func newGeminiClient(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewError(ErrAPINotConfigured, "Gemini API key is required", nil)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, NewError(ErrAPINotConfigured, "failed to create genai client", err)
	}

	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Provider() string {
	return "gemini"
}

// Classify sends a classification request to Gemini.
func (c *geminiClient) Classify(ctx context.Context, req ClassifyRequest) (ClassificationResult, error) {
	prompt := buildClassifyPrompt(req) +
		"\n\nRespond with ONLY a valid raw JSON object of the form " +
		`{"category": "...", "confidence": 0.0, "reasoning": "..."}. Do not use code fences.`

	content, err := c.generate(ctx, prompt)
	if err != nil {
		return ClassificationResult{}, err
	}

	return ParseClassification(content)
}

// Summarize sends a batch summarization request to Gemini.
func (c *geminiClient) Summarize(ctx context.Context, req SummaryRequest) (SummaryResult, error) {
	prompt := buildSummaryPrompt(req) +
		"\n\nRespond with ONLY a valid raw JSON object of the form " +
		`{"summary": "...", "insights": ["..."]}. The summary must be at most eight words.`

	content, err := c.generate(ctx, prompt)
	if err != nil {
		return SummaryResult{}, err
	}

	return ParseSummary(content)
}

func (c *geminiClient) generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "quota") ||
			strings.Contains(err.Error(), "429") {
			return "", NewError(ErrRateLimit, "quota exceeded", err)
		}
		return "", classifyTransportError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", NewError(ErrParse, "empty response from model", nil)
	}

	return text, nil
}
