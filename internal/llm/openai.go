package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// openAIClient implements the Client interface for the OpenAI API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewError(ErrAPINotConfigured, "OpenAI API key is required", nil)
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func (c *openAIClient) Provider() string {
	return "openai"
}

// Classify sends a classification request to OpenAI.
func (c *openAIClient) Classify(ctx context.Context, req ClassifyRequest) (ClassificationResult, error) {
	system := "You are a financial transaction classifier. You MUST respond with ONLY a valid JSON object of the form " +
		`{"category": "...", "confidence": 0.0, "reasoning": "..."}. ` +
		"Do not include any text before or after the JSON."

	content, err := c.complete(ctx, system, buildClassifyPrompt(req))
	if err != nil {
		return ClassificationResult{}, err
	}

	return ParseClassification(content)
}

// Summarize sends a batch summarization request to OpenAI.
func (c *openAIClient) Summarize(ctx context.Context, req SummaryRequest) (SummaryResult, error) {
	system := "You summarize groups of financial transactions. Respond with ONLY a valid JSON object of the form " +
		`{"summary": "...", "insights": ["..."]}. ` +
		"The summary must be at most eight words."

	content, err := c.complete(ctx, system, buildSummaryPrompt(req))
	if err != nil {
		return SummaryResult{}, err
	}

	return ParseSummary(content)
}

// complete performs one chat completion round trip.
func (c *openAIClient) complete(ctx context.Context, system, prompt string) (string, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", NewError(ErrParse, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", NewError(ErrConnection, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(ErrConnection, "failed to read response", err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", NewError(ErrParse, "failed to parse completion response", err)
	}

	if len(response.Choices) == 0 {
		return "", NewError(ErrParse, "no completion choices returned", nil)
	}

	return response.Choices[0].Message.Content, nil
}

// classifyStatus converts non-200 HTTP statuses into tagged errors.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return NewError(ErrRateLimit, "rate limit exceeded", nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(ErrAPINotConfigured, "authentication failed", nil)
	case strings.Contains(strings.ToLower(string(body)), "quota"):
		return NewError(ErrRateLimit, "quota exceeded", nil)
	default:
		return NewError(ErrConnection, fmt.Sprintf("API error (status %d)", status), nil)
	}
}

// buildClassifyPrompt creates the prompt for transaction classification.
func buildClassifyPrompt(req ClassifyRequest) string {
	var categoryList strings.Builder
	for _, cat := range req.Categories {
		if cat.Description != "" {
			fmt.Fprintf(&categoryList, "- %s: %s\n", cat.Name, cat.Description)
		} else {
			fmt.Fprintf(&categoryList, "- %s\n", cat.Name)
		}
	}

	details := fmt.Sprintf("Description: %s\nType: %s", req.Description, req.Type)
	if req.Amount != nil {
		details += fmt.Sprintf("\nAmount: %s", req.Amount.StringFixed(2))
	}

	return fmt.Sprintf(`Classify this financial transaction into the most appropriate category based solely on the transaction details.

IMPORTANT GUIDELINES:
- Base your classification purely on what the transaction IS, not assumptions about its purpose
- Prefer an existing category whenever one plausibly fits
- Confidence must reflect how certain the match is, between 0.0 and 1.0

Existing Categories:
%s
Transaction Details:
%s`, categoryList.String(), details)
}

// buildSummaryPrompt creates the prompt for batch summarization.
func buildSummaryPrompt(req SummaryRequest) string {
	samples := req.Descriptions
	if len(samples) > 20 {
		samples = samples[:20]
	}

	var lines strings.Builder
	for _, desc := range samples {
		fmt.Fprintf(&lines, "- %s\n", desc)
	}

	return fmt.Sprintf(`Summarize this group of %d financial transactions in at most eight words, and provide up to five short factual insights.

Sample descriptions:
%s
Income total: %s
Expense total: %s`,
		req.Statistics.TotalCount,
		lines.String(),
		req.Statistics.TotalIncome.StringFixed(2),
		req.Statistics.TotalExpense.StringFixed(2))
}
