package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// anthropicClient implements the Client interface for the Anthropic API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, NewError(ErrAPINotConfigured, "Anthropic API key is required", nil)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
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

	return &anthropicClient{
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

func (c *anthropicClient) Provider() string {
	return "anthropic"
}

// Classify sends a classification request to Anthropic.
func (c *anthropicClient) Classify(ctx context.Context, req ClassifyRequest) (ClassificationResult, error) {
	system := "You are a financial transaction classifier. Respond with ONLY a valid JSON object of the form " +
		`{"category": "...", "confidence": 0.0, "reasoning": "..."}.`

	content, err := c.complete(ctx, system, buildClassifyPrompt(req))
	if err != nil {
		return ClassificationResult{}, err
	}

	return ParseClassification(content)
}

// Summarize sends a batch summarization request to Anthropic.
func (c *anthropicClient) Summarize(ctx context.Context, req SummaryRequest) (SummaryResult, error) {
	system := "You summarize groups of financial transactions. Respond with ONLY a valid JSON object of the form " +
		`{"summary": "...", "insights": ["..."]}. The summary must be at most eight words.`

	content, err := c.complete(ctx, system, buildSummaryPrompt(req))
	if err != nil {
		return SummaryResult{}, err
	}

	return ParseSummary(content)
}

func (c *anthropicClient) complete(ctx context.Context, system, prompt string) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", NewError(ErrParse, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicEndpoint, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", NewError(ErrConnection, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

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
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", NewError(ErrParse, "failed to parse message response", err)
	}

	if len(response.Content) == 0 {
		return "", NewError(ErrParse, "no content in response", nil)
	}

	return response.Content[0].Text, nil
}
