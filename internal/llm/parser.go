package llm

import (
	"encoding/json"
	"strings"
)

// rawClassification mirrors the object shape providers are asked to emit.
type rawClassification struct {
	Category   string  `json:"category"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// ParseClassification normalizes the classification payload shapes observed
// from providers: a bare object, a bare array, an object wrapping an array
// under "classifications", and flattened indexed fields ("category_0",
// "confidence_0"). The first classification wins when several are present.
func ParseClassification(content string) (ClassificationResult, error) {
	content = stripCodeFence(content)

	// Shape 1: single object.
	var obj rawClassification
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj.Category != "" {
		return normalizeResult(obj), nil
	}

	// Shape 2: bare array.
	var arr []rawClassification
	if err := json.Unmarshal([]byte(content), &arr); err == nil && len(arr) > 0 && arr[0].Category != "" {
		return normalizeResult(arr[0]), nil
	}

	// Shape 3: object wrapping an array.
	var wrapped struct {
		Classifications []rawClassification `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil &&
		len(wrapped.Classifications) > 0 && wrapped.Classifications[0].Category != "" {
		return normalizeResult(wrapped.Classifications[0]), nil
	}

	// Shape 4: flattened indexed fields.
	var flat map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &flat); err == nil {
		if raw, ok := flat["category_0"]; ok {
			var indexed rawClassification
			_ = json.Unmarshal(raw, &indexed.Category)
			if raw, ok := flat["confidence_0"]; ok {
				_ = json.Unmarshal(raw, &indexed.Confidence)
			}
			if raw, ok := flat["reasoning_0"]; ok {
				_ = json.Unmarshal(raw, &indexed.Reasoning)
			}
			if indexed.Category != "" {
				return normalizeResult(indexed), nil
			}
		}
	}

	return ClassificationResult{}, NewError(ErrParse, "unrecognized classification response shape", nil)
}

// ParseSummary normalizes the summarization payload.
func ParseSummary(content string) (SummaryResult, error) {
	content = stripCodeFence(content)

	var resp struct {
		Summary  string   `json:"summary"`
		Insights []string `json:"insights"`
	}
	if err := json.Unmarshal([]byte(content), &resp); err != nil || resp.Summary == "" {
		return SummaryResult{}, NewError(ErrParse, "unrecognized summary response shape", err)
	}

	return SummaryResult{Summary: resp.Summary, Insights: resp.Insights}, nil
}

func normalizeResult(raw rawClassification) ClassificationResult {
	confidence := raw.Confidence
	if confidence > 1.0 {
		// Some providers report percentages.
		confidence /= 100.0
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ClassificationResult{
		Category:   strings.TrimSpace(raw.Category),
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(raw.Reasoning),
	}
}

// stripCodeFence removes markdown code fences providers sometimes wrap
// around JSON.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
