// Package textutil provides text normalization and common-term extraction
// for transaction descriptions.
package textutil

import (
	"math"
	"strings"
	"unicode"
)

// stopwords are tokens that carry no grouping signal: articles, prepositions,
// and finance-generic nouns that appear in almost every description.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "from": {}, "with": {}, "into": {},
	"onto": {}, "via": {}, "per": {}, "off": {}, "out": {}, "over": {},
	"under": {}, "your": {}, "our": {}, "their": {},
	"payment": {}, "purchase": {}, "transaction": {}, "fee": {},
	"charge": {}, "paid": {}, "bill": {}, "invoice": {}, "order": {},
	"online": {}, "card": {}, "debit": {}, "credit": {}, "transfer": {},
	"pos": {}, "ach": {}, "ref": {}, "www": {}, "com": {},
}

// Normalize lowercases, trims, and strips punctuation from text, collapsing
// runs of whitespace to a single space.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// ExtractCommonWords returns up to three display-capitalized tokens shared
// across the given descriptions. A token qualifies when it appears in at
// least max(2, ceil(N*threshold)) descriptions, where N is the number of
// descriptions. Ties between equal counts keep first-seen order, so output
// is deterministic for a fixed input order.
func ExtractCommonWords(descriptions []string, threshold float64) []string {
	if len(descriptions) == 0 {
		return nil
	}
	if threshold <= 0 {
		threshold = 0.5
	}

	counts := make(map[string]int)
	var order []string

	for _, desc := range descriptions {
		seen := make(map[string]struct{})
		for _, token := range strings.Fields(Normalize(desc)) {
			if len(token) <= 2 {
				continue
			}
			if _, stop := stopwords[token]; stop {
				continue
			}
			// Count each token once per description.
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}

			if _, known := counts[token]; !known {
				order = append(order, token)
			}
			counts[token]++
		}
	}

	minCount := int(math.Ceil(float64(len(descriptions)) * threshold))
	if minCount < 2 {
		minCount = 2
	}

	var qualified []string
	for _, token := range order {
		if counts[token] >= minCount {
			qualified = append(qualified, token)
		}
	}

	// Stable sort by descending count; insertion order breaks ties.
	for i := 1; i < len(qualified); i++ {
		for j := i; j > 0 && counts[qualified[j]] > counts[qualified[j-1]]; j-- {
			qualified[j], qualified[j-1] = qualified[j-1], qualified[j]
		}
	}

	if len(qualified) > 3 {
		qualified = qualified[:3]
	}

	result := make([]string, len(qualified))
	for i, token := range qualified {
		result[i] = Capitalize(token)
	}
	return result
}

// Capitalize upper-cases the first letter of a token for display.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
