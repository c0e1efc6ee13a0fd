package suggest

import (
	"strings"

	"github.com/kwestin/tally/internal/model"
	"github.com/kwestin/tally/internal/textutil"
)

// MatchCategory reconciles a free-text category name from the remote
// classifier against the caller's category list. The remote side is not
// constrained to emit known ids, so matching runs in tiers: exact
// case-insensitive name and type match, then substring containment scaled
// by length ratio, then token overlap scaled by overlap ratio. Returns the
// matched category id and a match confidence, or ("", 0) when nothing fits.
func MatchCategory(name string, txType model.TransactionType, categories []model.Category) (string, float64) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", 0
	}

	wantType := model.CategoryTypeExpense
	if txType == model.TypeIncome {
		wantType = model.CategoryTypeIncome
	}

	normalized := textutil.Normalize(name)

	// Tier 1: exact name and type match.
	for _, cat := range categories {
		if cat.Type == wantType && strings.EqualFold(cat.Name, name) {
			return cat.ID, 1.0
		}
	}

	// Tier 2: substring containment, scaled by length ratio into [0.7, 1.0].
	bestID := ""
	bestScore := 0.0
	for _, cat := range categories {
		if cat.Type != wantType {
			continue
		}
		catNorm := textutil.Normalize(cat.Name)
		if catNorm == "" {
			continue
		}

		var shorter, longer string
		if len(catNorm) < len(normalized) {
			shorter, longer = catNorm, normalized
		} else {
			shorter, longer = normalized, catNorm
		}
		if strings.Contains(longer, shorter) {
			ratio := float64(len(shorter)) / float64(len(longer))
			score := 0.7 + 0.3*ratio
			if score > bestScore {
				bestID, bestScore = cat.ID, score
			}
		}
	}
	if bestID != "" {
		return bestID, bestScore
	}

	// Tier 3: token overlap, scaled by overlap ratio into [0.5, 0.9].
	nameTokens := tokenSet(normalized)
	if len(nameTokens) == 0 {
		return "", 0
	}
	for _, cat := range categories {
		if cat.Type != wantType {
			continue
		}
		catTokens := tokenSet(textutil.Normalize(cat.Name))
		if len(catTokens) == 0 {
			continue
		}

		overlap := 0
		for token := range nameTokens {
			if _, ok := catTokens[token]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		denom := len(nameTokens)
		if len(catTokens) > denom {
			denom = len(catTokens)
		}
		ratio := float64(overlap) / float64(denom)
		score := 0.5 + 0.4*ratio
		if score > bestScore {
			bestID, bestScore = cat.ID, score
		}
	}

	return bestID, bestScore
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}
