package suggest

import (
	"strings"
	"sync"

	"github.com/jbrukh/bayesian"

	"github.com/kwestin/tally/internal/service"
	"github.com/kwestin/tally/internal/textutil"
)

// localClassifier is the statistical fallback: a naive-Bayes text
// classifier trained on historical (description, category) pairs.
type localClassifier struct {
	classifier *bayesian.Classifier
	classes    []bayesian.Class
	mu         sync.RWMutex
}

func newLocalClassifier() *localClassifier {
	return &localClassifier{}
}

// Trained reports whether the classifier has a usable model.
func (l *localClassifier) Trained() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classifier != nil
}

// Train builds the model from classification history. The bayesian library
// needs at least two classes; with fewer the classifier stays untrained.
func (l *localClassifier) Train(examples []service.ClassificationExample) {
	byCategory := make(map[string][]string)
	for _, ex := range examples {
		if ex.CategoryID == "" {
			continue
		}
		normalized := textutil.Normalize(ex.Description)
		if normalized == "" {
			continue
		}
		byCategory[ex.CategoryID] = append(byCategory[ex.CategoryID], normalized)
	}

	if len(byCategory) < 2 {
		return
	}

	classes := make([]bayesian.Class, 0, len(byCategory))
	for categoryID := range byCategory {
		classes = append(classes, bayesian.Class(categoryID))
	}

	classifier := bayesian.NewClassifier(classes...)
	for categoryID, descriptions := range byCategory {
		for _, desc := range descriptions {
			classifier.Learn(strings.Fields(desc), bayesian.Class(categoryID))
		}
	}

	l.mu.Lock()
	l.classifier = classifier
	l.classes = classes
	l.mu.Unlock()
}

// Suggest returns the top-scoring category id and its probability for a
// description, considering only classes the allow filter accepts. A nil
// filter accepts everything. ok is false when the classifier is
// untrained, the description yields no usable tokens, or no allowed
// class remains.
func (l *localClassifier) Suggest(description string, allow func(categoryID string) bool) (string, float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.classifier == nil {
		return "", 0, false
	}

	tokens := strings.Fields(textutil.Normalize(description))
	if len(tokens) == 0 {
		return "", 0, false
	}

	scores, _, _ := l.classifier.ProbScores(tokens)
	best := -1
	for i, class := range l.classes {
		if allow != nil && !allow(string(class)) {
			continue
		}
		if best < 0 || scores[i] > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return "", 0, false
	}

	return string(l.classes[best]), scores[best], true
}
