package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  STARBUCKS Coffee  ",
			want:  "starbucks coffee",
		},
		{
			name:  "strips punctuation",
			input: "AMZN*Mktp US!",
			want:  "amzn mktp us",
		},
		{
			name:  "collapses whitespace",
			input: "payroll   deposit\t\tacme",
			want:  "payroll deposit acme",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only punctuation",
			input: "***---",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestExtractCommonWords(t *testing.T) {
	t.Run("finds shared merchant token", func(t *testing.T) {
		descriptions := []string{
			"Starbucks Coffee #1234",
			"Starbucks Coffee downtown",
			"STARBUCKS store 99",
			"Grocery run",
		}

		words := ExtractCommonWords(descriptions, 0.5)
		assert.Equal(t, []string{"Starbucks"}, words)
	})

	t.Run("caps output at three words", func(t *testing.T) {
		descriptions := []string{
			"alpha beta gamma delta",
			"alpha beta gamma delta",
			"alpha beta gamma delta",
		}

		words := ExtractCommonWords(descriptions, 0.5)
		assert.Len(t, words, 3)
		assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, words)
	})

	t.Run("requires at least two occurrences", func(t *testing.T) {
		descriptions := []string{"netflix subscription"}

		words := ExtractCommonWords(descriptions, 0.5)
		assert.Empty(t, words)
	})

	t.Run("drops stopwords and short tokens", func(t *testing.T) {
		descriptions := []string{
			"payment for the gym",
			"payment for the gym",
			"payment for the gym",
		}

		words := ExtractCommonWords(descriptions, 0.5)
		assert.Equal(t, []string{"Gym"}, words)
	})

	t.Run("sorts by frequency then first-seen order", func(t *testing.T) {
		descriptions := []string{
			"uber ride airport",
			"uber ride home",
			"uber trip",
			"airport shuttle uber ride",
		}

		words := ExtractCommonWords(descriptions, 0.5)
		// uber appears 4 times, ride 3, airport 2; all clear the
		// ceil(4*0.5)=2 cutoff and sort by count.
		assert.Equal(t, []string{"Uber", "Ride", "Airport"}, words)
	})

	t.Run("counts token once per description", func(t *testing.T) {
		descriptions := []string{
			"pizza pizza pizza",
			"salad bowl",
			"soup kitchen",
		}

		words := ExtractCommonWords(descriptions, 0.5)
		assert.Empty(t, words)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, ExtractCommonWords(nil, 0.5))
	})
}
