package vision

import (
	"testing"

	"github.com/raine/telegram-recipe-bot/internal/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeminiConcepts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []recipe.Concept
	}{
		{
			name: "plain json",
			text: `{"concepts": [{"name": "tomato", "value": 0.97}]}`,
			want: []recipe.Concept{{Name: "tomato", Confidence: 0.97}},
		},
		{
			name: "markdown fence",
			text: "```json\n{\"concepts\": [{\"name\": \"egg\", \"value\": 0.9}, {\"name\": \"bacon\", \"value\": 0.7}]}\n```",
			want: []recipe.Concept{{Name: "egg", Confidence: 0.9}, {Name: "bacon", Confidence: 0.7}},
		},
		{
			name: "no concepts",
			text: `{"concepts": []}`,
			want: []recipe.Concept{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGeminiConcepts(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGeminiConcepts_Invalid(t *testing.T) {
	_, err := parseGeminiConcepts("I see a tomato")
	assert.Error(t, err)

	_, err = parseGeminiConcepts(`{"concepts": "tomato"}`)
	assert.Error(t, err)
}
