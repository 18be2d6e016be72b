package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"nil content", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{}},
		}, ""},
		{"single part", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("  {\"case\":\"pass\"}\n")}},
			}},
		}, `{"case":"pass"}`},
		{"split parts", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"case":`), genai.Text(`"pass"}`)}},
			}},
		}, `{"case":"pass"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewClientDefaultsNonPositiveRetries(t *testing.T) {
	for _, retries := range []int{0, -1} {
		c, err := NewClient(Config{APIKey: "test-key", MaxRetries: retries}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 3, c.GetModelInfo()["max_retries"])
		assert.Equal(t, DefaultModel, c.GetModelInfo()["model"])
		c.Close()
	}
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"case", "category", "note"}, s.Required)
	assert.Len(t, s.Properties["category"].Enum, 6)
}
