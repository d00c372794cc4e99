package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerator_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + "```def foo():\\n    pass```" + `"}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator("secret", "test-model", srv.URL)
	out, err := gen.Generate(context.Background(), "function_name: foo\n")
	require.NoError(t, err)

	assert.Equal(t, "def foo():\n    pass", out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "SECURITY WARNING")
	assert.Equal(t, "function_name: foo\n", got.Messages[1].Content)
}

func TestOpenAIGenerator_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAIGenerator("secret", "m", srv.URL+"/v1").Generate(context.Background(), "p")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Contains(t, err.Error(), "401")

	_, err = NewOpenAIGenerator("", "m", srv.URL).Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestOpenAIGenerator_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAIGenerator("secret", "m", srv.URL+"/v1/chat/completions").Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, noAnalysis, out)
}

func TestCompletionsEndpoint(t *testing.T) {
	assert.Equal(t, defaultOpenAIEndpoint, completionsEndpoint(" "))
	assert.Equal(t, "http://h/v1/chat/completions", completionsEndpoint("http://h/"))
	assert.Equal(t, "http://h/v1/chat/completions", completionsEndpoint("http://h/v1"))
	assert.Equal(t, "http://h/x/chat/completions", completionsEndpoint("http://h/x/chat/completions"))
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	_, err := NewGenerator(ctx, GeneratorOptions{Provider: "openai"})
	assert.Error(t, err, "missing key")

	g, err := NewGenerator(ctx, GeneratorOptions{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)

	_, err = NewGenerator(ctx, GeneratorOptions{Provider: "unknown", APIKey: "k"})
	assert.Error(t, err)
}

func TestPromptBuilder(t *testing.T) {
	pb := &PromptBuilder{}
	out := pb.BuildAnalysisPrompt("function_name: foo\n")
	assert.True(t, strings.HasPrefix(out, "Role:"))
	assert.True(t, strings.HasSuffix(out, "function_name: foo\n"))
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "text", cleanReply("```markdown\ntext\n```"))
	assert.Equal(t, "a = 1", cleanReply("```python\na = 1\n```"))
	assert.Equal(t, "x = 1", cleanReply("  x = 1  "))
	assert.Equal(t, noAnalysis, cleanReply(" \n "))
	keep := "```py\na\n```\nthen\n```py\nb\n```"
	assert.Equal(t, keep, cleanReply(keep))
}
