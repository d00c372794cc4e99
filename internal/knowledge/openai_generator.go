package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	noAnalysis            = "No analysis available."
)

// OpenAIGenerator answers one analysis prompt per chat completion.
type OpenAIGenerator struct {
	client        *http.Client
	apiKey        string
	model         string
	endpoint      string
	promptBuilder *PromptBuilder
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest always carries two messages: the system instruction and the
// rendered context prompt.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatReply struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// StatusError is a non-2xx answer from the completions endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai chat request failed (%d): %s", e.StatusCode, e.Body)
}

// NewOpenAIGenerator targets an OpenAI-compatible chat completions endpoint.
// baseURL may be a full endpoint, a /v1 prefix or a bare host.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:        &http.Client{Timeout: 90 * time.Second},
		apiKey:        strings.TrimSpace(apiKey),
		model:         strings.TrimSpace(model),
		endpoint:      completionsEndpoint(baseURL),
		promptBuilder: &PromptBuilder{},
	}
}

func completionsEndpoint(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case base == "":
		return defaultOpenAIEndpoint
	case strings.HasSuffix(base, "/chat/completions"):
		return base
	case strings.HasSuffix(base, "/v1"):
		return base + "/chat/completions"
	default:
		return base + "/v1/chat/completions"
	}
}

// Generate sends prompt as the user message under the system instruction and
// returns the first choice with any enclosing code fence removed.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("openai api key is required")
	}
	if g.model == "" {
		return "", errors.New("openai model is required")
	}

	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: g.promptBuilder.SystemInstruction()},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	reply, err := g.complete(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return noAnalysis, nil
	}
	return cleanReply(reply.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, payload []byte) (*chatReply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode chat reply: %w", err)
	}
	return &reply, nil
}

// cleanReply trims a model answer and unwraps it when the whole answer is a
// single fenced block. An empty answer becomes the no-analysis notice.
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return noAnalysis
	}
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || strings.Count(text, "```") != 2 {
		return text
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	// Drop an info string such as "python" or "markdown".
	if first, rest, ok := strings.Cut(inner, "\n"); ok && first != "" && !strings.ContainsAny(first, " \t():=") {
		inner = rest
	}
	return strings.TrimSpace(inner)
}
