package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/medbuddy/internal/model"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint
// (OpenAI, Ollama, vLLM, ...).
type OpenAIGenerator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI returns a generator for the chat completions API at baseURL.
func NewOpenAI(baseURL, apiKey, modelName string, client *http.Client) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAIGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client:  client,
	}
}

// Name implements Generator.
func (o *OpenAIGenerator) Name() string { return "openai" }

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

// Generate implements Generator.
func (o *OpenAIGenerator) Generate(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error) {
	reqBody := oaiRequest{
		Model:       o.model,
		Messages:    []oaiMessage{{Role: "user", Content: BuildPrompt(prompt, contextEvents, opts)}},
		MaxTokens:   opts.MaxOutputTokens,
		Temperature: opts.Temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: KindMalformed, Provider: o.Name(), Msg: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Msg: friendlyProviderError(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Msg: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindUnavailable, Provider: o.Name(), Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, parseProviderError(resp.StatusCode, data))}
	}

	var out oaiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &Error{Kind: KindMalformed, Provider: o.Name(), Msg: "decode response", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Provider: o.Name(), Msg: "response has no choices"}
	}

	choice := out.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if choice.FinishReason == "length" {
		return "", &Error{Kind: KindTruncated, Provider: o.Name(), Msg: "output hit max_tokens", Partial: text}
	}
	if text == "" {
		return "", &Error{Kind: KindMalformed, Provider: o.Name(), Msg: "empty message"}
	}
	return text, nil
}
