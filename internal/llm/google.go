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

// DefaultGoogleBaseURL is the Gemini REST endpoint.
const DefaultGoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleGenerator calls the Gemini generateContent API.
type GoogleGenerator struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewGoogle returns a Gemini generator. Empty baseURL and model select the
// public endpoint and gemini-2.5-flash.
func NewGoogle(apiKey, baseURL, modelName string, client *http.Client) *GoogleGenerator {
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleGenerator{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   strings.TrimPrefix(modelName, "models/"),
		client:  client,
	}
}

// Name implements Generator.
func (g *GoogleGenerator) Name() string { return "google" }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	CandidateCount  int     `json:"candidateCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate implements Generator.
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string, contextEvents []*model.Event, opts Options) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: BuildPrompt(prompt, contextEvents, opts)}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
			CandidateCount:  1,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Kind: KindMalformed, Provider: g.Name(), Msg: "encode request", Err: err}
	}

	apiURL := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: g.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: g.Name(), Msg: friendlyProviderError(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Provider: g.Name(), Msg: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: KindUnavailable, Provider: g.Name(), Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, parseProviderError(resp.StatusCode, data))}
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &Error{Kind: KindMalformed, Provider: g.Name(), Msg: "decode response", Err: err}
	}
	if len(out.Candidates) == 0 {
		return "", &Error{Kind: KindMalformed, Provider: g.Name(), Msg: "response has no candidates"}
	}

	cand := out.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())

	if cand.FinishReason == "MAX_TOKENS" {
		return "", &Error{Kind: KindTruncated, Provider: g.Name(), Msg: "output hit MAX_TOKENS", Partial: text}
	}
	if text == "" {
		return "", &Error{Kind: KindMalformed, Provider: g.Name(), Msg: fmt.Sprintf("empty candidate (finishReason %q)", cand.FinishReason)}
	}
	return text, nil
}
