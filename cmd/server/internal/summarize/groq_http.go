package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

const defaultCompletionTimeout = 2 * time.Minute

// GroqHTTP implements Summarizer against an OpenAI-compatible chat
// completions endpoint (Groq, OpenAI, or any proxy speaking the same
// protocol).
type GroqHTTP struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGroqHTTP creates a client for the completions API rooted at apiURL
// (e.g. "https://api.groq.com/openai/v1").
func NewGroqHTTP(apiURL, apiKey, model string) *GroqHTTP {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &GroqHTTP{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: defaultCompletionTimeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize sends the fixed instruction template with the transcript and
// parses the structured sections out of the completion.
//
// Failure classification:
//   - 429 -> UpstreamRateLimited (transient)
//   - connection errors and any other non-200 -> UpstreamError (fatal)
//   - unparseable completion -> MalformedResponse, raw payload retained
func (g *GroqHTTP) Summarize(ctx context.Context, transcript, language string) (*pipeline.AnalysisResult, error) {
	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(transcript, language)},
		},
		Temperature: 0.7,
		MaxTokens:   4000,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", g.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pipeline.NewStageError(pipeline.KindUpstreamError, "summarize",
			"completion endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, pipeline.NewStageError(pipeline.KindUpstreamRateLimited, "summarize",
			"completion endpoint rate limited", nil)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pipeline.NewStageError(pipeline.KindUpstreamError, "summarize",
			fmt.Sprintf("completion endpoint returned status %d: %s", resp.StatusCode, respBody), nil)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, pipeline.NewStageError(pipeline.KindUpstreamError, "summarize",
			"failed to parse completion envelope", err)
	}
	if len(chat.Choices) == 0 {
		return nil, pipeline.NewStageError(pipeline.KindMalformedResponse, "summarize",
			"completion contained no choices", nil)
	}

	return ParseResponse(chat.Choices[0].Message.Content)
}

// Name identifies this implementation in logs and metrics.
func (g *GroqHTTP) Name() string {
	return "groq-http"
}
