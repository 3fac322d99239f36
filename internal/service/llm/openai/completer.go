// Package openai provides an llm.Completer backed by an OpenAI-compatible
// chat completions API. Gemini is reached through its OpenAI-compatible
// endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"clinical-speech-translator/internal/service/llm"
)

// Config holds completer settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Completer implements llm.Completer.
type Completer struct {
	client *goopenai.Client
	model  string
}

// New creates a completer. An empty API key is not rejected here; the
// provider refuses the call instead.
func New(cfg Config) *Completer {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Completer{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Complete sends req.Prompt as a single user message.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty completion", req.Stage)
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	if strings.Contains(err.Error(), "429") {
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	}
	return err
}
