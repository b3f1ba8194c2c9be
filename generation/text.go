package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nathoo/jianghu/types"
)

var (
	// ErrGenerationFailed wraps every text or image generation failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("empty response")
)

// CompletionRequest is one text completion call.
type CompletionRequest struct {
	System    string
	Turns     []types.Turn
	MaxTokens int
	User      string // session ID, forwarded to the provider
}

// TextClient produces a single completion. Implementations make exactly one
// attempt.
type TextClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TextConfig configures OpenAIText.
type TextConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIText is a TextClient for any OpenAI-compatible chat endpoint.
type OpenAIText struct {
	client *openai.Client
	model  string
	log    *zap.Logger
}

// NewOpenAIText builds a client from cfg.
func NewOpenAIText(cfg TextConfig, log *zap.Logger) *OpenAIText {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIText{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		log:    log.Named("openai"),
	}
}

// Complete sends the system prompt and turns and returns the first text
// segment of the first choice.
func (c *OpenAIText) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.System) == "" {
		return "", fmt.Errorf("%w: system prompt is empty", ErrGenerationFailed)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.System,
	})
	for _, t := range req.Turns {
		role := openai.ChatMessageRoleAssistant
		if t.Role == "user" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		User:      req.User,
	})
	if err != nil {
		c.log.Warn("chat completion failed",
			zap.String("model", c.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ErrEmptyResponse)
	}

	c.log.Debug("chat completion",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return text, nil
}

func firstText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content
	}
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			return part.Text
		}
	}
	return ""
}
