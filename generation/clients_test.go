package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nathoo/jianghu/types"
)

func TestFalImages_Generate(t *testing.T) {
	var got falRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Key secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":[{"url":"https://fal.media/1.png"}]}`))
	}))
	defer srv.Close()

	f := NewFalImages(FalConfig{URL: srv.URL, Key: "secret", Timeout: time.Second}, zap.NewNop())
	url, err := f.Generate(context.Background(), "a prompt", Portrait43)

	require.NoError(t, err)
	assert.Equal(t, "https://fal.media/1.png", url)
	assert.Equal(t, "a prompt", got.Prompt)
	assert.Equal(t, Portrait43, got.ImageSize)
	assert.Equal(t, 4, got.NumInferenceSteps)
	assert.Equal(t, 1, got.NumImages)
}

func TestFalImages_Accepts2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"images":[{"url":"https://fal.media/2.png"}]}`))
	}))
	defer srv.Close()

	f := NewFalImages(FalConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	url, err := f.Generate(context.Background(), "p", SquareHD)

	require.NoError(t, err)
	assert.Equal(t, "https://fal.media/2.png", url)
}

func TestFalImages_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"detail":"overloaded"}`},
		{"not modified", http.StatusNotModified, `{"images":[{"url":"https://fal.media/1.png"}]}`},
		{"no images", http.StatusOK, `{"images":[]}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := NewFalImages(FalConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
			_, err := f.Generate(context.Background(), "p", Landscape169)
			assert.ErrorIs(t, err, ErrGenerationFailed)
		})
	}
}

func TestOpenAIText_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "The snow remembers."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIText(TextConfig{APIKey: "key", BaseURL: srv.URL, Model: "test-model", Timeout: time.Second}, zap.NewNop())
	text, err := c.Complete(context.Background(), CompletionRequest{
		System:    "system",
		Turns:     []types.Turn{{Role: "assistant", Text: "a"}, {Role: "user", Text: "b"}},
		MaxTokens: 300,
		User:      "sess",
	})

	require.NoError(t, err)
	assert.Equal(t, "The snow remembers.", text)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.Equal(t, "sess", got.User)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[2].Role)
}

func TestOpenAIText_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIText(TextConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	_, err := c.Complete(context.Background(), CompletionRequest{System: "s"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIText_EmptySystemPrompt(t *testing.T) {
	c := NewOpenAIText(TextConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := c.Complete(context.Background(), CompletionRequest{System: "  "})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestFirstText_MultiContent(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeImageURL},
					{Type: openai.ChatMessagePartTypeText, Text: "first text"},
					{Type: openai.ChatMessagePartTypeText, Text: "second"},
				},
			},
		}},
	}
	assert.Equal(t, "first text", firstText(resp))
	assert.Equal(t, "", firstText(openai.ChatCompletionResponse{}))
}

func TestBuildImagePrompt(t *testing.T) {
	tests := []struct {
		kind     ImageKind
		contains string
	}{
		{KindLandscape, "wide landscape shot, misty pass"},
		{KindCharacter, "character portrait, misty pass"},
		{KindCombat, "dynamic action scene, misty pass"},
		{KindMeditation, "abstract spiritual scene, misty pass"},
		{KindPanel, "manga panel composition, misty pass"},
	}
	for _, tt := range tests {
		p := BuildImagePrompt(tt.kind, "misty pass")
		assert.Contains(t, p, tt.contains)
		assert.True(t, len(p) > len(BaseStylePrompt))
	}
	assert.Equal(t, BaseStylePrompt+", misty pass", BuildImagePrompt("unknown", "misty pass"))
}

func TestAspectForPanel(t *testing.T) {
	assert.Equal(t, Landscape169, AspectForPanel("full"))
	assert.Equal(t, Landscape169, AspectForPanel("wide"))
	assert.Equal(t, Landscape169, AspectForPanel(""))
	assert.Equal(t, SquareHD, AspectForPanel("half"))
	assert.Equal(t, Portrait43, AspectForPanel("third"))
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	assert.Equal(t, ThemeAnger, c.Classify("Your FURY is a blade."))
	assert.Equal(t, ThemeSorrow, c.Classify("tears fall on the snow"))
	assert.Equal(t, ThemeAnger, c.Classify("grief turned to rage"), "earlier rules win")
	assert.Equal(t, ThemeDetermination, c.Classify("breathe"))
}

func TestMeditationPrompt_Defaults(t *testing.T) {
	p := MeditationPrompt(MeditationRequest{Traits: types.PlayerTraits{Aggression: 5}})
	assert.Contains(t, p, "Technique being cultivated: Basic qi sensing")
	assert.Contains(t, p, "Current bottleneck: The trauma of the past blocks your inner peace")
	assert.Contains(t, p, "Player's martial path so far: []")
	assert.Contains(t, p, `"aggression":5`)
}
