// Package generation is the gateway to the text and image generation
// services. It owns the prompt templates, the meditation theme classifier,
// and the placeholder fallback for images. Every call is a single attempt.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/types"
)

// DefaultPlaceholder is returned when an image cannot be generated.
const DefaultPlaceholder = "/images/placeholder.png"

// Meditation reply choices.
var meditationChoices = []types.ChoiceOption{
	{ID: "accept", Text: "Accept this truth and let it guide your qi."},
	{ID: "resist", Text: "No. There must be another way."},
	{ID: "question", Text: "But what does this mean for my path?"},
}

// MeditationRequest is the context for one meditation turn.
type MeditationRequest struct {
	SessionID    string
	Technique    string
	Bottleneck   string
	Techniques   []types.Technique
	Traits       types.PlayerTraits
	History      []types.Turn
	PlayerChoice string // empty for the opening turn
}

// MeditationReply is the generated meditation turn.
type MeditationReply struct {
	Text         string
	Choices      []types.ChoiceOption
	Theme        string
	Breakthrough bool
}

// DialogueRequest is the context for one NPC reply.
type DialogueRequest struct {
	SessionID    string
	NPCID        string
	Character    types.CharacterProfile
	Relationship int
	History      []types.ConversationEntry
	Context      string
	PlayerInput  string
}

// Options tunes the gateway.
type Options struct {
	Placeholder         string
	MeditationMaxTokens int
	DialogueMaxTokens   int
	MinExchanges        int // history length at which a reply is a breakthrough
	Classifier          ThemeClassifier
}

// Gateway implements image generation, meditation and NPC dialogue on top
// of a TextClient and an ImageClient. Either client may be nil, in which
// case its calls fail and callers fall back.
type Gateway struct {
	text       TextClient
	images     ImageClient
	classifier ThemeClassifier
	opts       Options
	log        *zap.Logger
	metrics    *Metrics
}

// NewGateway creates a gateway. Zero option values take the defaults.
func NewGateway(text TextClient, images ImageClient, opts Options, log *zap.Logger, metrics *Metrics) *Gateway {
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	if opts.MeditationMaxTokens == 0 {
		opts.MeditationMaxTokens = 300
	}
	if opts.DialogueMaxTokens == 0 {
		opts.DialogueMaxTokens = 500
	}
	if opts.MinExchanges == 0 {
		opts.MinExchanges = 3
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		text:       text,
		images:     images,
		classifier: classifier,
		opts:       opts,
		log:        log.Named("gateway"),
		metrics:    metrics,
	}
}

// GenerateImage wraps description in the template for kind and returns an
// image URL. It never fails: any error yields the placeholder.
func (g *Gateway) GenerateImage(ctx context.Context, kind ImageKind, description string, aspect AspectRatio) string {
	prompt := BuildImagePrompt(kind, description)

	start := time.Now()
	url, err := g.generate(ctx, prompt, aspect)
	g.metrics.observe("image", start, err)
	if err != nil {
		g.log.Warn("image generation failed, using placeholder",
			zap.String("kind", string(kind)),
			zap.String("aspect", string(aspect)),
			zap.Error(err))
		return g.opts.Placeholder
	}
	return url
}

func (g *Gateway) generate(ctx context.Context, prompt string, aspect AspectRatio) (string, error) {
	if g.images == nil {
		return "", fmt.Errorf("%w: image client not configured", ErrGenerationFailed)
	}
	return g.images.Generate(ctx, prompt, aspect)
}

// Meditate generates the next meditation turn. The reply is a breakthrough
// once the prior history holds MinExchanges turns.
func (g *Gateway) Meditate(ctx context.Context, req MeditationRequest) (MeditationReply, error) {
	turns := append([]types.Turn(nil), req.History...)
	if req.PlayerChoice != "" {
		turns = append(turns, types.Turn{Role: "user", Text: req.PlayerChoice})
	}
	if len(turns) == 0 {
		turns = []types.Turn{{Role: "user", Text: BeginMeditation}}
	}

	text, err := g.complete(ctx, "meditation", CompletionRequest{
		System:    MeditationPrompt(req),
		Turns:     turns,
		MaxTokens: g.opts.MeditationMaxTokens,
		User:      req.SessionID,
	})
	if err != nil {
		return MeditationReply{}, err
	}

	return MeditationReply{
		Text:         text,
		Choices:      append([]types.ChoiceOption(nil), meditationChoices...),
		Theme:        g.classifier.Classify(text),
		Breakthrough: len(req.History) >= g.opts.MinExchanges,
	}, nil
}

// Converse generates an NPC reply to the player's input.
func (g *Gateway) Converse(ctx context.Context, req DialogueRequest) (string, error) {
	var turns []types.Turn
	for _, e := range req.History {
		if e.NPCID != req.NPCID {
			continue
		}
		role := "assistant"
		if e.Speaker == types.SpeakerPlayer {
			role = "user"
		}
		turns = append(turns, types.Turn{Role: role, Text: e.Text})
	}
	turns = append(turns, types.Turn{Role: "user", Text: req.PlayerInput})

	return g.complete(ctx, "dialogue", CompletionRequest{
		System:    NPCPrompt(req),
		Turns:     turns,
		MaxTokens: g.opts.DialogueMaxTokens,
		User:      req.SessionID,
	})
}

func (g *Gateway) complete(ctx context.Context, kind string, req CompletionRequest) (string, error) {
	start := time.Now()
	var (
		text string
		err  error
	)
	if g.text == nil {
		err = fmt.Errorf("%w: text client not configured", ErrGenerationFailed)
	} else {
		text, err = g.text.Complete(ctx, req)
	}
	g.metrics.observe(kind, start, err)
	if err != nil {
		g.log.Warn("text generation failed",
			zap.String("kind", kind),
			zap.String("session_id", req.User),
			zap.Error(err))
		return "", err
	}
	return text, nil
}
