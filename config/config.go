// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/nathoo/jianghu/engine"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/logger"
)

// Config is the full application configuration.
type Config struct {
	AppEnv  string `env:"APP_ENV" env-default:"development"`
	Logger  logger.Config
	LLM     LLMConfig
	Image   ImageConfig
	Pacing  PacingConfig
	RNGSeed int64 `env:"RNG_SEED" env-default:"0"` // 0: seed from crypto/rand

	StartScene  string `env:"START_SCENE" env-default:"cold_open"`
	ContentDir  string `env:"CONTENT_DIR"` // empty: embedded prologue
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LLMConfig configures the text completion endpoint.
type LLMConfig struct {
	APIKey              string `env:"LLM_API_KEY"`
	BaseURL             string `env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model               string `env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	TimeoutSec          int    `env:"LLM_TIMEOUT_SEC" env-default:"60"`
	MeditationMaxTokens int    `env:"LLM_MEDITATION_MAX_TOKENS" env-default:"300"`
	DialogueMaxTokens   int    `env:"LLM_DIALOGUE_MAX_TOKENS" env-default:"500"`
}

// ImageConfig configures the image synthesis endpoint.
type ImageConfig struct {
	Key         string `env:"FAL_KEY"`
	URL         string `env:"FAL_URL" env-default:"https://fal.run/fal-ai/flux/schnell"`
	TimeoutSec  int    `env:"FAL_TIMEOUT_SEC" env-default:"120"`
	Placeholder string `env:"IMAGE_PLACEHOLDER" env-default:"/images/placeholder.png"`
}

// PacingConfig holds the sub-mode delays and meditation bounds.
type PacingConfig struct {
	MeditationBegin        time.Duration `env:"MEDITATION_BEGIN_DELAY" env-default:"1s"`
	Breakthrough           time.Duration `env:"MEDITATION_BREAKTHROUGH_DELAY" env-default:"3s"`
	CombatReveal           time.Duration `env:"COMBAT_REVEAL_DELAY" env-default:"2s"`
	MinMeditationExchanges int           `env:"MEDITATION_MIN_EXCHANGES" env-default:"3"`  // history turns before a reply may break through
	MaxMeditationExchanges int           `env:"MEDITATION_MAX_EXCHANGES" env-default:"10"` // generated replies; 0: unlimited
}

// Load reads .env if present, then the environment, and validates the
// result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// breakthroughReply is the first generated reply whose prior history holds
// minTurns turns. The opening reply adds one turn, every later one two.
func breakthroughReply(minTurns int) int {
	return minTurns/2 + 2
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pacing
	if p.MeditationBegin < 0 || p.Breakthrough < 0 || p.CombatReveal < 0 {
		errs = append(errs, errors.New("pacing delays must not be negative"))
	}
	if p.MinMeditationExchanges < 1 {
		errs = append(errs, errors.New("MEDITATION_MIN_EXCHANGES must be at least 1"))
	}
	if p.MaxMeditationExchanges < 0 {
		errs = append(errs, errors.New("MEDITATION_MAX_EXCHANGES must not be negative"))
	}
	if p.MaxMeditationExchanges > 0 && p.MaxMeditationExchanges < breakthroughReply(p.MinMeditationExchanges) {
		errs = append(errs, fmt.Errorf("MEDITATION_MAX_EXCHANGES (%d) is below the %d replies MEDITATION_MIN_EXCHANGES (%d) needs",
			p.MaxMeditationExchanges, breakthroughReply(p.MinMeditationExchanges), p.MinMeditationExchanges))
	}
	if c.LLM.TimeoutSec <= 0 || c.Image.TimeoutSec <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.LLM.MeditationMaxTokens <= 0 || c.LLM.DialogueMaxTokens <= 0 {
		errs = append(errs, errors.New("max tokens must be positive"))
	}
	if c.StartScene == "" {
		errs = append(errs, errors.New("START_SCENE must not be empty"))
	}
	return errors.Join(errs...)
}

// EnginePacing converts the pacing settings for the engine.
func (c *Config) EnginePacing() engine.Pacing {
	return engine.Pacing{
		MeditationBegin:        c.Pacing.MeditationBegin,
		Breakthrough:           c.Pacing.Breakthrough,
		CombatReveal:           c.Pacing.CombatReveal,
		MaxMeditationExchanges: c.Pacing.MaxMeditationExchanges,
	}
}

// TextConfig returns the text client settings.
func (c *Config) TextConfig() generation.TextConfig {
	return generation.TextConfig{
		APIKey:  c.LLM.APIKey,
		BaseURL: c.LLM.BaseURL,
		Model:   c.LLM.Model,
		Timeout: time.Duration(c.LLM.TimeoutSec) * time.Second,
	}
}

// FalConfig returns the image client settings.
func (c *Config) FalConfig() generation.FalConfig {
	return generation.FalConfig{
		URL:     c.Image.URL,
		Key:     c.Image.Key,
		Timeout: time.Duration(c.Image.TimeoutSec) * time.Second,
	}
}

// GatewayOptions returns the gateway tuning.
func (c *Config) GatewayOptions() generation.Options {
	return generation.Options{
		Placeholder:         c.Image.Placeholder,
		MeditationMaxTokens: c.LLM.MeditationMaxTokens,
		DialogueMaxTokens:   c.LLM.DialogueMaxTokens,
		MinExchanges:        c.Pacing.MinMeditationExchanges,
	}
}
