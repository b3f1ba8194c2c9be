package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "cold_open", cfg.StartScene)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 300, cfg.LLM.MeditationMaxTokens)
	assert.Equal(t, 500, cfg.LLM.DialogueMaxTokens)
	assert.Equal(t, "/images/placeholder.png", cfg.Image.Placeholder)
	assert.Equal(t, time.Second, cfg.Pacing.MeditationBegin)
	assert.Equal(t, 3*time.Second, cfg.Pacing.Breakthrough)
	assert.Equal(t, 2*time.Second, cfg.Pacing.CombatReveal)
	assert.Equal(t, 3, cfg.Pacing.MinMeditationExchanges)
	assert.Equal(t, 10, cfg.Pacing.MaxMeditationExchanges)
	assert.Zero(t, cfg.RNGSeed)
	assert.Empty(t, cfg.ContentDir)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("LLM_MODEL", "local-model")
	t.Setenv("LLM_TIMEOUT_SEC", "5")
	t.Setenv("COMBAT_REVEAL_DELAY", "250ms")
	t.Setenv("RNG_SEED", "42")
	t.Setenv("START_SCENE", "massacre_01")
	t.Setenv("LOG_FILE", "/tmp/jianghu.log")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local-model", cfg.TextConfig().Model)
	assert.Equal(t, 5*time.Second, cfg.TextConfig().Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.EnginePacing().CombatReveal)
	assert.Equal(t, int64(42), cfg.RNGSeed)
	assert.Equal(t, "massacre_01", cfg.StartScene)
	assert.Equal(t, "/tmp/jianghu.log", cfg.Logger.File)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MEDITATION_MIN_EXCHANGES", "5")
	t.Setenv("MEDITATION_MAX_EXCHANGES", "2")

	_, err := Load()
	assert.ErrorContains(t, err, "is below the 4 replies MEDITATION_MIN_EXCHANGES (5) needs")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			StartScene: "cold_open",
			LLM:        LLMConfig{TimeoutSec: 60, MeditationMaxTokens: 300, DialogueMaxTokens: 500},
			Image:      ImageConfig{TimeoutSec: 120},
			Pacing:     PacingConfig{MinMeditationExchanges: 3, MaxMeditationExchanges: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"unlimited exchanges", func(c *Config) { c.Pacing.MaxMeditationExchanges = 0 }, ""},
		{"negative delay", func(c *Config) { c.Pacing.CombatReveal = -time.Second }, "negative"},
		{"zero min exchanges", func(c *Config) { c.Pacing.MinMeditationExchanges = 0 }, "at least 1"},
		{"max below breakthrough reply", func(c *Config) { c.Pacing.MaxMeditationExchanges = 2 }, "below"},
		{"max at breakthrough reply", func(c *Config) { c.Pacing.MaxMeditationExchanges = 3 }, ""},
		{"zero timeout", func(c *Config) { c.LLM.TimeoutSec = 0 }, "timeouts"},
		{"zero tokens", func(c *Config) { c.LLM.DialogueMaxTokens = 0 }, "max tokens"},
		{"no start scene", func(c *Config) { c.StartScene = "" }, "START_SCENE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestGatewayOptions(t *testing.T) {
	cfg := Config{
		LLM:    LLMConfig{MeditationMaxTokens: 200, DialogueMaxTokens: 400},
		Image:  ImageConfig{Placeholder: "/p.png", URL: "http://fal", Key: "k", TimeoutSec: 3},
		Pacing: PacingConfig{MinMeditationExchanges: 4},
	}
	opts := cfg.GatewayOptions()
	assert.Equal(t, "/p.png", opts.Placeholder)
	assert.Equal(t, 200, opts.MeditationMaxTokens)
	assert.Equal(t, 400, opts.DialogueMaxTokens)
	assert.Equal(t, 4, opts.MinExchanges)

	fal := cfg.FalConfig()
	assert.Equal(t, "http://fal", fal.URL)
	assert.Equal(t, 3*time.Second, fal.Timeout)
}
