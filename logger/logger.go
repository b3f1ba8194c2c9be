// Package logger builds the zap logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger settings.
type Config struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`     // debug, info, warn, error
	Encoding   string `env:"LOG_ENCODING" env-default:"json"`  // json or console
	File       string `env:"LOG_FILE"`                         // empty: stderr
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"10"` // rotation size
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"30"`
}

// New builds a logger from cfg. An unknown level falls back to info, an
// unknown encoding to json. When File is set, output is rotated through
// lumberjack.
func New(cfg Config) (*zap.Logger, error) {
	var out zapcore.WriteSyncer
	if cfg.File != "" {
		out = zapcore.AddSync(rotator(cfg))
	} else {
		out = zapcore.Lock(os.Stderr)
	}
	return build(cfg, out)
}

// NewWriter builds a logger that writes to w.
func NewWriter(cfg Config, w io.Writer) (*zap.Logger, error) {
	return build(cfg, zapcore.AddSync(w))
}

func build(cfg Config, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using info: %v\n", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.ToLower(cfg.Encoding) == "console" {
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encoderCfg)
	}

	return zap.New(zapcore.NewCore(enc, out, level)), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func rotator(cfg Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}
