// Jianghu is a wuxia visual novel played in the terminal.
// Usage: jianghu [--version] [--plain] [--script <file>] [--trace] [content_directory]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nathoo/jianghu/cli"
	"github.com/nathoo/jianghu/config"
	"github.com/nathoo/jianghu/content"
	"github.com/nathoo/jianghu/engine"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/generation"
	"github.com/nathoo/jianghu/loader"
	"github.com/nathoo/jianghu/logger"
	"github.com/nathoo/jianghu/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// tuiLogFile receives logs in TUI mode when LOG_FILE is unset.
const tuiLogFile = "jianghu.log"

func main() {
	plain := false
	trace := false
	var contentDir string
	var scriptFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("jianghu %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		default:
			if contentDir == "" {
				contentDir = args[i]
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if contentDir != "" {
		cfg.ContentDir = contentDir
	}

	useTUI := scriptFile == "" && !plain && isTerminal()
	if useTUI && cfg.Logger.File == "" {
		cfg.Logger.File = tuiLogFile
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, useTUI, scriptFile, trace); err != nil {
		log.Error("jianghu stopped", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, useTUI bool, scriptFile string, trace bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defs, err := loadContent(cfg, log)
	if err != nil {
		return err
	}
	if _, ok := defs.Scene(cfg.StartScene); ok {
		defs.Game.Start = cfg.StartScene
	} else {
		log.Warn("start scene not found, using the story's own",
			zap.String("scene_id", cfg.StartScene),
			zap.String("start", defs.Game.Start))
	}

	reg := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr, reg, log)
	}

	gateway := newGateway(cfg, log, generation.NewMetrics(reg))

	seed := cfg.RNGSeed
	if seed == 0 {
		if seed, err = engine.NewSeed(); err != nil {
			seed = time.Now().UnixNano()
		}
	}
	rng := engine.NewRNG(seed)
	defer func() {
		log.Info("combat rolls", zap.Int64("rng_seed", rng.Seed()), zap.Int64("rolls", rng.Position()))
	}()

	opts := []engine.Option{
		engine.WithLogger(log.Named("engine")),
		engine.WithPacing(cfg.EnginePacing()),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithRandom(rng),
	}

	log.Info("starting",
		zap.String("version", version),
		zap.String("env", cfg.AppEnv),
		zap.String("title", defs.Game.Title),
		zap.Int("scenes", len(defs.Scenes)),
		zap.Int64("rng_seed", seed),
		zap.Bool("tui", useTUI))

	if useTUI {
		eng := engine.New(defs, gateway, opts...)
		return tui.Run(ctx, eng, defs)
	}

	// Plain and script modes drain timed steps between prompts.
	q := &cli.Queue{}
	eng := engine.New(defs, gateway, append(opts, engine.WithScheduler(q))...)
	c := cli.New(eng, defs, q)
	c.Trace = trace

	// Script mode: open file, skip delays, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
		c.Wait = false
	}
	return c.Run(ctx)
}

// loadContent reads CONTENT_DIR when set, the embedded story otherwise.
func loadContent(cfg *config.Config, log *zap.Logger) (*state.Defs, error) {
	withLog := loader.WithLogger(log.Named("loader"))
	if cfg.ContentDir != "" {
		return loader.LoadDir(cfg.ContentDir, withLog)
	}
	defs, err := content.Load(withLog)
	if err != nil {
		return nil, fmt.Errorf("loading embedded story: %w", err)
	}
	return defs, nil
}

// newGateway wires the text and image clients that have credentials. A
// missing client makes its calls fail over to in-fiction fallbacks.
func newGateway(cfg *config.Config, log *zap.Logger, metrics *generation.Metrics) *generation.Gateway {
	var (
		text   generation.TextClient
		images generation.ImageClient
	)
	if cfg.LLM.APIKey != "" {
		text = generation.NewOpenAIText(cfg.TextConfig(), log)
	} else {
		log.Warn("LLM_API_KEY not set; meditation and dialogue will use fallbacks")
	}
	if cfg.Image.Key != "" {
		images = generation.NewFalImages(cfg.FalConfig(), log)
	} else {
		log.Warn("FAL_KEY not set; image prompts will use the placeholder")
	}
	return generation.NewGateway(text, images, cfg.GatewayOptions(), log, metrics)
}

// startMetricsServer serves /metrics and /health until ctx is done.
func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
