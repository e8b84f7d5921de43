// Command earshot detects audio activity on files, standard input or the
// microphone and delivers the detected events to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/earshot/internal/app"
	"github.com/MrWong99/earshot/internal/config"
	"github.com/MrWong99/earshot/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file")
	input := flag.String("i", "", `input: file path, "-" for stdin, empty for microphone`)
	rate := flag.Int("r", 0, "sampling rate in Hz (raw/stdin/microphone input)")
	width := flag.Int("w", 0, "sample width in bytes (raw/stdin input)")
	channels := flag.Int("c", 0, "channel count (raw/stdin/microphone input)")
	threshold := flag.Float64("e", 0, "energy threshold for the default validator")
	minDur := flag.Float64("n", 0, "minimum detection duration in seconds")
	maxDur := flag.Float64("m", 0, "maximum detection duration in seconds")
	maxSilence := flag.Float64("s", 0, "maximum continuous silence within a detection, in seconds")
	maxRead := flag.Float64("M", 0, "maximum amount of audio to read, in seconds")
	dropTrailing := flag.Bool("drop-trailing-silence", false, "remove trailing silence from detections")
	strictMin := flag.Bool("strict-min-dur", false, "reject short continuations of truncated detections")
	printDet := flag.Bool("print", true, "print one line per detection")
	saveAs := flag.String("save-detections-as", "", "file-name template for per-detection audio files")
	saveStream := flag.String("save-stream-as", "", "file the whole captured stream is written to")
	flag.Parse()

	// A .env in the working directory may carry the store DSN; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		return 1
	}

	// ── Flag overrides ────────────────────────────────────────────────────────
	if flagPassed("i") {
		cfg.Input.Path = *input
	}
	if *rate > 0 {
		cfg.Input.SamplingRate = *rate
	}
	if *width > 0 {
		cfg.Input.SampleWidth = *width
	}
	if *channels > 0 {
		cfg.Input.Channels = *channels
	}
	if *threshold != 0 {
		cfg.Detection.EnergyThreshold = *threshold
	}
	if *minDur > 0 {
		cfg.Detection.MinDur = *minDur
	}
	if *maxDur > 0 {
		cfg.Detection.MaxDur = *maxDur
	}
	if *maxSilence > 0 {
		cfg.Detection.MaxSilence = *maxSilence
	}
	if *maxRead > 0 {
		cfg.Input.MaxRead = *maxRead
	}
	if *dropTrailing {
		cfg.Detection.DropTrailingSilence = true
	}
	if *strictMin {
		cfg.Detection.StrictMinDur = true
	}
	cfg.Output.Print = *printDet
	if *saveAs != "" {
		cfg.Output.SaveDetectionsAs = *saveAs
	}
	if *saveStream != "" {
		cfg.Output.SaveStreamAs = *saveStream
		cfg.Input.Record = true
	}
	if dsn := os.Getenv("EARSHOT_POSTGRES_DSN"); dsn != "" && cfg.Store.PostgresDSN == "" {
		cfg.Store.PostgresDSN = dsn
	}
	if cfg.Store.SourceLabel == "" {
		cfg.Store.SourceLabel = sourceLabel(cfg.Input.Path)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "earshot",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("earshot starting",
		"input", cfg.Store.SourceLabel,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	return 0
}

// loadConfig reads the config file when given and falls back to defaults so
// the tool works from flags alone.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}

// flagPassed reports whether a flag was set explicitly on the command line.
func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

// sourceLabel names the stream for logs and the detection store.
func sourceLabel(path string) string {
	switch path {
	case "":
		return "mic"
	case "-":
		return "stdin"
	}
	return path
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
