package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mooncitizen/beatphobia-sub003/internal/capture"
	"github.com/mooncitizen/beatphobia-sub003/internal/config"
	"github.com/mooncitizen/beatphobia-sub003/internal/emitter"
	"github.com/mooncitizen/beatphobia-sub003/internal/game"
	"github.com/mooncitizen/beatphobia-sub003/internal/predict"
	"github.com/mooncitizen/beatphobia-sub003/internal/types"
)

const defaultConfigPath = "config/focus.yaml"

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting focus quest daemon",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	source := buildSource(cfg)
	predictor := buildPredictor(cfg)

	// Telemetry is optional: no broker configured means no emitter
	var events game.EventSink
	var mq *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		mq = emitter.New(cfg)
		if err := mq.Connect(context.Background()); err != nil {
			slog.Error("failed to connect mqtt emitter", "error", err)
			os.Exit(1)
		}
		events = mq
	}

	quest := game.NewQuest(cfg, source, predictor, game.StaticPermission(types.PermissionGranted), events)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run game in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- quest.Run(ctx) // Always send, even if nil
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			slog.Error("game error", "error", err)
		} else {
			slog.Info("game stopped")
		}
	}

	// Graceful shutdown
	shutdownTimeout := time.Duration(cfg.ShutdownTimeoutS) * time.Second
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := quest.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	if mq != nil {
		_ = mq.Disconnect()
	}

	slog.Info("focus quest daemon stopped successfully")
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist (handy for mock runs with env overrides only).
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Warn("config file not found, using defaults", "path", path)
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}

// buildSource picks the capture backend: synthetic frames in mock mode,
// otherwise the local camera through GStreamer.
func buildSource(cfg *config.Config) capture.DeviceSource {
	if cfg.Camera.Mock {
		slog.Info("capture: using mock camera source")
		return &capture.MockSource{
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			FPS:       cfg.Camera.FPS,
			Available: true,
		}
	}
	return &capture.GStreamerSource{
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	}
}

// buildPredictor picks the classifier backend: an external model worker
// when configured, otherwise the scripted rotation.
func buildPredictor(cfg *config.Config) predict.Predictor {
	if cfg.Predictor.Command != "" {
		return predict.NewSubprocessPredictor(cfg.Predictor.Command, cfg.Predictor.Args)
	}
	slog.Info("predict: using scripted predictor")
	return predict.NewScriptedPredictor(cfg.Predictor.Script)
}
