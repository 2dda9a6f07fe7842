package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"live-translator/config"
	"live-translator/internal/application"
	"live-translator/internal/domain"
	"live-translator/internal/infra/backends"
	"live-translator/internal/infra/capture"
	"live-translator/internal/infra/control"
	"live-translator/internal/infra/relay"
	"live-translator/internal/infra/speech"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	direction, err := domain.ParseDirection(cfg.Pipeline.Direction)
	if err != nil {
		logger.Error("parsing direction", "error", err)
		os.Exit(1)
	}

	var (
		source  application.Capture
		display application.DisplaySink
		bridge  *capture.WebSocketCapture
	)
	switch cfg.Capture.Source {
	case "script":
		source = capture.NewScriptCapture(cfg.Capture.ScriptPath, cfg.Capture.ScriptInterval, logger)
	default:
		bridge = capture.NewWebSocketCapture(cfg.Capture.AckTimeout, logger)
		source = bridge
		display = bridge
	}

	speaker, closeSpeaker := createSpeaker(cfg.Speech, logger)
	defer closeSpeaker()

	pipeline := application.NewPipeline(
		source,
		relay.NewClient(cfg.Pipeline.RelayURL, cfg.Pipeline.RequestTimeout),
		speaker,
		display,
		application.PipelineConfig{
			QuietInterval:    cfg.Pipeline.QuietInterval,
			Direction:        direction,
			DropStaleResults: *cfg.Pipeline.DropStaleResults,
			RequestTimeout:   cfg.Pipeline.RequestTimeout,
		},
		logger,
	)

	controlServer := control.NewServer(cfg.Control.Addr, cfg.Control.AuthToken, pipeline, logger)
	if bridge != nil {
		controlServer.Mount("GET "+cfg.Capture.Path, bridge)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Relay.Embedded {
		backend, err := backends.New(ctx, cfg.Relay)
		if err != nil {
			logger.Error("creating backend", "error", err)
			os.Exit(1)
		}
		relayServer := relay.NewServer(cfg.Relay.Addr, backend, cfg.Relay.RateLimit, logger)
		g.Go(func() error {
			return relayServer.Run(gctx)
		})
	}

	g.Go(func() error {
		return pipeline.Run(gctx)
	})
	g.Go(func() error {
		return controlServer.Run(gctx)
	})

	if cfg.Capture.AutoStart {
		g.Go(func() error {
			if bridge != nil {
				select {
				case <-bridge.Connected():
				case <-gctx.Done():
					return nil
				}
			}
			if err := pipeline.Start(gctx); err != nil {
				logger.Warn("auto start failed", "error", err)
			}
			return nil
		})
	}

	logger.Info("starting live translator",
		"capture", source.Name(),
		"direction", direction.String(),
		"relay_url", cfg.Pipeline.RelayURL,
		"embedded_relay", cfg.Relay.Embedded,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("translator error", "error", err)
		os.Exit(1)
	}
}

func createSpeaker(cfg config.SpeechConfig, logger *slog.Logger) (application.Speaker, func()) {
	if cfg.Engine == "none" {
		return &application.NoopSpeaker{}, func() {}
	}

	var player speech.Player
	closePlayer := func() {}
	if cfg.Player == "portaudio" {
		p, err := speech.NewPortAudioPlayer(logger)
		if err != nil {
			logger.Warn("portaudio player unavailable, falling back to command playback", "error", err)
		} else {
			player = p
			closePlayer = func() { p.Close() }
		}
	}

	speaker, err := speech.NewCommandSpeaker(speech.Engine(cfg.Engine), cfg.Binary, cfg.Voices, player, logger)
	if err != nil {
		logger.Warn("speech disabled", "error", err)
		closePlayer()
		return &application.NoopSpeaker{}, func() {}
	}

	return speaker, func() {
		speaker.Close()
		closePlayer()
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
