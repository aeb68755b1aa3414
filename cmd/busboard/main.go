package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/timschmolka/busboard/config"
	"github.com/timschmolka/busboard/epd"
	"github.com/timschmolka/busboard/layout"
	"github.com/timschmolka/busboard/panel"
	"github.com/timschmolka/busboard/refresh"
	"github.com/timschmolka/busboard/snapshot"
)

var _ panel.Sink = (*epd.Display)(nil)

func main() {
	once := flag.Bool("once", false, "Render a single frame and exit.")
	clearOnly := flag.Bool("clear", false, "Clear the panel to white and exit.")
	verbose := flag.Bool("v", false, "Log debug output.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal("config", err)
	}

	fonts, err := layout.LoadFonts(cfg.FontDir)
	if err != nil {
		fatal("fonts", err)
	}

	sink, err := openSink(cfg, logger)
	if err != nil {
		fatal("display", err)
	}
	logger.Info("board starting",
		"snapshot", cfg.SnapshotPath,
		"simulate", cfg.Simulate,
		"tz", cfg.Location.String())

	if *clearOnly {
		if err := clearPanel(sink); err != nil {
			logger.Error("clear failed", "err", err)
			os.Exit(1)
		}
		return
	}

	loop := refresh.New(refresh.Config{
		Loader: snapshot.NewLoader(cfg.SnapshotPath),
		Renderer: layout.NewEngine(fonts, layout.Options{
			Title:    cfg.Title,
			Location: cfg.Location,
		}),
		Sink:   sink,
		Logger: logger,
		OnStateChange: func(s refresh.State) {
			logger.Debug("state", "state", s)
		},
	})

	if *once {
		err := loop.RunOnce()
		loop.Stop()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Run(ctx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("board stopped")
}

func openSink(cfg *config.Config, logger *slog.Logger) (panel.Sink, error) {
	if cfg.Simulate {
		return panel.NewSimulator(cfg.PreviewPath, logger), nil
	}

	epdConfig := epd.DefaultConfig()
	epdConfig.OnBusyStateChange = func(busy bool) {
		if busy {
			logger.Debug("display is refreshing")
		} else {
			logger.Debug("display refresh complete")
		}
	}
	display, err := epd.NewWithConfig(epdConfig)
	if err != nil {
		return nil, err
	}
	return display, nil
}

func clearPanel(sink panel.Sink) error {
	defer sink.Close()
	if err := sink.Init(); err != nil {
		return err
	}
	if err := sink.Clear(panel.FillWhite); err != nil {
		return err
	}
	return sink.Sleep()
}

func fatal(what string, err error) {
	slog.Error("startup failed", "step", what, "err", err)
	os.Exit(1)
}
