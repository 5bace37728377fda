// Command mindcheck is a terminal client for the MindCheck prediction service.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Jeevanlr/mental-prediction/internal/account"
	"github.com/Jeevanlr/mental-prediction/internal/app"
	"github.com/Jeevanlr/mental-prediction/internal/capture"
	"github.com/Jeevanlr/mental-prediction/internal/config"
	"github.com/Jeevanlr/mental-prediction/internal/gateway"
	"github.com/Jeevanlr/mental-prediction/internal/history"
	"github.com/Jeevanlr/mental-prediction/internal/logging"
	"github.com/Jeevanlr/mental-prediction/internal/speech"
)

var version = "dev"

func main() {
	baseURL := flag.String("base-url", "", "prediction service URL (overrides MINDCHECK_API_BASE_URL)")
	envFile := flag.String("env-file", "", "path to a .env file (default .env)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("mindcheck", version)
		return
	}

	if err := run(*baseURL, *envFile); err != nil {
		color.Red("mindcheck: %v", err)
		os.Exit(1)
	}
}

func run(baseURL, envFile string) error {
	cfg := config.Load(envFile)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	logger, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Sync()

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     "mindcheck@" + version,
		})
		if err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init gateway: %w", err)
	}

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history unavailable", zap.String("path", cfg.HistoryPath), zap.Error(err))
		color.Yellow("history disabled: %v", err)
	} else {
		defer store.Close()
	}

	resolver := capture.NewResolver(capture.ResolverConfig{
		Device:  capture.DetectDevice(cfg.FFmpegPath, cfg.CameraDevice, logger),
		Streams: &capture.MJPEGStream{Client: gw.StreamClient(), Logger: logger},
		FeedURL: gw.VideoFeedURL,
		Logger:  logger,
	})
	defer resolver.Stop()

	recognizer := speech.DetectRecognizer(cfg.DeepgramAPIKey, cfg.AudioCommand, logger)
	if !recognizer.Available() {
		logger.Info("voice capture disabled", zap.String("reason", recognizer.Reason()))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("base_url", gw.BaseURL()))

	model := app.New(app.Deps{
		BaseURL:  gw.BaseURL(),
		Gateway:  gw,
		Accounts: account.NewService(gw, nil),
		Resolver: resolver,
		Analyzer: capture.NewAnalyzer(resolver, gw, logger),
		Speech:   speech.NewPipeline(recognizer, gw, cfg.SpeechLanguage, logger),
		History:  store,
		Logger:   logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
