package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polywhale/config"
	"github.com/alejandrodnm/polywhale/internal/adapters/notify"
	"github.com/alejandrodnm/polywhale/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywhale/internal/adapters/storage"
	"github.com/alejandrodnm/polywhale/internal/api"
	"github.com/alejandrodnm/polywhale/internal/application/poller"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one poll cycle and exit")
	recent := flag.Int("recent", 0, "print the N most recent whale trades and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *addr != "" {
		cfg.API.ListenAddr = *addr
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN, cfg.Service.WhaleThreshold)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}

	console := notify.NewConsole()

	if *recent > 0 {
		defer store.Close()
		trades, err := store.AllTrades(context.Background(), *recent)
		if err != nil {
			slog.Error("failed to list trades", "err", err)
			os.Exit(1)
		}
		console.PrintRecent(trades)
		return
	}

	client := polymarket.NewClient(cfg.API.DataBase, cfg.Service.WhaleThreshold,
		polymarket.WithMaxLimit(cfg.Service.TradesLimit),
		polymarket.WithFetchWindows(cfg.InitialFetchWindow(), cfg.FallbackFetchWindow()),
	)

	p := poller.New(poller.Config{PollInterval: cfg.PollInterval()}, client, store, console)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("polywhale starting",
		"config", *configPath,
		"interval", cfg.PollInterval(),
		"threshold", cfg.Service.WhaleThreshold,
		"once", *once,
	)

	if err := p.Start(ctx); err != nil {
		slog.Error("failed to start service", "err", err)
		os.Exit(1)
	}

	if *once {
		if err := p.PollNow(ctx); err != nil {
			slog.Error("poll cycle failed", "err", err)
			p.Stop()
			os.Exit(1)
		}
		p.Stop()
		slog.Info("polywhale stopped cleanly")
		return
	}

	server := api.NewServer(p, cfg.API.ListenAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("api server exited with error", "err", err)
	}

	p.Stop()
	slog.Info("polywhale stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
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
	slog.SetDefault(slog.New(handler))
}
