package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ncecere/readaloud/internal/app"
	"github.com/ncecere/readaloud/internal/config"
	"github.com/ncecere/readaloud/internal/httpserver"
	"github.com/ncecere/readaloud/internal/redisclient"
)

func main() {
	configFile := flag.String("config", "", "path to a readaloud YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	redisClient := redisclient.New(cfg.Redis)
	if redisClient != nil {
		if err := redisclient.Ping(ctx, redisClient); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()
	}

	container, err := app.NewContainer(ctx, cfg, redisClient, logger)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	if container.Observability != nil {
		defer container.Observability.Shutdown(context.Background())
	}

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	logger.Info("readaloud listening",
		slog.String("addr", cfg.Server.ListenAddr),
		slog.String("vision", cfg.Vision.Provider),
		slog.String("translation", cfg.Translation.Provider),
		slog.String("speech", cfg.Speech.Provider),
	)
	if err := server.Listen(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server stopped: %v", err)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
