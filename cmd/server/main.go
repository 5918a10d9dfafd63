package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/archive"
	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/config"
	"github.com/gkqls2420/projectGM-server/internal/matchmaking"
	"github.com/gkqls2420/projectGM-server/internal/room"
	"github.com/gkqls2420/projectGM-server/internal/server"
	"github.com/gkqls2420/projectGM-server/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	cat, err := catalog.LoadFile(cfg.Data.CardsPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load card catalog: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := buildArchiveSink(ctx, cfg.Archive, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	sessions := session.NewManager(logger)
	rooms := room.NewManager(logger, cat, sink, cfg.Match.IdleTimeout, cfg.Match.IdleCheckTick)
	decks := agent.NewDeckSource(cat, cfg.Data.AgentDecksDir, logger)
	matchmaker := matchmaking.New(logger, rooms, decks)
	srv := server.New(logger, cfg, cat, sessions, rooms, matchmaker)

	go rooms.Run(ctx)
	go sessions.Run(ctx, cfg.Match.IdleTimeout, cfg.Match.IdleCheckTick)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	rooms.Shutdown()
	return nil
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// buildArchiveSink selects the match record backend from config.
func buildArchiveSink(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (archive.Sink, func(), error) {
	switch cfg.Backend {
	case "none":
		return archive.Discard{}, func() {}, nil
	case "postgres":
		store, err := archive.NewPostgresStore(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres archive: %w", err)
		}
		return store, store.Close, nil
	case "file", "":
		store, err := archive.NewFileStore(cfg.Dir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file archive: %w", err)
		}
		return store, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
}
