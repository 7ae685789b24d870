// Command polysync synchronizes the Polymarket catalog and order books into
// local storage. It loads configuration, validates it, wires dependencies,
// sets up signal handling, and dispatches the requested command.
//
// Usage:
//
//	polysync [-config config.toml] <command> [args]
//
// Commands:
//
//	sync            run the catalog and order-book loops until interrupted
//	list            print stored markets
//	get <id>        print one market record
//	book <id> [tok] print (or -export) the latest order book; accepts a token id
//	search <query>  query the venue's public search (read-only)
//	stats           print catalog aggregate counts
//	delete <id>     remove one market
//	clear -confirm  purge markets, events, and snapshots
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

	"github.com/alanyoungcy/polysync/internal/app"
	"github.com/alanyoungcy/polysync/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger until the configured level is known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	command := flag.Arg(0)
	if command == "" {
		fmt.Fprintln(os.Stderr, "usage: polysync [-config file] <sync|list|get|book|search|stats|delete|clear> [args]")
		os.Exit(2)
	}

	logger.Info("polysync starting",
		slog.String("command", command),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx, command, flag.Args()[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("polysync stopped")
}
