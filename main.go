package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tsanev/camguard-go/cmd"
	"github.com/tsanev/camguard-go/internal/conf"
	"github.com/tsanev/camguard-go/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	if settings.Main.Log.Enabled {
		fileLogger, closer, err := logging.NewFileLogger(
			settings.Main.Log.Path,
			settings.Main.Name,
			slog.LevelInfo,
			logging.FileLoggerOptions{
				MaxSizeMB:  settings.Main.Log.MaxSizeMB,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAgeDays,
			})
		if err != nil {
			logging.Warn("file logging disabled", "error", err)
		} else {
			slog.SetDefault(fileLogger)
			defer func() { _ = closer() }()
		}
	}

	rootCmd := cmd.RootCommand(settings)
	return rootCmd.Execute()
}
