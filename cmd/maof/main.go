package main

import (
	"os"
	"strings"

	"maof-analyst/internal/cli"
	"maof-analyst/internal/config"
	"maof-analyst/internal/logging"
)

func main() {
	configDir := configDirFromArgs(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		fallback := logging.NewLogger()
		fallback.Error().Err(err).Str("dir", configDir).Msg("Failed to load config")
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		NoColor:    !cfg.UI.ColorEnabled,
	})

	app := cli.NewApp(cfg, configDir, logger)
	if err := cli.NewRootCmd(app).Execute(); err != nil {
		os.Exit(1)
	}
}

// configDirFromArgs finds --config before cobra parses flags, since the
// configuration decides the command defaults.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
