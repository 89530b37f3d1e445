package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sttdata/internal/config"
)

// commandContext carries the persistent flags and lazily loads the config
// once per invocation.
type commandContext struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := config.LoadEnv(c.envFiles...); err != nil {
			c.configErr = err
			return
		}
		cfg, err := config.Load(c.configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", c.configPath)
			}
			c.configErr = err
			return
		}
		if c.logLevel != "" {
			cfg.LogLevel = config.LogLevel(c.logLevel)
		}
		if c.logFormat != "" {
			cfg.LogFormat = config.LogFormat(c.logFormat)
		}
		if err := config.Validate(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// skipsConfig lists commands that run without a config file.
var skipsConfig = map[string]bool{
	"sttdata":    true,
	"cer":        true,
	"help":       true,
	"completion": true,
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "sttdata",
		Short:         "Build a speech-to-text dataset from transcribed news recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig[cmd.Name()] {
				slog.SetDefault(newLogger(os.Stderr, config.LogLevel(ctx.logLevel), config.LogFormat(ctx.logFormat)))
				return nil
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	flags.StringSliceVar(&ctx.envFiles, "env-file", nil, "dotenv files to load before the config (default ./.env when present)")
	flags.StringVar(&ctx.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	flags.StringVar(&ctx.logFormat, "log-format", "", "override log_format (text, json)")

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newSegmentCommand(ctx),
		newCERCommand(),
		newStatusCommand(ctx),
	)
	return rootCmd
}

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
