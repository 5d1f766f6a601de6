package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"libreplexity/internal/config"
)

// rootOptions carries persistent flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	Addr       string

	cfg config.Config
	log zerolog.Logger
}

func buildRootCmd() *cobra.Command {
	return buildRootCmdWith(&rootOptions{
		ConfigPath: os.Getenv("LIBREPLEXITY_CONFIG"),
		LogLevel:   os.Getenv("LIBREPLEXITY_LOG_LEVEL"),
		Addr:       os.Getenv("LIBREPLEXITY_ADDR"),
	})
}

// buildRootCmdWith constructs the command tree around opts.
func buildRootCmdWith(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "libreplexity",
		Short:         "Search the web, read the top pages and summarize them with a local model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Config file (.yaml, .json or .toml; defaults LIBREPLEXITY_CONFIG)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug|info|warn|error")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return opts.load()
	}

	root.AddCommand(newServeCmd(opts), newAskCmd(opts), newRelayCmd(opts), newModelsCmd(opts))
	return root
}

// load reads the config file, applies defaults and flag overrides and
// installs the console logger.
func (o *rootOptions) load() error {
	cfg := config.Config{}
	if o.ConfigPath != "" {
		c, err := config.Load(o.ConfigPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Addr != "" {
		cfg.Addr = o.Addr
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.log = newLogger(cfg.LogLevel)
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma separated flag value, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
