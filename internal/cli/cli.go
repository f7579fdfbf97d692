// Package cli holds the command-line plumbing shared by the three process
// binaries: common flags, config loading and signal handling.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
)

// Common holds the flags every process accepts.
type Common struct {
	ConfigPath string
	Dev        bool
	LogLevel   string
	DiagAddr   string
	Segment    string
}

// Bind registers the common flags on cmd.
func (c *Common) Bind(cmd *cobra.Command) {
	def := config.Default()
	f := cmd.Flags()
	f.StringVar(&c.ConfigPath, "config", "", "YAML config file overlaid on the environment")
	f.BoolVar(&c.Dev, "dev", false, "development logging (console, debug level)")
	f.StringVar(&c.LogLevel, "log-level", def.Logging.Level, "log level: debug, info, warn, error")
	f.StringVar(&c.DiagAddr, "diag-addr", "", "serve /health, /state and /metrics on this address")
	f.StringVar(&c.Segment, "shm-name", def.Segment.Name, "shared memory segment name")
}

// Load reads the environment and the optional config file, applies the
// common flags that were set and then apply, and validates the result.
func (c *Common) Load(cmd *cobra.Command, apply func(cfg *config.Config)) (*config.Config, error) {
	cfg, err := config.LoadFile(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("dev") {
		cfg.Logging.Development = c.Dev
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = c.LogLevel
	}
	if f.Changed("diag-addr") {
		cfg.Diagnostics.Addr = c.DiagAddr
	}
	if f.Changed("shm-name") {
		cfg.Segment.Name = c.Segment
	}
	if apply != nil {
		apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger from the logging section. The
// development flag switches encoding only; the level always comes from
// the config.
func NewLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.Logging.Level
	return logging.New(logCfg)
}

// Execute runs cmd with a context cancelled on SIGINT or SIGTERM and exits
// with status 1 if it fails.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// RunE adapts a process entry point into a cobra RunE that logs the fatal
// error once before returning it.
func RunE(common *Common, apply func(cfg *config.Config), run func(ctx context.Context, cfg *config.Config, logger *logging.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := common.Load(cmd, apply)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			return err
		}
		logger, err := NewLogger(cfg)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			return err
		}
		defer logger.Sync()

		if err := run(cmd.Context(), cfg, logger); err != nil {
			logger.Error("Fatal error", zap.Error(err))
			return err
		}
		return nil
	}
}
