package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
)

func newTestCommand(common *Common) *cobra.Command {
	cmd := &cobra.Command{Use: "test", SilenceUsage: true, SilenceErrors: true}
	common.Bind(cmd)
	return cmd
}

func TestFlagsOverrideFileAndEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SHM_NAME", "/rtdcs_env")

	path := filepath.Join(t.TempDir(), "rtdcs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnostics:\n  addr: \":9000\"\n"), 0o600))

	var common Common
	cmd := newTestCommand(&common)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--diag-addr", ":9100", "--dev"}))

	cfg, err := common.Load(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Diagnostics.Addr, "flag beats file")
	assert.Equal(t, "warn", cfg.Logging.Level, "unset flag keeps environment")
	assert.Equal(t, "/rtdcs_env", cfg.Segment.Name)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadAppliesProcessFlagsAndValidates(t *testing.T) {
	var common Common
	cmd := newTestCommand(&common)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := common.Load(cmd, func(cfg *config.Config) { cfg.Monitor.Pattern = "step" })
	require.NoError(t, err)
	assert.Equal(t, "step", cfg.Monitor.Pattern)

	_, err = common.Load(cmd, func(cfg *config.Config) { cfg.Monitor.Pattern = "ramp" })
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRunEReturnsProcessError(t *testing.T) {
	var common Common
	cmd := newTestCommand(&common)
	cmd.SetErr(io.Discard)
	boom := errors.New("boom")

	cmd.RunE = RunE(&common, nil, func(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
		require.NotNil(t, cfg)
		require.NotNil(t, logger)
		return boom
	})
	cmd.SetArgs([]string{"--log-level", "error"})
	assert.ErrorIs(t, cmd.ExecuteContext(context.Background()), boom)

	cmd.SetArgs([]string{"--log-level", "loud"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
