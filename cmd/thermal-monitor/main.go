// Command thermal-monitor owns the shared segment and writes simulated
// temperature samples into it.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/rtdcs/internal/app"
	"github.com/GriffinCanCode/rtdcs/internal/cli"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
)

func main() {
	cli.Execute(newCommand())
}

func newCommand() *cobra.Command {
	var (
		common cli.Common
		mc     = config.Default().Monitor
	)

	cmd := &cobra.Command{
		Use:           app.ThermalMonitorName,
		Short:         "Create the shared segment and write temperature samples",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.Bind(cmd)

	f := cmd.Flags()
	f.StringVar(&mc.Pattern, "pattern", mc.Pattern, "temperature pattern: sine or step")
	f.Float64Var(&mc.BaseTemp, "base-temp", mc.BaseTemp, "base temperature in degrees C")
	f.Float64Var(&mc.Amplitude, "amplitude", mc.Amplitude, "sine amplitude in degrees C")
	f.Float64Var(&mc.Frequency, "frequency", mc.Frequency, "sine frequency in Hz")
	f.Float64Var(&mc.StepDelta, "step-delta", mc.StepDelta, "step change in degrees C")
	f.Float64Var(&mc.Interval, "interval", mc.Interval, "seconds between steps")
	f.IntVar(&mc.Samples, "samples", mc.Samples, "stop after this many samples (0 runs until interrupted)")
	f.DurationVar(&mc.Period, "period", mc.Period, "sampling period")

	apply := func(cfg *config.Config) {
		set := cmd.Flags().Changed
		if set("pattern") {
			cfg.Monitor.Pattern = mc.Pattern
		}
		if set("base-temp") {
			cfg.Monitor.BaseTemp = mc.BaseTemp
		}
		if set("amplitude") {
			cfg.Monitor.Amplitude = mc.Amplitude
		}
		if set("frequency") {
			cfg.Monitor.Frequency = mc.Frequency
		}
		if set("step-delta") {
			cfg.Monitor.StepDelta = mc.StepDelta
		}
		if set("interval") {
			cfg.Monitor.Interval = mc.Interval
		}
		if set("samples") {
			cfg.Monitor.Samples = mc.Samples
		}
		if set("period") {
			cfg.Monitor.Period = mc.Period
		}
	}

	cmd.RunE = cli.RunE(&common, apply, func(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
		return app.NewThermalMonitor(cfg, logger).Run(ctx)
	})
	return cmd
}
