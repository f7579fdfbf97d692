// Command distortion-predictor reads temperatures from the shared segment
// and relays predicted distortions to the compensation controller.
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
		pc     = config.Default().Predictor
	)

	cmd := &cobra.Command{
		Use:           app.DistortionPredictorName,
		Short:         "Predict distortion from temperature and relay it to the controller",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.Bind(cmd)

	f := cmd.Flags()
	f.StringVar(&pc.Host, "host", pc.Host, "compensation controller host")
	f.IntVar(&pc.Port, "port", pc.Port, "compensation controller port")
	f.IntVar(&pc.Samples, "samples", pc.Samples, "stop after this many iterations (0 runs until interrupted)")
	f.DurationVar(&pc.Period, "period", pc.Period, "polling period")
	f.IntVar(&pc.MaxFailures, "max-failures", pc.MaxFailures, "consecutive relay failures before exiting")

	apply := func(cfg *config.Config) {
		set := cmd.Flags().Changed
		if set("host") {
			cfg.Predictor.Host = pc.Host
		}
		if set("port") {
			cfg.Predictor.Port = pc.Port
		}
		if set("samples") {
			cfg.Predictor.Samples = pc.Samples
		}
		if set("period") {
			cfg.Predictor.Period = pc.Period
		}
		if set("max-failures") {
			cfg.Predictor.MaxFailures = pc.MaxFailures
		}
	}

	cmd.RunE = cli.RunE(&common, apply, func(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
		return app.NewDistortionPredictor(cfg, logger).Run(ctx)
	})
	return cmd
}
