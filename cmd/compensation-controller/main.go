// Command compensation-controller serves the relay and writes compensation
// values into the shared segment.
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
		cc     = config.Default().Controller
	)

	cmd := &cobra.Command{
		Use:           app.CompensationControllerName,
		Short:         "Serve the relay and write compensation values",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.Bind(cmd)

	f := cmd.Flags()
	f.StringVar(&cc.Host, "host", cc.Host, "listen host (empty listens on all interfaces)")
	f.IntVar(&cc.Port, "port", cc.Port, "listen port")
	f.Float64Var(&cc.Bound, "bound", cc.Bound, "sanity bound per axis in nm")
	f.Float64Var(&cc.RateLimit, "rate-limit", cc.RateLimit, "max relay calls per second (0 disables)")

	apply := func(cfg *config.Config) {
		set := cmd.Flags().Changed
		if set("host") {
			cfg.Controller.Host = cc.Host
		}
		if set("port") {
			cfg.Controller.Port = cc.Port
		}
		if set("bound") {
			cfg.Controller.Bound = cc.Bound
		}
		if set("rate-limit") {
			cfg.Controller.RateLimit = cc.RateLimit
		}
	}

	cmd.RunE = cli.RunE(&common, apply, func(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
		return app.NewCompensationController(cfg, logger).Run(ctx)
	})
	return cmd
}
