package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/domain/predictor"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// DistortionPredictor reads temperatures and relays predicted distortions.
type DistortionPredictor struct {
	*runtime
	predict models.DistortionFunc
}

// NewDistortionPredictor builds the reader process with the default
// thermal expansion model.
func NewDistortionPredictor(cfg *config.Config, logger *logging.Logger) *DistortionPredictor {
	return &DistortionPredictor{
		runtime: newRuntime(DistortionPredictorName, cfg, logger),
		predict: models.Zeeman(models.DefaultZeeman()),
	}
}

// Run attaches read-only, connects to the controller and polls until ctx is
// cancelled or the sample limit is reached. A missing segment or an
// unreachable controller at startup is returned as an error.
func (p *DistortionPredictor) Run(ctx context.Context) error {
	pc := p.cfg.Predictor

	seg, err := shm.AttachReadOnly(p.cfg.Segment.Name, shm.SegmentSize, shm.WithLogger(p.logger.Logger))
	if err != nil {
		return fmt.Errorf("attach segment: %w", err)
	}
	defer seg.Detach()

	client := rpc.NewClient(rpc.ClientConfig{
		Host:           pc.Host,
		Port:           pc.Port,
		ConnectTimeout: pc.ConnectTimeout,
		CallTimeout:    pc.CallTimeout,
	}, p.logger.Logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to controller: %w", err)
	}
	defer client.Disconnect()

	diag, err := p.startDiagnostics(seg)
	if err != nil {
		return err
	}
	defer p.stopDiagnostics(diag)

	breaker := resilience.New("relay", resilience.Settings{
		Timeout: pc.BreakerTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			p.logger.Warn("Relay breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	loop := predictor.NewLoop(seg, p.predict, client, breaker, predictor.Config{
		Period:        pc.Period,
		Samples:       pc.Samples,
		ProgressEvery: predictor.DefaultConfig().ProgressEvery,
		MaxFailures:   pc.MaxFailures,
	}, p.logger.Logger, p.metrics)

	return loop.Run(ctx)
}
