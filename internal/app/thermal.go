package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/domain/thermal"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// ThermalMonitor owns the shared segment and writes temperature samples.
type ThermalMonitor struct {
	*runtime
}

// NewThermalMonitor builds the owner process.
func NewThermalMonitor(cfg *config.Config, logger *logging.Logger) *ThermalMonitor {
	return &ThermalMonitor{runtime: newRuntime(ThermalMonitorName, cfg, logger)}
}

// Run creates and initializes the segment, samples until ctx is cancelled
// or the sample limit is reached, then destroys the segment. Startup
// failures are returned before any sample is written.
func (p *ThermalMonitor) Run(ctx context.Context) error {
	mc := p.cfg.Monitor
	temperature, err := models.Pattern(mc.Pattern, mc.BaseTemp, mc.Amplitude, mc.Frequency, mc.StepDelta, mc.Interval)
	if err != nil {
		return err
	}

	pending, err := shm.CreateOrRecover(p.cfg.Segment.Name, shm.SegmentSize, shm.WithLogger(p.logger.Logger))
	if err != nil {
		return fmt.Errorf("create segment: %w", err)
	}
	seg, err := pending.Initialize()
	if err != nil {
		return fmt.Errorf("initialize segment: %w", err)
	}
	defer seg.Destroy()

	diag, err := p.startDiagnostics(seg)
	if err != nil {
		return err
	}
	defer p.stopDiagnostics(diag)

	p.logger.Info("Thermal monitor ready",
		zap.String("segment", p.cfg.Segment.Name),
		zap.String("pattern", mc.Pattern),
	)

	monitor := thermal.NewMonitor(seg, temperature, thermal.Config{
		Period:        mc.Period,
		Samples:       mc.Samples,
		ProgressEvery: thermal.DefaultConfig().ProgressEvery,
	}, p.logger.Logger, p.metrics)

	return monitor.Run(ctx)
}
