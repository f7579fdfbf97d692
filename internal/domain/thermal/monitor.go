// Package thermal drives the temperature field group of the shared segment.
package thermal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/models"
)

// Writer is the owner-side segment capability the monitor needs.
type Writer interface {
	WriteTemperature(celsius, timestamp float64) (uint32, error)
}

// Config controls the sampling loop.
type Config struct {
	Period        time.Duration
	Samples       int // 0 runs until cancelled
	ProgressEvery int
}

// DefaultConfig samples at 10 Hz without a limit.
func DefaultConfig() Config {
	return Config{
		Period:        100 * time.Millisecond,
		ProgressEvery: 10,
	}
}

// Monitor writes one temperature sample per period.
type Monitor struct {
	seg         Writer
	temperature models.TemperatureFunc
	cfg         Config
	logger      *zap.Logger
	metrics     *monitoring.Metrics
}

// NewMonitor builds a monitor over an initialized owner segment.
func NewMonitor(seg Writer, temperature models.TemperatureFunc, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Monitor {
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		seg:         seg,
		temperature: temperature,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run samples until ctx is cancelled or the sample limit is reached, both
// of which return nil. Cancellation is observed once per period. A failed
// write ends the loop with an error.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Period)
	defer ticker.Stop()

	start := time.Now()
	written := 0
	m.logger.Info("Thermal monitor started", zap.Duration("period", m.cfg.Period), zap.Int("samples", m.cfg.Samples))

	for {
		if ctx.Err() != nil {
			m.logger.Info("Thermal monitor stopping", zap.Int("written", written))
			return nil
		}

		elapsed := time.Since(start).Seconds()
		celsius := m.temperature(elapsed)
		count, err := m.seg.WriteTemperature(celsius, elapsed)
		if err != nil {
			return fmt.Errorf("write temperature sample %d: %w", written+1, err)
		}
		written++
		if m.metrics != nil {
			m.metrics.RecordSample(celsius)
		}

		if m.cfg.ProgressEvery > 0 && written%m.cfg.ProgressEvery == 0 {
			m.logger.Info("Temperature sample",
				zap.Uint32("sample", count),
				zap.Float64("celsius", celsius),
				zap.Float64("elapsed_s", elapsed),
			)
		}

		if m.cfg.Samples > 0 && written >= m.cfg.Samples {
			m.logger.Info("Sample limit reached", zap.Int("written", written))
			return nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}
