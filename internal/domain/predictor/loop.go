// Package predictor reads temperatures from the shared segment, predicts the
// resulting distortion and relays it to the compensation controller.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// Reader is the read-only segment capability the loop needs.
type Reader interface {
	ReadTemperature() (shm.TemperatureReading, error)
}

// Sender is the relay client capability the loop needs.
type Sender interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, v models.Vector) error
	Connected() bool
}

// Config controls the polling loop.
type Config struct {
	Period        time.Duration
	Samples       int // 0 runs until cancelled
	ProgressEvery int
	// MaxFailures consecutive failed iterations end the loop.
	MaxFailures int
}

// DefaultConfig polls at 5 Hz and gives up on the first relay failure.
func DefaultConfig() Config {
	return Config{
		Period:        200 * time.Millisecond,
		ProgressEvery: 10,
		MaxFailures:   1,
	}
}

// Loop polls the temperature group and relays predicted distortions.
type Loop struct {
	seg     Reader
	predict models.DistortionFunc
	sender  Sender
	breaker *resilience.Breaker
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	lastCount uint32
}

// NewLoop builds a loop. breaker guards reconnect attempts and may be nil.
func NewLoop(seg Reader, predict models.DistortionFunc, sender Sender, breaker *resilience.Breaker, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Loop {
	def := DefaultConfig()
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if breaker == nil {
		breaker = resilience.New("relay", resilience.Settings{})
	}
	return &Loop{
		seg:     seg,
		predict: predict,
		sender:  sender,
		breaker: breaker,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run polls until ctx is cancelled or the sample limit is reached, both of
// which return nil. A segment read failure, or MaxFailures consecutive relay
// failures, end the loop with an error. Validation rejections are logged and
// do not count as failures.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	iterations, relayed, failures := 0, 0, 0
	l.logger.Info("Distortion predictor started", zap.Duration("period", l.cfg.Period), zap.Int("samples", l.cfg.Samples))

	for {
		if ctx.Err() != nil {
			l.logger.Info("Distortion predictor stopping", zap.Int("relayed", relayed))
			return nil
		}

		reading, err := l.seg.ReadTemperature()
		if err != nil {
			return fmt.Errorf("read temperature: %w", err)
		}
		iterations++

		if reading.SampleCount == 0 {
			l.logger.Debug("Waiting for first temperature sample")
		} else {
			err := l.relay(ctx, reading)
			switch {
			case err == nil:
				failures = 0
				relayed++
				if l.cfg.ProgressEvery > 0 && relayed%l.cfg.ProgressEvery == 0 {
					l.logger.Info("Distortion relayed",
						zap.Int("relayed", relayed),
						zap.Uint32("sample", reading.SampleCount),
						zap.Float64("celsius", reading.Celsius),
					)
				}
			case ctx.Err() != nil:
				continue
			case rpc.IsValidation(err):
				l.logger.Warn("Controller rejected distortion", zap.Error(err))
			default:
				failures++
				l.logger.Error("Relay failed",
					zap.Error(err),
					zap.Int("consecutive_failures", failures),
					zap.Int("max_failures", l.cfg.MaxFailures),
				)
				if failures >= l.cfg.MaxFailures {
					return fmt.Errorf("relay failed %d consecutive times: %w", failures, err)
				}
			}
		}

		if l.cfg.Samples > 0 && iterations >= l.cfg.Samples {
			l.logger.Info("Sample limit reached", zap.Int("relayed", relayed))
			return nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// relay predicts the distortion for one reading and sends it, reconnecting
// first if the previous send dropped the connection.
func (l *Loop) relay(ctx context.Context, reading shm.TemperatureReading) error {
	if l.lastCount != 0 && reading.SampleCount > l.lastCount+1 {
		l.logger.Debug("Missed temperature samples", zap.Uint32("missed", reading.SampleCount-l.lastCount-1))
	}
	l.lastCount = reading.SampleCount

	if !l.sender.Connected() {
		if l.metrics != nil {
			l.metrics.IncReconnects()
		}
		err := l.breaker.Execute(func() error { return l.sender.Connect(ctx) })
		switch {
		case err == nil:
			l.logger.Info("Relay reconnected")
		case !errors.Is(err, rpc.ErrAlreadyConnected):
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	d := l.predict(reading.Celsius)

	var timer *monitoring.Timer
	if l.metrics != nil {
		timer = monitoring.NewTimer(l.metrics, monitoring.SideClient)
	}
	err := l.sender.Send(ctx, d)
	if timer != nil {
		timer.Stop(relayCode(err))
	}
	if err != nil {
		return err
	}

	if l.metrics != nil {
		l.metrics.RecordRelayed(reading.Celsius)
	}
	l.logger.Debug("Distortion sent", zap.Float64("celsius", reading.Celsius), zap.Stringer("distortion", d))
	return nil
}

func relayCode(err error) string {
	var te *rpc.TransportError
	if errors.As(err, &te) {
		return status.Code(te.Err).String()
	}
	if rpc.IsValidation(err) {
		return "InvalidArgument"
	}
	return status.Code(err).String()
}
