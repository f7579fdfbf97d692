package app

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/domain/compensation"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/server"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// CompensationController writes compensations received over the relay.
type CompensationController struct {
	*runtime

	seg  *shm.Segment
	srv  *rpc.Server
	diag *server.Diagnostics
}

// NewCompensationController builds the writer process.
func NewCompensationController(cfg *config.Config, logger *logging.Logger) *CompensationController {
	return &CompensationController{runtime: newRuntime(CompensationControllerName, cfg, logger)}
}

// Start attaches read-write and binds the relay listener. Resources acquired
// before a failure are released.
func (p *CompensationController) Start() error {
	cc := p.cfg.Controller

	seg, err := shm.AttachReadWrite(p.cfg.Segment.Name, shm.SegmentSize, shm.WithLogger(p.logger.Logger))
	if err != nil {
		return fmt.Errorf("attach segment: %w", err)
	}

	ctrl := compensation.NewController(seg, models.Negation,
		compensation.WithBound(cc.Bound),
		compensation.WithLogger(p.logger.Logger),
		compensation.WithMetrics(p.metrics),
	)

	srv := rpc.NewServer(rpc.ServerConfig{
		Host:                 cc.Host,
		Port:                 cc.Port,
		MaxConcurrentStreams: cc.MaxConcurrentStreams,
	}, ctrl, p.logger.Logger,
		rpc.LoggingInterceptor(p.logger.Logger),
		monitoring.UnaryServerInterceptor(p.metrics),
		rpc.RateLimitInterceptor(cc.RateLimit, cc.RateBurst),
	)
	if err := srv.Start(); err != nil {
		seg.Detach()
		return err
	}

	diag, err := p.startDiagnostics(seg)
	if err != nil {
		srv.Stop()
		seg.Detach()
		return err
	}

	p.seg, p.srv, p.diag = seg, srv, diag
	return nil
}

// Addr returns the relay listen address, or nil before Start.
func (p *CompensationController) Addr() net.Addr {
	if p.srv == nil {
		return nil
	}
	return p.srv.Addr()
}

// DiagnosticsAddr returns the diagnostics endpoint address, or "" when
// diagnostics are disabled.
func (p *CompensationController) DiagnosticsAddr() string {
	if p.diag == nil {
		return ""
	}
	return p.diag.Addr()
}

// Run serves the relay until ctx is cancelled, then stops the server and
// detaches. It starts the controller first if Start has not been called.
func (p *CompensationController) Run(ctx context.Context) error {
	if p.srv == nil {
		if err := p.Start(); err != nil {
			return err
		}
	}
	defer p.close()

	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		p.srv.Stop()
	}()

	p.logger.Info("Compensation controller ready",
		zap.String("segment", p.cfg.Segment.Name),
		zap.Stringer("addr", p.srv.Addr()),
		zap.Float64("bound_nm", p.cfg.Controller.Bound),
	)

	err := p.srv.Serve()
	cancel()
	<-stopped
	if err != nil && !errors.Is(err, rpc.ErrServerStopped) {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

func (p *CompensationController) close() {
	p.stopDiagnostics(p.diag)
	p.seg.Detach()
	p.logger.Info("Compensation controller stopped",
		zap.Uint64("compensations", p.seg.CompensationWrites()),
	)
}
