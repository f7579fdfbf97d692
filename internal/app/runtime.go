package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	api "github.com/GriffinCanCode/rtdcs/internal/api/http"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/config"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/server"
	"github.com/GriffinCanCode/rtdcs/internal/shared/id"
)

// Process names, used as logger names and in diagnostics responses.
const (
	ThermalMonitorName         = "thermal-monitor"
	DistortionPredictorName    = "distortion-predictor"
	CompensationControllerName = "compensation-controller"
)

const (
	metricsNamespace = "rtdcs"
	shutdownTimeout  = 5 * time.Second
)

// runtime is the per-process ambient state shared by every process type.
type runtime struct {
	name     string
	cfg      *config.Config
	instance id.InstanceID
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

func newRuntime(name string, cfg *config.Config, logger *logging.Logger) *runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	instance := id.NewInstanceID()
	return &runtime{
		name:     name,
		cfg:      cfg,
		instance: instance,
		logger:   logger.ForProcess(name, instance.String()),
		metrics:  monitoring.NewMetrics(metricsNamespace),
	}
}

// startDiagnostics serves the diagnostics endpoint when an address is
// configured. It returns nil when diagnostics are disabled.
func (r *runtime) startDiagnostics(state api.StateSource) (*server.Diagnostics, error) {
	if r.cfg.Diagnostics.Addr == "" {
		return nil, nil
	}
	handlers := api.NewHandlers(r.name, r.instance.String(), state, r.metrics)
	router := api.NewRouter(handlers, r.metrics, r.cfg.Logging.Development)

	diag := server.NewDiagnostics(r.cfg.Diagnostics.Addr, router, r.logger.Logger)
	if err := diag.Start(); err != nil {
		return nil, err
	}
	return diag, nil
}

func (r *runtime) stopDiagnostics(diag *server.Diagnostics) {
	if diag == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := diag.Shutdown(ctx); err != nil {
		r.logger.Warn("Diagnostics shutdown incomplete", zap.Error(err))
	}
}

// Metrics exposes the process metrics.
func (r *runtime) Metrics() *monitoring.Metrics { return r.metrics }

// Instance returns the id tagging this process's log entries.
func (r *runtime) Instance() id.InstanceID { return r.instance }
