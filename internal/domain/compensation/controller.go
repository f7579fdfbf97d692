// Package compensation turns relayed distortion vectors into compensation
// values written to the shared segment.
package compensation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
)

// DefaultBound is the largest accepted distortion magnitude per axis, in nm.
const DefaultBound = 1000.0

var ErrDistortionOutOfRange = errors.New("distortion outside sanity bound")

// Writer is the segment capability the controller needs.
type Writer interface {
	WriteCompensation(x, y, timestamp float64) error
}

// RangeError describes a rejected distortion.
type RangeError struct {
	Distortion models.Vector
	Bound      float64
	Violations []rpc.FieldViolation
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("distortion %s outside sanity bound %.0fnm", e.Distortion, e.Bound)
}

func (e *RangeError) Unwrap() error { return ErrDistortionOutOfRange }

// Controller validates, transforms and writes compensations. It is safe
// for concurrent use; the segment serializes the write step.
type Controller struct {
	seg        Writer
	compensate models.CompensationFunc
	bound      float64
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	now        func() time.Time

	applied atomic.Uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithBound overrides DefaultBound.
func WithBound(bound float64) Option {
	return func(c *Controller) { c.bound = bound }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMetrics records rejections and writes.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces the wall clock used for compensation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController builds a controller writing to seg.
func NewController(seg Writer, compensate models.CompensationFunc, opts ...Option) *Controller {
	c := &Controller{
		seg:        seg,
		compensate: compensate,
		bound:      DefaultBound,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate accepts d when both components are finite and its infinity norm
// is within the bound. A rejection lists every offending component.
func (c *Controller) Validate(d models.Vector) error {
	v := []float64{d.X, d.Y}
	if !floats.HasNaN(v) && floats.Norm(v, math.Inf(1)) <= c.bound {
		return nil
	}

	fields := [...]string{"x_nm", "y_nm"}
	violations := make([]rpc.FieldViolation, 0, len(v))
	for i, x := range v {
		switch {
		case math.IsNaN(x) || math.IsInf(x, 0):
			violations = append(violations, rpc.FieldViolation{Field: fields[i], Description: "must be finite"})
		case math.Abs(x) > c.bound:
			violations = append(violations, rpc.FieldViolation{
				Field:       fields[i],
				Description: fmt.Sprintf("|%.3f| exceeds %.0fnm", x, c.bound),
			})
		}
	}
	return &RangeError{Distortion: d, Bound: c.bound, Violations: violations}
}

// Apply validates d, computes its compensation and writes it. Nothing is
// written when validation fails.
func (c *Controller) Apply(d models.Vector) (models.Vector, error) {
	if err := c.Validate(d); err != nil {
		if c.metrics != nil {
			c.metrics.IncValidationRejections()
		}
		c.logger.Warn("Rejected distortion", zap.Stringer("distortion", d), zap.Error(err))
		return models.Vector{}, err
	}

	comp := c.compensate(d)
	ts := float64(c.now().UnixNano()) / 1e9
	if err := c.seg.WriteCompensation(comp.X, comp.Y, ts); err != nil {
		return models.Vector{}, fmt.Errorf("write compensation: %w", err)
	}

	n := c.applied.Add(1)
	if c.metrics != nil {
		c.metrics.RecordCompensation(comp.X, comp.Y)
	}
	c.logger.Info("Applied compensation",
		zap.Uint64("count", n),
		zap.Stringer("distortion", d),
		zap.Stringer("compensation", comp),
	)
	return comp, nil
}

// Applied returns the number of successful writes.
func (c *Controller) Applied() uint64 {
	return c.applied.Load()
}

// ApplyDistortion implements rpc.CompensationControllerServer.
func (c *Controller) ApplyDistortion(ctx context.Context, in *rpc.DistortionVector) (*rpc.Ack, error) {
	d := models.Vector{X: in.X, Y: in.Y}
	if rid, ok := rpc.RequestIDFromContext(ctx); ok {
		c.logger.Debug("Distortion received", zap.String("request_id", rid.String()), zap.Stringer("distortion", d))
	}

	if _, err := c.Apply(d); err != nil {
		var re *RangeError
		if errors.As(err, &re) {
			return nil, &rpc.ValidationError{Message: re.Error(), Violations: re.Violations}
		}
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return &rpc.Ack{}, nil
}
