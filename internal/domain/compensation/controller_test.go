package compensation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

// segments creates an owner segment and a read-write attachment to it.
func segments(t *testing.T) (owner, writer *shm.Segment) {
	t.Helper()
	r := strings.NewReplacer("/", "_", " ", "_")
	name := fmt.Sprintf("/rtdcs_comp_%d_%s", os.Getpid(), r.Replace(t.Name()))
	_ = os.Remove(shm.Path(name))

	pending, err := shm.CreateOrRecover(name, shm.SegmentSize)
	require.NoError(t, err)
	owner, err = pending.Initialize()
	require.NoError(t, err)
	t.Cleanup(owner.Destroy)

	writer, err = shm.AttachReadWrite(name, shm.SegmentSize)
	require.NoError(t, err)
	t.Cleanup(writer.Detach)
	return owner, writer
}

func countingNegation(calls *atomic.Int32) models.CompensationFunc {
	return func(d models.Vector) models.Vector {
		calls.Add(1)
		return models.Negation(d)
	}
}

func fixedClock() time.Time { return time.Unix(1700000000, 500000000) }

func TestApplyWritesNegatedDistortion(t *testing.T) {
	owner, writer := segments(t)
	var calls atomic.Int32
	metrics := monitoring.NewMetrics("rtdcs_test")
	c := NewController(writer, countingNegation(&calls), WithClock(fixedClock), WithMetrics(metrics))

	comp, err := c.Apply(models.Vector{X: 5.7, Y: 4.6})
	require.NoError(t, err)
	assert.Equal(t, models.Vector{X: -5.7, Y: -4.6}, comp)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), c.Applied())

	got, err := owner.ReadCompensation()
	require.NoError(t, err)
	assert.Equal(t, -5.7, got.X)
	assert.Equal(t, -4.6, got.Y)
	assert.InDelta(t, 1700000000.5, got.Timestamp, 1e-6)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CompensationWrites))
}

func TestApplyRejectsOutOfRange(t *testing.T) {
	owner, writer := segments(t)
	var calls atomic.Int32
	metrics := monitoring.NewMetrics("rtdcs_test")
	c := NewController(writer, countingNegation(&calls), WithMetrics(metrics))

	_, err := c.Apply(models.Vector{X: 1, Y: 2})
	require.NoError(t, err)
	before, err := owner.ReadCompensation()
	require.NoError(t, err)

	_, err = c.Apply(models.Vector{X: 1500, Y: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDistortionOutOfRange)

	var re *RangeError
	require.ErrorAs(t, err, &re)
	require.Len(t, re.Violations, 1)
	assert.Equal(t, "x_nm", re.Violations[0].Field)

	after, err := owner.ReadCompensation()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ValidationRejections))
}

func TestValidate(t *testing.T) {
	c := NewController(nil, models.Negation)

	tests := []struct {
		name       string
		in         models.Vector
		violations []string
	}{
		{"origin", models.Vector{}, nil},
		{"at bound", models.Vector{X: 1000, Y: -1000}, nil},
		{"x over", models.Vector{X: 1000.001}, []string{"x_nm"}},
		{"y under", models.Vector{Y: -1500}, []string{"y_nm"}},
		{"both", models.Vector{X: 2000, Y: 2000}, []string{"x_nm", "y_nm"}},
		{"nan", models.Vector{X: math.NaN()}, []string{"x_nm"}},
		{"inf", models.Vector{Y: math.Inf(-1)}, []string{"y_nm"}},
		{"nan beside valid", models.Vector{X: 5, Y: math.NaN()}, []string{"y_nm"}},
		{"inf and over", models.Vector{X: math.Inf(1), Y: 1001}, []string{"x_nm", "y_nm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.in)
			if tt.violations == nil {
				assert.NoError(t, err)
				return
			}
			var re *RangeError
			require.ErrorAs(t, err, &re)
			var fields []string
			for _, v := range re.Violations {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tt.violations, fields)
		})
	}
}

func TestValidateMatchesAxisBound(t *testing.T) {
	c := NewController(nil, models.Negation)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 10000; i++ {
		d := models.Vector{X: rng.Float64()*5000 - 2500, Y: rng.Float64()*5000 - 2500}
		within := math.Abs(d.X) <= DefaultBound && math.Abs(d.Y) <= DefaultBound

		err := c.Validate(d)
		if within {
			require.NoError(t, err, "distortion %s", d)
			continue
		}
		var re *RangeError
		require.ErrorAs(t, err, &re, "distortion %s", d)
		assert.NotEmpty(t, re.Violations)
	}
}

func TestWithBound(t *testing.T) {
	c := NewController(nil, models.Negation, WithBound(10))
	assert.Error(t, c.Validate(models.Vector{X: 11}))
	assert.NoError(t, c.Validate(models.Vector{X: 10}))
}

func TestApplyAfterDetachFails(t *testing.T) {
	_, writer := segments(t)
	c := NewController(writer, models.Negation)
	writer.Detach()

	_, err := c.Apply(models.Vector{X: 1, Y: 1})
	assert.ErrorIs(t, err, shm.ErrNotAttached)

	_, err = c.ApplyDistortion(context.Background(), &rpc.DistortionVector{X: 1, Y: 1})
	assert.Error(t, err)
	assert.False(t, rpc.IsValidation(err))
}

func TestRelayEndToEnd(t *testing.T) {
	owner, writer := segments(t)
	var calls atomic.Int32
	c := NewController(writer, countingNegation(&calls), WithLogger(zap.NewNop()))

	srv := rpc.NewServer(rpc.ServerConfig{Host: "127.0.0.1"}, c, zap.NewNop(), rpc.LoggingInterceptor(zap.NewNop()))
	require.NoError(t, srv.Start())
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	defer func() {
		srv.Stop()
		assert.NoError(t, <-done)
	}()

	cfg := rpc.DefaultClientConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = srv.Addr().(*net.TCPAddr).Port
	client := rpc.NewClient(cfg, zap.NewNop())
	require.NoError(t, client.Connect(context.Background()))
	defer client.Disconnect()

	require.NoError(t, client.Send(context.Background(), models.Vector{X: 5.7, Y: 4.6}))
	got, err := owner.ReadCompensation()
	require.NoError(t, err)
	assert.Equal(t, -5.7, got.X)
	assert.Equal(t, -4.6, got.Y)

	err = client.Send(context.Background(), models.Vector{X: 1500, Y: 0})
	var ve *rpc.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, "x_nm", ve.Violations[0].Field)
	assert.True(t, client.Connected())

	unchanged, err := owner.ReadCompensation()
	require.NoError(t, err)
	assert.Equal(t, got, unchanged)
	assert.Equal(t, int32(1), calls.Load())
}
