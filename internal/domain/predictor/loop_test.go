package predictor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/rtdcs/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/rpc"
	"github.com/GriffinCanCode/rtdcs/internal/shm"
)

type fakeReader struct {
	mu    sync.Mutex
	count uint32
	err   error
}

func (r *fakeReader) ReadTemperature() (shm.TemperatureReading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return shm.TemperatureReading{}, r.err
	}
	r.count++
	return shm.TemperatureReading{Celsius: 30, Timestamp: float64(r.count), SampleCount: r.count}, nil
}

// fakeSender fails sends according to script; an entry of nil succeeds.
type fakeSender struct {
	mu         sync.Mutex
	connected  bool
	connects   int
	connectErr error
	script     []error
	sent       []models.Vector
}

func (s *fakeSender) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSender) Send(_ context.Context, v models.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return rpc.ErrNotConnected
	}
	var err error
	if len(s.script) > 0 {
		err, s.script = s.script[0], s.script[1:]
	}
	if rpc.IsTransport(err) {
		s.connected = false
	}
	if err == nil {
		s.sent = append(s.sent, v)
	}
	return err
}

func (s *fakeSender) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func transportErr() error {
	return &rpc.TransportError{Op: rpc.OpSend, Addr: "peer", Err: status.Error(codes.Unavailable, "down")}
}

func testConfig(samples, maxFailures int) Config {
	return Config{Period: time.Millisecond, Samples: samples, ProgressEvery: 5, MaxFailures: maxFailures}
}

func TestRunRelaysPredictions(t *testing.T) {
	sender := &fakeSender{connected: true}
	metrics := monitoring.NewMetrics("rtdcs_test")
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(12, 1), zap.NewNop(), metrics)

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, sender.sent, 12)
	want := models.Zeeman(models.DefaultZeeman())(30)
	assert.Equal(t, want, sender.sent[0])
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.SamplesRelayed))
	assert.Equal(t, 12.0, testutil.ToFloat64(metrics.RelayCalls.WithLabelValues(monitoring.SideClient, "OK")))
}

func TestRunConnectsWhenDisconnected(t *testing.T) {
	sender := &fakeSender{}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(3, 1), nil, nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 1, sender.connects)
	assert.Len(t, sender.sent, 3)
}

func TestRunAbortsOnFirstTransportFailureByDefault(t *testing.T) {
	sender := &fakeSender{connected: true, script: []error{nil, transportErr()}}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(10, 0), nil, nil)

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.True(t, rpc.IsTransport(err))
	assert.Len(t, sender.sent, 1)
}

func TestRunReconnectsAfterTransportFailure(t *testing.T) {
	sender := &fakeSender{connected: true, script: []error{transportErr(), nil, nil}}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(4, 3), nil, nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 1, sender.connects)
	assert.Len(t, sender.sent, 3)
}

func TestRunContinuesAfterValidationError(t *testing.T) {
	rejected := &rpc.ValidationError{Message: "out of range"}
	sender := &fakeSender{connected: true, script: []error{rejected, rejected, nil}}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(5, 1), nil, nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Len(t, sender.sent, 3)
	assert.True(t, sender.Connected())
}

func TestRunStopsWhenBreakerOpens(t *testing.T) {
	sender := &fakeSender{connectErr: errors.New("connection refused")}
	breaker := resilience.New("relay", resilience.Settings{Timeout: time.Minute})
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, breaker, testConfig(0, 5), nil, nil)

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 3, sender.connects)
	assert.Equal(t, resilience.StateOpen, breaker.State())
}

func TestRunReturnsReadError(t *testing.T) {
	reader := &fakeReader{err: shm.ErrNotAttached}
	l := NewLoop(reader, models.Zeeman(models.DefaultZeeman()), &fakeSender{connected: true}, nil, testConfig(5, 1), nil, nil)

	assert.ErrorIs(t, l.Run(context.Background()), shm.ErrNotAttached)
}

func TestRunStopsOnCancel(t *testing.T) {
	sender := &fakeSender{connected: true}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(0, 1), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) >= 3
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestRunSkipsUntilFirstSample(t *testing.T) {
	sender := &fakeSender{connected: true}
	reader := &zeroReader{}
	l := NewLoop(reader, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(3, 1), nil, nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Empty(t, sender.sent)
}

type zeroReader struct{}

func (zeroReader) ReadTemperature() (shm.TemperatureReading, error) {
	return shm.TemperatureReading{}, nil
}

// racedSender reports disconnected, but Connect finds a connection that
// was re-established concurrently.
type racedSender struct {
	fakeSender
}

func (s *racedSender) Connected() bool { return false }

func (s *racedSender) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.connected = true
	return rpc.ErrAlreadyConnected
}

func TestReconnectLoggedOnlyWhenConnectSucceeds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	raced := &racedSender{}
	l := NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), raced, nil, testConfig(2, 1), zap.New(core), nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 2, raced.connects)
	assert.Len(t, raced.sent, 2)
	assert.Zero(t, logs.FilterMessage("Relay reconnected").Len())

	core, logs = observer.New(zap.InfoLevel)
	sender := &fakeSender{}
	l = NewLoop(&fakeReader{}, models.Zeeman(models.DefaultZeeman()), sender, nil, testConfig(2, 1), zap.New(core), nil)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("Relay reconnected").Len())
}
