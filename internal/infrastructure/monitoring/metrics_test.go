package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestInstancesDoNotShareRegistry(t *testing.T) {
	a := NewMetrics("rtdcs_test")
	b := NewMetrics("rtdcs_test")

	a.RecordSample(25)
	a.RecordSample(26)

	assert.Equal(t, 2.0, testutil.ToFloat64(a.SamplesWritten))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SamplesWritten))
	assert.Equal(t, 26.0, testutil.ToFloat64(a.Temperature))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics("rtdcs_test")

	m.RecordRelayed(30)
	m.RecordRelayCall(SideClient, "OK", time.Millisecond)
	m.RecordRelayCall(SideClient, "Unavailable", time.Millisecond)
	m.IncValidationRejections()
	m.RecordCompensation(-1, -2)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.SamplesRelayed)
	assert.Equal(t, uint64(2), snap.RelayCalls)
	assert.Equal(t, uint64(1), snap.RelayErrors)
	assert.Equal(t, uint64(1), snap.ValidationRejections)
	assert.Equal(t, uint64(1), snap.CompensationWrites)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)

	assert.Equal(t, -2.0, testutil.ToFloat64(m.Compensation.WithLabelValues("y")))
}

func TestUnaryServerInterceptor(t *testing.T) {
	m := NewMetrics("rtdcs_test")
	intercept := UnaryServerInterceptor(m)
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	_, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	_, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	})
	require.Error(t, err)

	_, err = intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("plain")
	})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayCalls.WithLabelValues(SideServer, "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayCalls.WithLabelValues(SideServer, "InvalidArgument")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayCalls.WithLabelValues(SideServer, "Unknown")))
}

func TestRegistryGathers(t *testing.T) {
	m := NewMetrics("rtdcs_test")
	m.RecordSample(20)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rtdcs_test_samples_written_total"])
	assert.True(t, names["rtdcs_test_uptime_seconds"])
}
