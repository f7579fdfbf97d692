package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestDiagnosticsLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	d := NewDiagnostics("127.0.0.1:0", handler, zap.NewNop())
	assert.Empty(t, d.Addr())
	require.NoError(t, d.Shutdown(context.Background()))

	require.NoError(t, d.Start())
	require.NotEmpty(t, d.Addr())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + d.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	_, err = client.Get("http://" + d.Addr() + "/")
	assert.Error(t, err)
}

func TestDiagnosticsAddressInUse(t *testing.T) {
	first := NewDiagnostics("127.0.0.1:0", http.NotFoundHandler(), nil)
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewDiagnostics(first.Addr(), http.NotFoundHandler(), nil)
	assert.Error(t, second.Start())
}
