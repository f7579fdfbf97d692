package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Diagnostics serves an HTTP handler in the background alongside a
// process's main loop.
type Diagnostics struct {
	srv    *http.Server
	lis    net.Listener
	done   chan struct{}
	logger *zap.Logger
}

// NewDiagnostics creates a stopped diagnostics server for handler.
func NewDiagnostics(addr string, handler http.Handler, logger *zap.Logger) *Diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diagnostics{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the address and serves in a background goroutine.
func (d *Diagnostics) Start() error {
	lis, err := net.Listen("tcp", d.srv.Addr)
	if err != nil {
		return fmt.Errorf("diagnostics listen on %s: %w", d.srv.Addr, err)
	}
	d.lis = lis
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		if err := d.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Diagnostics server failed", zap.Error(err))
		}
	}()

	d.logger.Info("Diagnostics endpoint listening", zap.String("addr", lis.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (d *Diagnostics) Addr() string {
	if d.lis == nil {
		return ""
	}
	return d.lis.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires. It is a no-op before Start.
func (d *Diagnostics) Shutdown(ctx context.Context) error {
	if d.lis == nil {
		return nil
	}
	err := d.srv.Shutdown(ctx)
	<-d.done
	return err
}
