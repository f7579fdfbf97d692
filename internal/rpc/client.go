package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"

	"github.com/GriffinCanCode/rtdcs/internal/models"
	"github.com/GriffinCanCode/rtdcs/internal/shared/id"
)

// ClientConfig configures the relay client.
type ClientConfig struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// DefaultClientConfig returns the loopback defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:           "localhost",
		Port:           9090,
		ConnectTimeout: 5 * time.Second,
		CallTimeout:    10 * time.Second,
	}
}

// Addr returns host:port.
func (c ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client holds a single connection to the compensation controller.
// Connect and Disconnect are safe for concurrent use; Send calls are
// serialized so at most one request is in flight.
type Client struct {
	cfg    ClientConfig
	addr   string
	logger *zap.Logger

	mu   sync.Mutex
	conn *grpc.ClientConn

	callMu sync.Mutex
}

// NewClient creates a disconnected client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		addr:   cfg.Addr(),
		logger: logger.With(zap.String("peer", cfg.Addr())),
	}
}

// Addr returns the server address the client dials.
func (c *Client) Addr() string { return c.addr }

// Connected reports whether a connection is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the server and waits until the connection is ready or the
// connect timeout elapses.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: c.cfg.ConnectTimeout,
		}),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(binaryCodec{})),
	}

	conn, err := grpc.NewClient("passthrough:///"+c.addr, opts...)
	if err != nil {
		return &TransportError{Op: OpConnect, Addr: c.addr, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	if err := waitReady(ctx, conn); err != nil {
		_ = conn.Close()
		return &TransportError{Op: OpConnect, Addr: c.addr, Err: err}
	}

	c.conn = conn
	c.logger.Info("Connected to compensation controller")
	return nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return errors.New("connection refused or unreachable")
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("connection not ready: %w", ctx.Err())
		}
	}
}

// Send relays one distortion vector. It returns ErrNotConnected before
// Connect, a *TransportError (after which the client is disconnected) when
// the call could not complete, a *ValidationError when the server rejected
// the payload, or a *RemoteError for any other server status.
func (c *Client) Send(ctx context.Context, v models.Vector) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	rid := id.NewRequestID()
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	callCtx = metadata.AppendToOutgoingContext(callCtx, RequestIDHeader, rid.String())

	in := &DistortionVector{X: v.X, Y: v.Y}
	err := conn.Invoke(callCtx, ApplyDistortionMethod, in, new(Ack))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	classified := classify(c.addr, err)
	if IsTransport(classified) {
		c.drop(conn)
		c.logger.Warn("Relay transport failure, connection dropped",
			zap.String("request_id", rid.String()),
			zap.Error(err),
		)
	}
	return classified
}

// drop closes conn if it is still the current connection.
func (c *Client) drop(conn *grpc.ClientConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	_ = conn.Close()
}

// Disconnect closes the connection. Calling it when not connected is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		c.logger.Debug("Closing relay connection", zap.Error(err))
	}
	c.logger.Info("Disconnected from compensation controller")
}
