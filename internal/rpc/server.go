package rpc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// ServerConfig configures the relay server.
type ServerConfig struct {
	Host string
	Port int // 0 picks a free port

	// MaxConcurrentStreams bounds in-flight requests per connection.
	MaxConcurrentStreams uint32
}

// DefaultServerConfig listens on all interfaces on the well-known port.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:                 9090,
		MaxConcurrentStreams: 16,
	}
}

// ServerState is the server lifecycle position.
type ServerState int

const (
	StateCreated ServerState = iota
	StateStarted
	StateServing
	StateStopped
)

func (s ServerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateServing:
		return "serving"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server exposes a CompensationControllerServer over gRPC. A stopped server
// cannot be restarted.
type Server struct {
	cfg     ServerConfig
	handler CompensationControllerServer
	logger  *zap.Logger

	mu    sync.Mutex
	state ServerState
	lis   net.Listener
	srv   *grpc.Server
}

// NewServer builds a server. Interceptors run in the given order around
// every call.
func NewServer(cfg ServerConfig, handler CompensationControllerServer, logger *zap.Logger, interceptors ...grpc.UnaryServerInterceptor) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = DefaultServerConfig().MaxConcurrentStreams
	}

	srv := grpc.NewServer(
		grpc.ForceServerCodec(binaryCodec{}),
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: false,
		}),
	)
	RegisterCompensationControllerServer(srv, handler)

	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		srv:     srv,
	}
}

// Start binds the listener. It is separate from Serve so callers can learn
// the bound address before blocking.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Server) startLocked() error {
	switch s.state {
	case StateStopped:
		return ErrServerStopped
	case StateStarted, StateServing:
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.lis = lis
	s.state = StateStarted
	s.logger.Info("Relay server listening", zap.String("addr", lis.Addr().String()))
	return nil
}

// Serve blocks handling requests until Stop is called from another
// goroutine. It starts the server first if needed and returns nil after a
// clean stop.
func (s *Server) Serve() error {
	s.mu.Lock()
	if err := s.startLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state == StateServing {
		s.mu.Unlock()
		return errors.New("rpc server already serving")
	}
	s.state = StateServing
	lis := s.lis
	s.mu.Unlock()

	err := s.srv.Serve(lis)
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		s.mu.Lock()
		stopped := s.state == StateStopped
		s.state = StateStopped
		s.mu.Unlock()
		if stopped {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server, letting in-flight handlers finish, and
// unblocks Serve. It is idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	prev := s.state
	s.state = StateStopped
	lis := s.lis
	s.mu.Unlock()

	switch prev {
	case StateStopped:
		return
	case StateCreated:
		s.srv.Stop()
	case StateStarted:
		s.srv.Stop()
		_ = lis.Close()
	case StateServing:
		s.srv.GracefulStop()
	}
	s.logger.Info("Relay server stopped")
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// State returns the lifecycle state.
func (s *Server) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
