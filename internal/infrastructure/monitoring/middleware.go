package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Relay sides.
const (
	SideClient = "client"
	SideServer = "server"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// UnaryServerInterceptor records every served relay call
func UnaryServerInterceptor(metrics *Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		timer := NewTimer(metrics, SideServer)
		resp, err := handler(ctx, req)
		timer.Stop(status.Code(err).String())
		return resp, err
	}
}

// Timer measures operation duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	side    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, side string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		side:    side,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(code string) {
	t.metrics.RecordRelayCall(t.side, code, time.Since(t.start))
}
