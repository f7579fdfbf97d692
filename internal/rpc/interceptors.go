package rpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/rtdcs/internal/shared/id"
)

// RequestIDHeader carries the caller's request id in call metadata.
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by LoggingInterceptor.
func RequestIDFromContext(ctx context.Context) (id.RequestID, bool) {
	rid, ok := ctx.Value(requestIDKey{}).(id.RequestID)
	return rid, ok
}

// LoggingInterceptor tags each call with the caller's request id, or a new
// one when the caller sent none or a malformed one, and logs its outcome.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := incomingRequestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, rid)
		start := time.Now()

		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("request_id", rid.String()),
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.String("code", status.Code(err).String()), zap.Error(err))
			logger.Warn("Relay call failed", fields...)
		} else {
			logger.Debug("Relay call handled", fields...)
		}
		return resp, err
	}
}

func incomingRequestID(ctx context.Context) id.RequestID {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDHeader); len(vals) > 0 && id.IsValid(vals[0]) {
			return id.RequestID(vals[0])
		}
	}
	return id.NewRequestID()
}

// RateLimitInterceptor rejects calls beyond rps with ResourceExhausted.
// A non-positive rps disables limiting.
func RateLimitInterceptor(rps float64, burst int) grpc.UnaryServerInterceptor {
	if rps <= 0 {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", info.FullMethod)
		}
		return handler(ctx, req)
	}
}
