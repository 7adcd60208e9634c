// Package limiter throttles Flight requests with a token bucket.
package limiter

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/23skdu/cscgraph/internal/metrics"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config holds rate limiter configuration
type Config struct {
	RPS     float64       `envconfig:"RATE_LIMIT_RPS" default:"0"`         // 0 means disabled
	Burst   int           `envconfig:"RATE_LIMIT_BURST" default:"0"`       // 0 means use RPS
	MaxWait time.Duration `envconfig:"RATE_LIMIT_MAX_WAIT" default:"1s"` // longest a request queues for a token
}

// RateLimiter wraps the token bucket limiter
type RateLimiter struct {
	limiter *rate.Limiter
	maxWait time.Duration
}

// NewRateLimiter returns a limiter; RPS <= 0 yields one that admits
// everything.
func NewRateLimiter(cfg Config) *RateLimiter {
	if cfg.RPS <= 0 {
		return &RateLimiter{}
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		maxWait: cfg.MaxWait,
	}
}

// Enabled reports whether requests are throttled at all.
func (l *RateLimiter) Enabled() bool { return l.limiter != nil }

func (l *RateLimiter) admit(ctx context.Context, fullMethod string) error {
	if l.limiter == nil {
		return nil
	}
	method := path.Base(fullMethod)

	if l.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return status.FromContextError(err).Err()
		}
		// Wait fails early when the token would arrive after the deadline.
		metrics.RateLimitRequestsTotal.WithLabelValues(method, "throttled").Inc()
		return status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	metrics.RateLimitRequestsTotal.WithLabelValues(method, "allowed").Inc()
	return nil
}

// UnaryInterceptor returns a gRPC unary interceptor
func (l *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := l.admit(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor returns a gRPC stream interceptor
func (l *RateLimiter) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := l.admit(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}
