package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/observability"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type rateLimiter interface {
	Wait(ctx context.Context) error
}

// callObserver reports finished calls to the JSON metrics, Prometheus and
// the log. Any field may be nil.
type callObserver struct {
	metrics *observability.Metrics
	prom    *observability.Prom
	logger  *slog.Logger
}

func (o callObserver) start(method string) func(err error) {
	if !shouldTrackMethod(method) {
		return func(error) {}
	}
	span := o.metrics.Start(method)
	began := time.Now()
	return func(err error) {
		span.End(err)
		elapsed := time.Since(began)
		if o.prom != nil {
			o.prom.ObserveCall(method, status.Code(err).String(), elapsed)
		}
		if err != nil && o.logger != nil {
			o.logger.Warn("grpc call failed", "method", method, "elapsed", elapsed, "code", status.Code(err).String(), "err", err)
		}
	}
}

type rateLimitedServerStream struct {
	grpc.ServerStream
	limiter rateLimiter
}

func (s *rateLimitedServerStream) RecvMsg(m any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(s.Context()); err != nil {
			return err
		}
	}
	return s.ServerStream.RecvMsg(m)
}

func rateLimitUnaryInterceptor(limiter rateLimiter, obs callObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		end := obs.start(info.FullMethod)
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				end(err)
				return nil, status.FromContextError(err).Err()
			}
		}
		resp, err := handler(ctx, req)
		end(err)
		return resp, err
	}
}

func rateLimitStreamInterceptor(limiter rateLimiter, obs callObserver) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		end := obs.start(info.FullMethod)
		if limiter != nil {
			stream = &rateLimitedServerStream{ServerStream: stream, limiter: limiter}
		}
		err := handler(srv, stream)
		end(err)
		return err
	}
}

func shouldTrackMethod(method string) bool {
	return method != "" && !strings.HasPrefix(method, "/grpc.reflection.") && !strings.HasPrefix(method, "/grpc.health.")
}
