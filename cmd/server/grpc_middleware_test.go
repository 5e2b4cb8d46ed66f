package main

import (
	"context"
	"errors"
	"testing"

	"marquee/internal/observability"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type stubLimiter struct {
	calls int
	err   error
}

func (s *stubLimiter) Wait(ctx context.Context) error {
	s.calls++
	return s.err
}

type stubServerStream struct {
	ctx       context.Context
	recvCalls int
	recvErr   error
}

func (s *stubServerStream) Context() context.Context { return s.ctx }
func (s *stubServerStream) RecvMsg(m any) error {
	s.recvCalls++
	return s.recvErr
}
func (s *stubServerStream) SendMsg(m any) error { return nil }
func (s *stubServerStream) SetHeader(md metadata.MD) error {
	return nil
}
func (s *stubServerStream) SendHeader(md metadata.MD) error {
	return nil
}
func (s *stubServerStream) SetTrailer(md metadata.MD) {}

const confirmMethod = "/marquee.placeorder.v1.PlaceOrderService/Confirm"

func TestRateLimitUnaryInterceptor_CallsLimiter(t *testing.T) {
	limiter := &stubLimiter{}
	metrics := observability.NewMetrics()
	interceptor := rateLimitUnaryInterceptor(limiter, callObserver{metrics: metrics, prom: observability.NewProm("marquee"), logger: discardLogger()})

	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: confirmMethod}, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected limiter to be called once, got %d", limiter.calls)
	}
	if snap := metrics.Snapshot(); snap.Methods[confirmMethod].Count != 1 {
		t.Fatalf("expected one tracked call, got %+v", snap.Methods)
	}
}

func TestRateLimitUnaryInterceptor_LimiterErrorSkipsHandler(t *testing.T) {
	limiter := &stubLimiter{err: context.DeadlineExceeded}
	interceptor := rateLimitUnaryInterceptor(limiter, callObserver{})

	called := false
	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: confirmMethod}, func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	})
	if status.Code(err) != codes.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if called {
		t.Fatalf("handler must not run when the limiter fails")
	}
}

func TestRateLimitUnaryInterceptor_CountsErrors(t *testing.T) {
	metrics := observability.NewMetrics()
	interceptor := rateLimitUnaryInterceptor(nil, callObserver{metrics: metrics, logger: discardLogger()})

	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: confirmMethod}, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "transaction")
	})
	if err == nil {
		t.Fatalf("expected handler error")
	}
	if snap := metrics.Snapshot(); snap.TotalErrors != 1 {
		t.Fatalf("expected one error, got %d", snap.TotalErrors)
	}
}

func TestRateLimitedServerStream_RecvMsgCallsLimiter(t *testing.T) {
	limiter := &stubLimiter{}
	stream := &stubServerStream{ctx: context.Background()}
	wrapped := &rateLimitedServerStream{
		ServerStream: stream,
		limiter:      limiter,
	}

	if err := wrapped.RecvMsg(&struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected limiter to be called once, got %d", limiter.calls)
	}
	if stream.recvCalls != 1 {
		t.Fatalf("expected recv to be called once, got %d", stream.recvCalls)
	}
}

func TestRateLimitStreamInterceptor_WrapsStream(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("limited")}
	interceptor := rateLimitStreamInterceptor(limiter, callObserver{})

	err := interceptor(nil, &stubServerStream{ctx: context.Background()}, &grpc.StreamServerInfo{FullMethod: "/svc/Stream"}, func(srv any, stream grpc.ServerStream) error {
		return stream.RecvMsg(&struct{}{})
	})
	if err == nil || err.Error() != "limited" {
		t.Fatalf("expected limiter error from RecvMsg, got %v", err)
	}
}

func TestShouldTrackMethod(t *testing.T) {
	if shouldTrackMethod("/grpc.health.v1.Health/Check") || shouldTrackMethod("") {
		t.Fatalf("health and empty methods must not be tracked")
	}
	if !shouldTrackMethod(confirmMethod) {
		t.Fatalf("expected %s to be tracked", confirmMethod)
	}
}
