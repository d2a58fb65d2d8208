// Package grpcserver runs the gRPC health-check listener.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "payables"

const (
	defaultProbeInterval = 10 * time.Second
	probeTimeout         = 2 * time.Second
	stopTimeout          = 5 * time.Second
)

// Pinger checks a backing dependency.
type Pinger func(ctx context.Context) error

// Health serves grpc.health.v1 and keeps its status in line with storage.
type Health struct {
	addr     string
	ping     Pinger
	interval time.Duration
	log      *zap.Logger

	hs  *health.Server
	srv *grpc.Server
}

// NewHealth constructs the listener. A non-positive interval uses the default.
func NewHealth(addr string, ping Pinger, interval time.Duration, log *zap.Logger) *Health {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	hs := health.NewServer()
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	healthpb.RegisterHealthServer(srv, hs)
	return &Health{addr: addr, ping: ping, interval: interval, log: log, hs: hs, srv: srv}
}

// Probe pings storage once and publishes the result.
func (h *Health) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.ping(pctx); err != nil {
		h.log.Warn("storage probe failed", zap.Error(err))
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run listens on addr and probes storage until ctx is done.
func (h *Health) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", h.addr, err)
	}
	return h.serve(ctx, lis)
}

func (h *Health) serve(ctx context.Context, lis net.Listener) error {
	h.Probe(ctx)

	errCh := make(chan error, 1)
	go func() {
		h.log.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
		errCh <- h.srv.Serve(lis)
	}()

	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			h.Probe(ctx)
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ctx.Done():
			h.hs.Shutdown()
			done := make(chan struct{})
			go func() {
				h.srv.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(stopTimeout):
				h.srv.Stop()
			}
			return nil
		}
	}
}
