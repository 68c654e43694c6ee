package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	qerrors "github.com/victornm/quizclient/internal/errors"
	"github.com/victornm/quizclient/internal/session"
	"github.com/victornm/quizclient/internal/telemetry"
)

// ops serves metrics, pprof and health checks of the running client.
type ops struct {
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	httpPort int32
	grpcPort int32
}

func (a *App) initOps() {
	o := &ops{
		httpPort: a.c.Ops.HTTPPort,
		grpcPort: a.c.Ops.GRPCPort,
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})))
	e.GET("/healthz", a.healthz)
	pprof.Register(e, "/debug/pprof")

	o.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", o.httpPort),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	o.health = health.NewServer()
	o.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(slog.Default()))
	healthpb.RegisterHealthServer(o.grpc, o.health)

	a.ops = o
}

// healthz reports whether local storage is readable. A missing session is healthy.
func (a *App) healthz(c *gin.Context) {
	_, err := a.storage.Get(c.Request.Context(), session.StorageKey)
	if err != nil && !qerrors.Is(err, qerrors.CodeNotFound) {
		slog.WarnContext(c.Request.Context(), "ops: storage unhealthy", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) OpsEnabled() bool {
	return a.ops.httpPort > 0 || a.ops.grpcPort > 0
}

// OpsHandler is the HTTP handler of the ops surface.
func (a *App) OpsHandler() http.Handler {
	return a.ops.http.Handler
}

// ServeOps runs the configured ops servers until Close. It returns immediately when neither
// port is configured.
func (a *App) ServeOps(ctx context.Context) error {
	o := a.ops

	var eg errgroup.Group

	if o.grpcPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", o.grpcPort))
		if err != nil {
			return fmt.Errorf("ops: grpc listen: %w", err)
		}

		o.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		eg.Go(func() error {
			slog.InfoContext(ctx, fmt.Sprintf("ops: gRPC listening on port %d", o.grpcPort))
			return o.grpc.Serve(lis)
		})
	}

	if o.httpPort > 0 {
		eg.Go(func() error {
			slog.InfoContext(ctx, fmt.Sprintf("ops: HTTP listening on port %d", o.httpPort))
			if err := o.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "ops: shutdown with error", "error", err)
		return err
	}

	return nil
}

func (o *ops) shutdown(ctx context.Context) {
	o.health.Shutdown()
	o.grpc.GracefulStop()
	if err := o.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "ops: shutdown HTTP failed", "error", err)
	}
}
