package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const HeaderRequestID = "X-Request-Id"

type Metrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	attemptsCompleted prometheus.Counter
}

// NewMetrics registers the client's collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizclient",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend requests by operation and HTTP status, status 0 is a transport failure.",
		}, []string{"operation", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizclient",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		attemptsCompleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "quizclient",
			Subsystem: "attempt",
			Name:      "completed_total",
			Help:      "Attempts the client observed reaching completion.",
		}),
	}
}

func (m *Metrics) AttemptCompleted() {
	if m == nil {
		return
	}
	m.attemptsCompleted.Inc()
}

type operationKey struct{}

// WithOperation names the backend operation a request belongs to, used as a metric label.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// MonitorHTTP wraps rt with request IDs, logging and metrics. m may be nil.
func MonitorHTTP(rt http.RoundTripper, m *Metrics) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return roundTripper{next: rt, metrics: m}
}

type roundTripper struct {
	next    http.RoundTripper
	metrics *Metrics
}

func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if req.Header.Get(HeaderRequestID) == "" {
		req = req.Clone(ctx)
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}

	op := operation(ctx)
	attrs := []any{"operation", op, "request_id", req.Header.Get(HeaderRequestID)}

	slog.DebugContext(ctx, fmt.Sprintf("gateway: starting %s %s", req.Method, req.URL.Path), attrs...)
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	if t.metrics != nil {
		t.metrics.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
		t.metrics.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}

	if err != nil {
		slog.WarnContext(ctx, fmt.Sprintf("gateway: %s %s failed", req.Method, req.URL.Path), append(attrs, "error", err)...)
		return resp, err
	}

	slog.DebugContext(ctx, fmt.Sprintf("gateway: finished %s %s", req.Method, req.URL.Path),
		append(attrs, "status", status, "elapsed", elapsed)...)
	return resp, nil
}
