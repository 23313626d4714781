package observability

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of RPC requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wealth_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wealth_rpc_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wealth_rpc_active_requests",
			Help: "Number of active RPC requests",
		},
		[]string{"procedure"},
	)

	// ImportPreviewsTotal counts import previews by outcome
	ImportPreviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wealth_import_previews_total",
			Help: "Total number of import previews by result",
		},
		[]string{"result"},
	)

	// ImportGroupsPerPreview tracks how many groups a preview produces
	ImportGroupsPerPreview = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wealth_import_groups_per_preview",
			Help:    "Number of groups produced by one import preview",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// ImportedRowsTotal counts ledger rows committed from imports
	ImportedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wealth_imported_rows_total",
			Help: "Total number of ledger rows committed from imports",
		},
	)

	// StagingSessions tracks live staging sessions
	StagingSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wealth_staging_sessions",
			Help: "Number of live staging sessions",
		},
		[]string{"kind"},
	)

	// TransactionSubmissionsTotal counts wizard submissions by kind and outcome
	TransactionSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wealth_transaction_submissions_total",
			Help: "Total number of staged transaction submissions",
		},
		[]string{"kind", "result"},
	)
)

// NewMetricsInterceptor creates an interceptor that collects Prometheus metrics
func NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure

			// Track active requests
			ActiveRequests.WithLabelValues(procedure).Inc()
			defer ActiveRequests.WithLabelValues(procedure).Dec()

			// Track duration
			start := time.Now()
			defer func() {
				duration := time.Since(start).Seconds()
				RequestDuration.WithLabelValues(procedure).Observe(duration)
			}()

			// Execute request
			resp, err := next(ctx, req)

			// Track total requests with status code
			code := "ok"
			if err != nil {
				if connectErr, ok := err.(*connect.Error); ok {
					code = connectErr.Code().String()
				} else {
					code = "unknown"
				}
			}
			RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
