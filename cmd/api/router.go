package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	c "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	staginghandler "github.com/FACorreiaa/wealth-tracker/internal/domain/staging/handler"
	"github.com/FACorreiaa/wealth-tracker/pkg/connectjson"
	"github.com/FACorreiaa/wealth-tracker/pkg/interceptors"
	"github.com/FACorreiaa/wealth-tracker/pkg/observability"
)

const defaultMaxBodyBytes int64 = 8 << 20 // 8 MiB, exports can be large

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authentication interceptor will reject requests")
	}

	publicProcedures := []string{
		staginghandler.PreviewCostBasisProcedure,
	}

	tracer := otel.GetTracerProvider().Tracer("wealth-tracker/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor("X-Request-ID"),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		chain = append(chain, interceptors.NewRateLimitInterceptor(limiter))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
		interceptors.NewAuthInterceptor(jwtSecret, publicProcedures...),
		observability.NewMetricsInterceptor(),
	)

	// Register Connect RPC routes
	registerConnectRoutes(mux, deps,
		connect.WithInterceptors(chain...),
		connectjson.WithCodec(),
	)

	// Register health and metrics routes
	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   c.AllowedMethods(),
		AllowedHeaders:   append(c.AllowedHeaders(), "Authorization", "X-Request-ID"),
		ExposedHeaders:   append(c.ExposedHeaders(), "X-Request-ID"),
		AllowCredentials: true,
		MaxAge:           7200, // Cache preflights for 2 hours
	})

	return corsHandler.Handler(mux)
}

// registerConnectRoutes registers all Connect RPC services
func registerConnectRoutes(mux *http.ServeMux, deps *Dependencies, opts ...connect.HandlerOption) {
	stagingPath, stagingHandler := deps.StagingHandler.Routes(opts...)
	mux.Handle(stagingPath, wrapStagingRoute(stagingHandler, deps.Config.Server.MaxBodyBytes))
	deps.Logger.Info("registered Connect RPC service", "path", stagingPath)

	deps.Logger.Info("Connect RPC routes configured")
}

// wrapStagingRoute caps request bodies and keeps staged data out of caches.
func wrapStagingRoute(next http.Handler, maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		next.ServeHTTP(w, r)
	})
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Extended health with details on dependencies
	mux.HandleFunc("/health/details", func(w http.ResponseWriter, r *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":       {Status: "ok"},
			"sessions": {Status: "ok"},
			"ready":    {Status: "ok"},
		}

		if err := deps.DB.Health(r.Context()); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			result["ready"] = status{Status: "fail", Detail: "db unavailable"}
		}

		if deps.SessionCache == nil {
			result["sessions"] = status{Status: "fail", Detail: "session cache not initialized"}
		} else if n := deps.SessionCache.ItemCount(); n > 0 {
			result["sessions"] = status{Status: "ok", Detail: fmt.Sprintf("%d open", n)}
		}

		for _, v := range result {
			if v.Status == "fail" {
				w.WriteHeader(http.StatusServiceUnavailable)
				if err := json.NewEncoder(w).Encode(result); err != nil {
					deps.Logger.Error("failed to encode health details", slog.Any("error", err))
				}
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
