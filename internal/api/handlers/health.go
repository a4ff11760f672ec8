package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthChecker probes the two hard dependencies, postgres and redis.
type HealthChecker struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	version string
}

func NewHealthChecker(pool *pgxpool.Pool, rdb *redis.Client, version string) *HealthChecker {
	return &HealthChecker{pool: pool, rdb: rdb, version: version}
}

func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database": h.checkDatabase(ctx),
			"redis":    h.checkRedis(ctx),
		}

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, statusCode, HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()
	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "database pool not initialized"}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&result)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: "fail", Message: err.Error(), LatencyMs: latency}
	}
	return CheckResult{Status: "pass", LatencyMs: latency}
}

func (h *HealthChecker) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()
	if h.rdb == nil {
		return CheckResult{Status: "fail", Message: "redis client not initialized"}
	}

	rCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.rdb.Ping(rCtx).Err()
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: "fail", Message: err.Error(), LatencyMs: latency}
	}
	return CheckResult{Status: "pass", LatencyMs: latency}
}

func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

func Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ready")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
