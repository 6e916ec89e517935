// Package telemetry publishes process counters through expvar (/debug/vars).
package telemetry

import (
	"bufio"
	"errors"
	"expvar"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	apiRequestsTotal         = expvar.NewInt("api_requests_total")
	apiRequestsErrorsTotal   = expvar.NewInt("api_requests_errors_total")
	apiRequestLatencyMsTotal = expvar.NewInt("api_request_latency_ms_total")
	apiRequestsByRoute       = expvar.NewMap("api_requests_by_route")
	apiRequestErrorsByRoute  = expvar.NewMap("api_request_errors_by_route")

	wsConnectionsActive = expvar.NewInt("ws_connections_active")
	wsConnectionsTotal  = expvar.NewInt("ws_connections_total")
	wsMessagesDropped   = expvar.NewInt("ws_messages_dropped_total")

	pagesLoadedTotal    = expvar.NewInt("engine_pages_loaded_total")
	pagesFailedTotal    = expvar.NewInt("engine_pages_failed_total")
	pageLoadMsTotal     = expvar.NewInt("engine_page_load_ms_total")
	coinsLoadedTotal    = expvar.NewInt("engine_coins_loaded_total")
	pullFailuresBySrc   = expvar.NewMap("engine_pull_failures_by_source")
	quotesAppliedBySrc  = expvar.NewMap("engine_quotes_applied_by_source")
	quotesDroppedBySrc  = expvar.NewMap("engine_quotes_dropped_by_source")
	cachePublishFailure = expvar.NewInt("cache_publish_failures_total")
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// APIRequestMetricsMiddleware records request volume, error rate and latency per chi route.
func APIRequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		key := r.Method + " " + requestRoute(r)

		apiRequestsTotal.Add(1)
		apiRequestsByRoute.Add(key, 1)
		if recorder.status >= http.StatusBadRequest {
			apiRequestsErrorsTotal.Add(1)
			apiRequestErrorsByRoute.Add(key, 1)
		}
		apiRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	if p := strings.TrimSpace(r.URL.Path); p != "" {
		return p
	}
	return "/unknown"
}

func WSConnectionOpened() {
	wsConnectionsTotal.Add(1)
	wsConnectionsActive.Add(1)
}

func WSConnectionClosed() {
	wsConnectionsActive.Add(-1)
}

// WSMessageDropped counts updates skipped for a subscriber that could not keep up.
func WSMessageDropped() {
	wsMessagesDropped.Add(1)
}

func CachePublishFailed() {
	cachePublishFailure.Add(1)
}

// EngineObserver feeds engine lifecycle signals into expvar.
type EngineObserver struct{}

func (EngineObserver) PageLoaded(page, coins int, took time.Duration) {
	pagesLoadedTotal.Add(1)
	coinsLoadedTotal.Add(int64(coins))
	pageLoadMsTotal.Add(took.Milliseconds())
}

func (EngineObserver) PageFailed(page int, err error) {
	pagesFailedTotal.Add(1)
}

func (EngineObserver) PullFailed(source string, err error) {
	pullFailuresBySrc.Add(source, 1)
}

func (EngineObserver) QuoteApplied(source string) {
	quotesAppliedBySrc.Add(source, 1)
}

func (EngineObserver) QuoteDropped(source, symbol string) {
	quotesDroppedBySrc.Add(source, 1)
}
