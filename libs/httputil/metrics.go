package httputil

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/samuel/go-metrics/metrics"
)

type metricsHandler struct {
	h            ContextHandler
	statLatency  metrics.Histogram
	statRequests *metrics.Counter
	statResponse map[int]*metrics.Counter
}

// MetricsHandler wraps a handler to provide request count, response class
// counts, and latency metrics.
func MetricsHandler(h ContextHandler, registry metrics.Registry) ContextHandler {
	m := &metricsHandler{
		h:            h,
		statLatency:  metrics.NewUnbiasedHistogram(),
		statRequests: metrics.NewCounter(),
		statResponse: map[int]*metrics.Counter{
			http.StatusOK:                  metrics.NewCounter(),
			http.StatusBadRequest:          metrics.NewCounter(),
			http.StatusForbidden:           metrics.NewCounter(),
			http.StatusNotFound:            metrics.NewCounter(),
			http.StatusInternalServerError: metrics.NewCounter(),
		},
	}
	registry.Add("requests/latency", m.statLatency)
	registry.Add("requests/total", m.statRequests)
	for code, stat := range m.statResponse {
		registry.Add("requests/response/"+strconv.Itoa(code), stat)
	}
	return m
}

func (m *metricsHandler) ServeHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	m.statRequests.Inc(1)
	mrw := &loggingResponseWriter{ResponseWriter: w}
	st := time.Now()
	defer func() {
		m.statLatency.Update(time.Since(st).Nanoseconds() / 1e3)
		if stat := m.statResponse[mrw.statusCode]; stat != nil {
			stat.Inc(1)
		}
	}()
	m.h.ServeHTTP(ctx, mrw, r)
}
