package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gamechar/internal/pipeline"
)

// Metrics serves the Prometheus registry, pipeline collectors included.
func Metrics() http.Handler {
	pipeline.RegisterMetrics()
	return promhttp.Handler()
}
