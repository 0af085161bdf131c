// Package api wires HTTP handlers for job control and snapshot queries.
package api

import (
	"log/slog"
	"net/http"

	"github.com/threadsight/threadsight/internal/metrics"
)

// NewRouter assembles the service mux with metrics instrumentation.
func NewRouter(pipeline *PipelineHandler, data *DataHandler, collector *metrics.Collector, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/pipeline/run", pipeline.Run)
	mux.HandleFunc("GET /api/pipeline/status/{id}", pipeline.Status)
	mux.HandleFunc("GET /api/pipeline/jobs", pipeline.Jobs)

	mux.HandleFunc("GET /api/sources", data.Sources)
	mux.HandleFunc("GET /api/data/{source}", data.Snapshot)
	mux.HandleFunc("GET /api/data/{source}/metadata", data.Metadata)
	mux.HandleFunc("GET /api/data/{source}/categories", data.Categories)
	mux.HandleFunc("GET /api/data/{source}/insights", data.Insights)
	mux.HandleFunc("GET /api/data/{source}/insights/{id}", data.Insight)
	mux.HandleFunc("GET /api/data/{source}/history", data.History)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", collector.Handler())

	return collector.InstrumentHandler(mux)
}
