package api

import (
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/spatial/internal/spatial"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP endpoints of the service:
//
//	GET /points   build a point from lat, lng and srid query parameters
//	GET /geocode  geocode one or more address query parameters
//	GET /healthz  liveness probe
//	GET /metrics  prometheus metrics from gatherer
func NewRouter(
	log *slog.Logger,
	points *spatial.Factory,
	geocoder BatchGeocoder,
	gatherer prometheus.Gatherer,
) http.Handler {
	h := &handler{log: log, points: points, geocoder: geocoder}

	router := mux.NewRouter()
	router.HandleFunc("/points", h.point).Methods(http.MethodGet)
	router.HandleFunc("/geocode", h.geocode).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}
