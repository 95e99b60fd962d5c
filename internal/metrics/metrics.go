package metrics

import (
	"github.com/UnknownOlympus/spatial/internal/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GeocodeRequests *prometheus.CounterVec
	APIErrors       prometheus.Counter
	RequestSeconds  *prometheus.HistogramVec
	ActiveWorkers   prometheus.Gauge
	PointsBuilt     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		GeocodeRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_requests_total",
			Help: "Total number of processed geocoding requests.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_active_workers",
			Help: "Current number of active workers processing addresses.",
		}),
		PointsBuilt: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "spatial_points_built_total",
			Help: "Total number of points built, by where their SRID came from.",
		}, []string{"srid_origin"}),
	}
}

// ObservePoint counts one built point. It matches the observer of spatial.NewFactory.
func (m *Metrics) ObservePoint(origin spatial.SRIDOrigin) {
	m.PointsBuilt.WithLabelValues(string(origin)).Inc()
}
