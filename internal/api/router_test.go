package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UnknownOlympus/spatial/internal/api"
	"github.com/UnknownOlympus/spatial/internal/config"
	"github.com/UnknownOlympus/spatial/internal/metrics"
	"github.com/UnknownOlympus/spatial/internal/service"
	"github.com/UnknownOlympus/spatial/internal/spatial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type geocoderFunc func(ctx context.Context, addresses []string) []service.Result

func (f geocoderFunc) GeocodeAll(ctx context.Context, addresses []string) []service.Result {
	return f(ctx, addresses)
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
}

func newTestServer(t *testing.T, geocoder api.BatchGeocoder) testServer {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(reg)
	factory := spatial.NewFactory(cfg, appMetrics.ObservePoint)

	return testServer{handler: api.NewRouter(slog.Default(), factory, geocoder, reg), cfg: cfg}
}

func (s testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, target, nil)
	s.handler.ServeHTTP(rec, req)

	return rec
}

func TestPoints(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("explicit values", func(t *testing.T) {
		rec := srv.get(t, "/points?lat=25.1515&lng=36.1212&srid=4326")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"lat":25.1515,"lng":36.1212,"srid":4326}`, rec.Body.String())
	})

	t.Run("defaults", func(t *testing.T) {
		rec := srv.get(t, "/points")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"lat":0,"lng":0,"srid":0}`, rec.Body.String())
	})

	t.Run("configured default srid applies to the next request", func(t *testing.T) {
		srv.cfg.Set(config.KeyDefaultSRID, 4326)
		t.Cleanup(func() { srv.cfg.Set(config.KeyDefaultSRID, nil) })

		rec := srv.get(t, "/points?lat=50.45")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"lat":50.45,"lng":0,"srid":4326}`, rec.Body.String())
	})

	t.Run("invalid number", func(t *testing.T) {
		for _, target := range []string{
			"/points?lat=north",
			"/points?lng=east",
			"/points?srid=wgs84",
			"/points?lat=NaN",
			"/points?lng=Inf",
			"/points?lat=-Infinity",
		} {
			rec := srv.get(t, target)

			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"), target)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), target)
			assert.Contains(t, body["error"], "invalid", target)
		}
	})

	t.Run("points are counted by srid origin", func(t *testing.T) {
		rec := srv.get(t, "/metrics")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `spatial_points_built_total{srid_origin="explicit"} 1`)
		assert.Contains(t, rec.Body.String(), `spatial_points_built_total{srid_origin="config"} 1`)
		assert.Contains(t, rec.Body.String(), `spatial_points_built_total{srid_origin="unset"} 1`)
	})
}

func TestGeocode(t *testing.T) {
	geocodeErr := errors.New("no result")
	srv := newTestServer(t, geocoderFunc(func(_ context.Context, addresses []string) []service.Result {
		results := make([]service.Result, len(addresses))
		for i, address := range addresses {
			results[i] = service.Result{Address: address}
			if address == "nowhere" {
				results[i].Err = geocodeErr
				continue
			}
			results[i].Point = spatial.NewPoint(nil,
				spatial.WithLat(50.45), spatial.WithLng(30.52), spatial.WithSRID(spatial.SRIDWGS84))
		}

		return results
	}))

	t.Run("mixed results", func(t *testing.T) {
		rec := srv.get(t, "/geocode?address=Kyiv&address=nowhere")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `[
			{"address":"Kyiv","lat":50.45,"lng":30.52,"srid":4326},
			{"address":"nowhere","error":"no result"}
		]`, rec.Body.String())
	})

	t.Run("missing address", func(t *testing.T) {
		rec := srv.get(t, "/geocode")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "at least one address parameter is required", body["error"])
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", strings.TrimSpace(rec.Body.String()))
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	srv.handler.ServeHTTP(rec, httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/points", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
