package service_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/UnknownOlympus/spatial/internal/metrics"
	"github.com/UnknownOlympus/spatial/internal/service"
	"github.com/UnknownOlympus/spatial/internal/spatial"
	"github.com/UnknownOlympus/spatial/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func wgs84(lat, lng float64) spatial.Point {
	return spatial.NewPoint(nil, spatial.WithLat(lat), spatial.WithLng(lng), spatial.WithSRID(spatial.SRIDWGS84))
}

func TestGeocodeAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("successful processing keeps input order", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		batch := service.NewBatchGeocoder(logger, mockProvider, "nominatim", appMetrics, 2, "")
		ctx := t.Context()
		kyiv, lviv, odesa := wgs84(50.45, 30.52), wgs84(49.84, 24.03), wgs84(46.48, 30.72)

		mockProvider.On("Geocode", ctx, "Kyiv").Return(kyiv, nil).Once()
		mockProvider.On("Geocode", ctx, "Lviv").Return(lviv, nil).Once()
		mockProvider.On("Geocode", ctx, "Odesa").Return(odesa, nil).Once()

		results := batch.GeocodeAll(ctx, []string{"Kyiv", "Lviv", "Odesa"})

		require.Len(t, results, 3)
		assert.Equal(t, service.Result{Address: "Kyiv", Point: kyiv}, results[0])
		assert.Equal(t, service.Result{Address: "Lviv", Point: lviv}, results[1])
		assert.Equal(t, service.Result{Address: "Odesa", Point: odesa}, results[2])
		assert.InDelta(t, 3, testutil.ToFloat64(appMetrics.GeocodeRequests.WithLabelValues("success")), 0)
		assert.InDelta(t, 0, testutil.ToFloat64(appMetrics.ActiveWorkers), 0)
	})

	t.Run("address prefix is prepended", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		batch := service.NewBatchGeocoder(logger, mockProvider, "nominatim", appMetrics, 1, "Ukraine, ")
		ctx := t.Context()
		point := wgs84(50.45, 30.52)

		mockProvider.On("Geocode", ctx, "Ukraine, Kyiv").Return(point, nil).Once()

		results := batch.GeocodeAll(ctx, []string{"Kyiv"})

		require.Len(t, results, 1)
		assert.Equal(t, "Kyiv", results[0].Address)
		assert.Equal(t, point, results[0].Point)
	})

	t.Run("geocoding provider returns error", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		batch := service.NewBatchGeocoder(logger, mockProvider, "google", appMetrics, 4, "")
		ctx := t.Context()
		geocodeErr := errors.New("geocoding failed")

		mockProvider.On("Geocode", ctx, "Invalid Address").Return(spatial.Point{}, geocodeErr).Once()
		mockProvider.On("Geocode", ctx, "Kyiv").Return(wgs84(50.45, 30.52), nil).Once()

		results := batch.GeocodeAll(ctx, []string{"Invalid Address", "Kyiv"})

		require.Len(t, results, 2)
		require.ErrorIs(t, results[0].Err, geocodeErr)
		assert.Equal(t, spatial.Point{}, results[0].Point)
		require.NoError(t, results[1].Err)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.GeocodeRequests.WithLabelValues("failure")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.APIErrors), 0)
	})

	t.Run("empty input", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		batch := service.NewBatchGeocoder(logger, mockProvider, "google", appMetrics, 0, "")

		results := batch.GeocodeAll(t.Context(), nil)

		assert.Empty(t, results)
		mockProvider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	})

	t.Run("cancelled context skips remaining addresses", func(t *testing.T) {
		mockProvider := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		batch := service.NewBatchGeocoder(logger, mockProvider, "google", appMetrics, 2, "")
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		results := batch.GeocodeAll(ctx, []string{"Kyiv", "Lviv"})

		require.Len(t, results, 2)
		for _, res := range results {
			require.ErrorIs(t, res.Err, context.Canceled)
		}
		assert.Equal(t, "Kyiv", results[0].Address)
		assert.InDelta(t, 2, testutil.ToFloat64(appMetrics.GeocodeRequests.WithLabelValues("cancelled")), 0)
	})
}
