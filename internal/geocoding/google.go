package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/spatial/internal/spatial"
	"googlemaps.github.io/maps"
)

// GoogleProvider geocodes addresses with the Google Maps Geocoding API.
type GoogleProvider struct {
	client GoogleAPIClient
	log    *slog.Logger
}

// GoogleAPIClient is the part of *maps.Client used by GoogleProvider.
type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrEmptyResponse is returned when Google Maps has no match for the address.
var ErrEmptyResponse = errors.New("google maps returned no results")

// NewGoogleProvider wraps an already configured Google Maps client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode sends the normalized address to Google and returns the location of
// the best match as a WGS 84 point. A blank address fails with ErrEmptyAddress
// without calling the API.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (spatial.Point, error) {
	query, err := normalizeAddress(address)
	if err != nil {
		return spatial.Point{}, err
	}

	results, err := gp.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		return spatial.Point{}, fmt.Errorf("google geocoding of %q: %w", query, err)
	}

	location, err := bestLocation(results)
	if err != nil {
		return spatial.Point{}, err
	}

	gp.log.DebugContext(ctx, "Google Maps match", "query", query,
		"lat", location.Lat, "lng", location.Lng, "candidates", len(results))

	return wgs84Point(location.Lat, location.Lng), nil
}

// bestLocation picks the location of the first result, which Google ranks highest.
func bestLocation(results []maps.GeocodingResult) (maps.LatLng, error) {
	if len(results) == 0 {
		return maps.LatLng{}, ErrEmptyResponse
	}

	return results[0].Geometry.Location, nil
}
