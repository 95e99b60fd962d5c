package geocoding

import (
	"context"
	"errors"
	"strings"

	"github.com/UnknownOlympus/spatial/internal/spatial"
)

// Provider is an interface that defines a method for geocoding an address.
// The Geocode method takes a context and an address string as input,
// and returns the matching point in WGS 84 or an error.
type Provider interface {
	Geocode(ctx context.Context, address string) (spatial.Point, error)
}

// ErrEmptyAddress is returned before any request is made when the address is blank.
var ErrEmptyAddress = errors.New("address is empty")

// wgs84Point builds a provider result. Providers always answer in WGS 84, so the
// SRID is set explicitly and a configured default never relabels their output.
func wgs84Point(lat, lng float64) spatial.Point {
	return spatial.NewPoint(nil, spatial.WithLat(lat), spatial.WithLng(lng), spatial.WithSRID(spatial.SRIDWGS84))
}

// normalizeAddress trims the address sent to a provider and rejects a blank one.
func normalizeAddress(address string) (string, error) {
	address = strings.Join(strings.Fields(address), " ")
	if address == "" {
		return "", ErrEmptyAddress
	}

	return address, nil
}
