package spatial

import "fmt"

// Well-known spatial reference identifiers.
const (
	SRIDUnset = 0    // SRIDUnset marks a point whose reference system is not specified.
	SRIDWGS84 = 4326 // SRIDWGS84 is the WGS 84 longitude/latitude system used by GPS.
)

// Point is a geographic coordinate tagged with the identifier of its spatial reference system.
// It is an immutable value: fields are set once by NewPoint and read through accessors.
type Point struct {
	lat  float64 // lat is the latitude, not range checked.
	lng  float64 // lng is the longitude, not range checked.
	srid int     // srid is the spatial reference identifier, 0 when unset.
}

// Option sets one explicitly supplied field of a Point under construction.
type Option func(*pointParams)

type pointParams struct {
	lat     float64
	lng     float64
	srid    int
	hasSRID bool
}

// WithLat sets the latitude. Without it the latitude is 0.
func WithLat(lat float64) Option {
	return func(p *pointParams) { p.lat = lat }
}

// WithLng sets the longitude. Without it the longitude is 0.
func WithLng(lng float64) Option {
	return func(p *pointParams) { p.lng = lng }
}

// WithSRID sets the SRID explicitly. An explicit 0 is kept as is and
// the default SRID source is not consulted.
func WithSRID(srid int) Option {
	return func(p *pointParams) {
		p.srid = srid
		p.hasSRID = true
	}
}

// NewPoint builds a Point from the given options.
//
// Latitude and longitude default to 0. When no SRID option is given the SRID
// is resolved now, on every call: the value reported by source if it has one,
// otherwise SRIDUnset. A nil source is treated as one without a value.
func NewPoint(source SRIDSource, opts ...Option) Point {
	point, _ := resolve(source, opts)
	return point
}

func resolve(source SRIDSource, opts []Option) (Point, SRIDOrigin) {
	var params pointParams
	for _, opt := range opts {
		opt(&params)
	}

	origin := OriginExplicit
	if !params.hasSRID {
		params.srid, origin = SRIDUnset, OriginUnset
		if source != nil {
			if srid, ok := source.DefaultSRID(); ok {
				params.srid, origin = srid, OriginConfig
			}
		}
	}

	return Point{lat: params.lat, lng: params.lng, srid: params.srid}, origin
}

// Lat returns the latitude.
func (p Point) Lat() float64 { return p.lat }

// Lng returns the longitude.
func (p Point) Lng() float64 { return p.lng }

// SRID returns the spatial reference identifier.
func (p Point) SRID() int { return p.srid }

// String renders the point as "lat,lng (SRID n)".
func (p Point) String() string {
	return fmt.Sprintf("%v,%v (SRID %d)", p.lat, p.lng, p.srid)
}
