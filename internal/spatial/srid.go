package spatial

// SRIDSource supplies the default SRID for points built without one.
// DefaultSRID reports false when no default is configured.
type SRIDSource interface {
	DefaultSRID() (int, bool)
}

// SRIDSourceFunc adapts a plain function to SRIDSource.
type SRIDSourceFunc func() (int, bool)

// DefaultSRID calls f.
func (f SRIDSourceFunc) DefaultSRID() (int, bool) { return f() }

// StaticSRID returns a source that always reports srid.
func StaticSRID(srid int) SRIDSource {
	return SRIDSourceFunc(func() (int, bool) { return srid, true })
}

// SRIDOrigin tells where the SRID of a freshly built point came from.
type SRIDOrigin string

const (
	OriginExplicit SRIDOrigin = "explicit" // set with WithSRID
	OriginConfig   SRIDOrigin = "config"   // reported by the SRIDSource
	OriginUnset    SRIDOrigin = "unset"    // fell back to SRIDUnset
)

// Factory builds points against a single SRID source, so callers do not have
// to carry the source around themselves.
type Factory struct {
	source  SRIDSource
	observe func(SRIDOrigin)
}

// NewFactory creates a Factory reading defaults from source.
// observe, when not nil, is called once per built point with the origin of its SRID.
func NewFactory(source SRIDSource, observe func(SRIDOrigin)) *Factory {
	return &Factory{source: source, observe: observe}
}

// NewPoint builds a Point with the same rules as the package level NewPoint.
func (f *Factory) NewPoint(opts ...Option) Point {
	point, origin := resolve(f.source, opts)
	if f.observe != nil {
		f.observe(origin)
	}

	return point
}
