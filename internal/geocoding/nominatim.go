package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/spatial/internal/spatial"
	"golang.org/x/time/rate"
)

// NominatimBaseURL is the public OpenStreetMap Nominatim search endpoint.
const NominatimBaseURL = "https://nominatim.openstreetmap.org/search"

// nominatimUserAgent identifies the client as required by the Nominatim usage policy.
const nominatimUserAgent = "Spatial-Geocoder/1.0 (https://github.com/UnknownOlympus/spatial)"

// NominatimProvider geocodes addresses with OpenStreetMap's Nominatim API.
// The public instance allows about one request per second, so every request,
// fallbacks included, waits on the rate limiter.
type NominatimProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Nominatim API
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Limiter shared by all requests of this provider
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimResult is one entry of the Nominatim search response.
type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a provider for the public Nominatim API allowing
// rateLimit requests per second. A rateLimit of 0 disables limiting.
func NewNominatimProvider(rateLimit int, log *slog.Logger) *NominatimProvider {
	const timeout = 10 * time.Second

	return NewNominatimProviderWithClient(
		&http.Client{Timeout: timeout},
		NominatimBaseURL,
		newLimiter(rateLimit),
		log,
	)
}

// NewNominatimProviderWithClient creates a provider with a custom HTTP client,
// endpoint and limiter. A nil limiter disables limiting.
func NewNominatimProviderWithClient(
	client HTTPClient,
	baseURL string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *NominatimProvider {
	if limiter == nil {
		limiter = newLimiter(0)
	}

	return &NominatimProvider{
		client:  client,
		baseURL: baseURL,
		log:     log,
		limiter: limiter,
	}
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Geocode converts an address to a WGS 84 point.
//
// Rural addresses are often unknown to OpenStreetMap down to the house, so when
// a query has no result the address is retried with fewer comma separated parts:
// the full address, without the last part, without the last two parts, and
// finally the first part alone. Any error other than an empty result stops the
// search immediately.
func (np *NominatimProvider) Geocode(ctx context.Context, address string) (spatial.Point, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return spatial.Point{}, err
	}

	np.log.DebugContext(ctx, "Geocoding using Nominatim", "address", address)

	variations := addressFallbacks(address)
	for level, variation := range variations {
		var point spatial.Point
		point, err = np.search(ctx, variation)
		if err == nil {
			if level > 0 {
				np.log.InfoContext(ctx, "Geocoded using fallback address",
					"original", address, "fallback", variation, "fallback_level", level)
			}
			return point, nil
		}

		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return spatial.Point{}, err
		}

		np.log.DebugContext(ctx, "No result for address variation", "variation", variation, "fallback_level", level)
	}

	np.log.WarnContext(ctx, "All address fallbacks exhausted", "address", address, "variations_tried", len(variations))

	return spatial.Point{}, ErrNominatimEmptyResponse
}

// addressFallbacks returns the distinct, progressively shorter variants of address.
func addressFallbacks(address string) []string {
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	const dropTwo = 2
	candidates := []string{address}
	if len(parts) > 1 {
		candidates = append(candidates, strings.Join(parts[:len(parts)-1], ", "))
		if len(parts) > dropTwo {
			candidates = append(candidates, strings.Join(parts[:len(parts)-dropTwo], ", "))
		}
		candidates = append(candidates, parts[0])
	}

	seen := make(map[string]struct{}, len(candidates))
	variations := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok || candidate == "" {
			continue
		}
		seen[candidate] = struct{}{}
		variations = append(variations, candidate)
	}

	return variations
}

// search performs a single Nominatim request without fallback logic.
func (np *NominatimProvider) search(ctx context.Context, address string) (spatial.Point, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return spatial.Point{}, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := np.client.Do(req)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return spatial.Point{}, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err = json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return spatial.Point{}, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return spatial.Point{}, ErrNominatimEmptyResponse
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, results[0].Lat)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return spatial.Point{}, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, results[0].Lon)
	}

	return wgs84Point(lat, lng), nil
}
