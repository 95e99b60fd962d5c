package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/spatial/internal/service"
	"github.com/UnknownOlympus/spatial/internal/spatial"
)

// BatchGeocoder geocodes several addresses at once.
type BatchGeocoder interface {
	GeocodeAll(ctx context.Context, addresses []string) []service.Result
}

var (
	errNoAddress = errors.New("at least one address parameter is required")
	errNotFinite = errors.New("value must be a finite number")
)

type handler struct {
	log      *slog.Logger
	points   *spatial.Factory
	geocoder BatchGeocoder
}

type pointResponse struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	SRID int     `json:"srid"`
}

type geocodeResponse struct {
	Address string `json:"address"`
	*pointResponse
	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newPointResponse(p spatial.Point) *pointResponse {
	return &pointResponse{Lat: p.Lat(), Lng: p.Lng(), SRID: p.SRID()}
}

// point builds a Point from the query string. Absent parameters are left to
// the Point defaults, including the configured default SRID.
func (h *handler) point(w http.ResponseWriter, r *http.Request) {
	opts, err := pointOptions(r.URL.Query())
	if err != nil {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.writeJSON(w, r, http.StatusOK, newPointResponse(h.points.NewPoint(opts...)))
}

func pointOptions(query url.Values) ([]spatial.Option, error) {
	var opts []spatial.Option

	if raw := query.Get("lat"); raw != "" {
		lat, err := parseCoordinate("lat", raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, spatial.WithLat(lat))
	}

	if raw := query.Get("lng"); raw != "" {
		lng, err := parseCoordinate("lng", raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, spatial.WithLng(lng))
	}

	if raw := query.Get("srid"); raw != "" {
		srid, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid srid %q: %w", raw, err)
		}
		opts = append(opts, spatial.WithSRID(srid))
	}

	return opts, nil
}

// parseCoordinate accepts finite numbers only; NaN and infinities have no JSON encoding.
func parseCoordinate(name, raw string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errNotFinite)
	}

	return value, nil
}

func (h *handler) geocode(w http.ResponseWriter, r *http.Request) {
	addresses := r.URL.Query()["address"]
	if len(addresses) == 0 {
		h.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: errNoAddress.Error()})
		return
	}

	results := h.geocoder.GeocodeAll(r.Context(), addresses)

	body := make([]geocodeResponse, 0, len(results))
	for _, res := range results {
		item := geocodeResponse{Address: res.Address}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.pointResponse = newPointResponse(res.Point)
		}
		body = append(body, item)
	}

	h.writeJSON(w, r, http.StatusOK, body)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}

// writeJSON encodes body before the status line is sent, so an encoding
// failure still yields a complete 500 reply.
func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		h.log.ErrorContext(r.Context(), "failed to encode reply", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}
