package resolve

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
)

const defaultTargetCount = 10

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// parseCoord reads lat/lng query params into a lon/lat point.
func parseCoord(r *http.Request) (orb.Point, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return orb.Point{}, errors.New("lat must be a number in [-90, 90]")
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		return orb.Point{}, errors.New("lng must be a number in [-180, 180]")
	}
	return orb.Point{lng, lat}, nil
}

func parseCount(r *http.Request) int {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		return defaultTargetCount
	}
	if count > 100 {
		count = 100
	}
	return count
}

// ResolveNearest handles GET /nearest?lat=&lng=&count=.
func ResolveNearest(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := Service.ResolveNearest(r.Context(), coord, parseCount(r))
	if errors.Is(err, ErrNoResults) {
		http.Error(w, "No addresses found near coordinate", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[resolve] nearest lookup failed: %v", err)
		http.Error(w, "Address lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// ResolveSameStreet handles GET /same-street?lat=&lng=&street=&locality=&count=.
// An empty street is discovered by reverse-geocoding the seed.
func ResolveSameStreet(w http.ResponseWriter, r *http.Request) {
	coord, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	street := r.URL.Query().Get("street")
	locality := r.URL.Query().Get("locality")

	result, err := Service.ResolveSameStreet(r.Context(), coord, street, locality, parseCount(r))
	if errors.Is(err, ErrNoResults) {
		http.Error(w, "No addresses found on street", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[resolve] same-street lookup failed: %v", err)
		http.Error(w, "Address lookup failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// SourceHealth handles GET /health and reports the cached gold-source
// state without forcing a probe.
func SourceHealth(w http.ResponseWriter, r *http.Request) {
	if Monitor == nil {
		http.Error(w, "Health monitor not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"healthy":       Monitor.Healthy(),
		"last_probe_at": Monitor.LastProbeAt(),
	})
}
