package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// IP2LocationGeo looks up country/lat/lon via the ip2location.io API,
// the same bare http.Client-and-JSON-decode shape the teacher used for
// its outbound link preview fetches.
type IP2LocationGeo struct {
	APIKey string
	Client *http.Client
}

// NewIP2LocationGeo builds a GeoLocator with a bounded-timeout client.
func NewIP2LocationGeo(apiKey string) *IP2LocationGeo {
	return &IP2LocationGeo{
		APIKey: apiKey,
		Client: &http.Client{Timeout: 3 * time.Second},
	}
}

type ip2LocationResponse struct {
	CountryCode string  `json:"country_code"`
	Latitude    float32 `json:"latitude"`
	Longitude   float32 `json:"longitude"`
}

// Lookup resolves ip to a country/lat/lon triple. Callers fall back to
// {"XX", 0, 0} on error, per the collaborator's documented contract.
func (g *IP2LocationGeo) Lookup(ctx context.Context, ip string) (GeoResult, error) {
	if g.APIKey == "" {
		return GeoResult{CountryCode: "XX"}, nil
	}

	u := "https://api.ip2location.io/?" + url.Values{
		"key":    {g.APIKey},
		"ip":     {ip},
		"format": {"json"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return GeoResult{}, err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return GeoResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GeoResult{}, fmt.Errorf("geo lookup: unexpected status %d", resp.StatusCode)
	}

	var out ip2LocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GeoResult{}, fmt.Errorf("geo lookup: decode: %w", err)
	}
	if out.CountryCode == "" {
		out.CountryCode = "XX"
	}
	return GeoResult{
		CountryCode: out.CountryCode,
		Latitude:    out.Latitude,
		Longitude:   out.Longitude,
	}, nil
}
