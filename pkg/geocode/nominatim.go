package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// nominatimPlace is one element of the Nominatim jsonv2 search response.
// Coordinates arrive as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	AddressType string `json:"addresstype"`
	DisplayName string `json:"display_name"`
}

// NominatimProvider geocodes via an OpenStreetMap Nominatim instance. The
// public instance allows at most one request per second.
type NominatimProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	email      string
	limiter    *rate.Limiter
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":      {FormatOneLine(addr)},
		"format": {"jsonv2"},
		"limit":  {"1"},
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return &Result{Matched: false, Source: "nominatim"}, nil
	}

	place := places[0]
	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lat %q", place.Lat)
	}
	lon, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim lon %q", place.Lon)
	}

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    "nominatim",
		Quality:   nominatimQuality(place),
		Matched:   true,
	}, nil
}

// nominatimQuality maps the OSM feature kind to our quality taxonomy.
func nominatimQuality(p nominatimPlace) string {
	kind := p.AddressType
	if kind == "" {
		kind = p.Type
	}
	switch kind {
	case "house", "building", "amenity", "shop":
		return "rooftop"
	case "road", "street":
		return "range"
	case "city", "town", "village", "hamlet", "suburb", "neighbourhood", "postcode":
		return "centroid"
	default:
		return "approximate"
	}
}
