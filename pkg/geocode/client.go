// Package geocode resolves free-text addresses to coordinates via OpenStreetMap
// Nominatim (primary), with the Census Geocoder and Google as optional fallbacks.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address. An address no provider knows is
	// reported as an unmatched Result, not an error; errors mean a provider
	// could not be asked (timeout, transport, bad status).
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "nominatim", "census" or "google"
	Quality   string // "rooftop", "range", "centroid", "approximate"
	Matched   bool
}

// Option configures the geocoder.
type Option func(*options)

type options struct {
	httpClient   *http.Client
	nominatimURL string
	userAgent    string
	email        string
	rps          float64
	census       bool
	googleKey    string
}

// WithHTTPClient sets a custom HTTP client for all providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithNominatimURL points the primary provider at a different Nominatim
// instance, e.g. a self-hosted one.
func WithNominatimURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.nominatimURL = u
		}
	}
}

// WithUserAgent sets the User-Agent sent to Nominatim. The public instance
// rejects generic agents.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithEmail adds a contact address to Nominatim requests.
func WithEmail(email string) Option {
	return func(o *options) {
		o.email = email
	}
}

// WithRateLimit sets the requests-per-second limit for Nominatim calls.
func WithRateLimit(rps float64) Option {
	return func(o *options) {
		if rps > 0 {
			o.rps = rps
		}
	}
}

// WithCensus enables the Census Geocoder as a fallback provider.
func WithCensus(enabled bool) Option {
	return func(o *options) {
		o.census = enabled
	}
}

// WithGoogleAPIKey enables Google Geocoding API as the last fallback.
func WithGoogleAPIKey(key string) Option {
	return func(o *options) {
		o.googleKey = key
	}
}

// NewClient creates a geocoding Client that tries Nominatim, then Census and
// Google when enabled.
func NewClient(opts ...Option) *CascadeClient {
	o := &options{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		nominatimURL: nominatimSearchURL,
		userAgent:    "inspection-map/1.0",
		rps:          1,
	}
	for _, opt := range opts {
		opt(o)
	}

	providers := []Provider{&NominatimProvider{
		httpClient: o.httpClient,
		baseURL:    o.nominatimURL,
		userAgent:  o.userAgent,
		email:      o.email,
		limiter:    rate.NewLimiter(rate.Limit(o.rps), 1),
	}}
	if o.census {
		providers = append(providers, &CensusProvider{
			httpClient: o.httpClient,
			limiter:    rate.NewLimiter(50, 50), // Census default: 50 req/s
		})
	}
	if o.googleKey != "" {
		providers = append(providers, &GoogleProvider{
			httpClient: o.httpClient,
			key:        o.googleKey,
			limiter:    rate.NewLimiter(50, 50),
		})
	}
	return NewCascadeClient(providers)
}
