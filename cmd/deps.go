package main

import (
	"net/http"

	"github.com/sells-group/inspection-map/internal/config"
	"github.com/sells-group/inspection-map/internal/portal"
	"github.com/sells-group/inspection-map/internal/resilience"
	"github.com/sells-group/inspection-map/internal/resolve"
	"github.com/sells-group/inspection-map/internal/runlog"
	"github.com/sells-group/inspection-map/pkg/geocode"
)

func newPortalClient(c *config.Config) *portal.Client {
	return portal.NewClient(portal.Config{
		PageURL:      c.Portal.PageURL,
		SearchURL:    c.Portal.SearchURL,
		UserAgent:    c.Portal.UserAgent,
		Timeout:      c.Portal.PortalTimeout(),
		MaxBodyBytes: c.Portal.MaxBodyBytes,
		TokenFields:  c.Portal.TokenFields,
	})
}

func newGeocoder(c *config.Config) *geocode.CascadeClient {
	return geocode.NewClient(
		geocode.WithHTTPClient(&http.Client{Timeout: c.Geocode.Timeout()}),
		geocode.WithNominatimURL(c.Geocode.NominatimURL),
		geocode.WithUserAgent(c.Geocode.UserAgent),
		geocode.WithEmail(c.Geocode.Email),
		geocode.WithCensus(c.Geocode.Census),
		geocode.WithGoogleAPIKey(c.Geocode.GoogleKey),
	)
}

func newResolver(c *config.Config, client geocode.Client, log *runlog.Logger, opts ...resolve.Option) *resolve.Resolver {
	g := c.Geocode
	return resolve.New(client, resolve.Config{
		Timeout:  g.Timeout(),
		MinDelay: g.MinDelay(),
		Bounds:   g.Bounds,
		Breaker:  resilience.FromCircuitConfig(g.Circuit.FailureThreshold, g.Circuit.ResetTimeoutSecs),
		Fallback: resolve.Fallback{
			Enabled:   g.Fallback.Enabled,
			CenterLat: g.Fallback.CenterLat,
			CenterLng: g.Fallback.CenterLng,
			JitterDeg: g.Fallback.JitterDeg,
		},
	}, log, opts...)
}
