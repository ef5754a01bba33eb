package geocode

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// newTestLimiter creates a rate limiter that effectively does not limit for tests.
func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient creates an HTTP client that rewrites requests to a test server URL.
// All requests matching the target prefix are redirected to the test server.
func newRewriteClient(testServerURL, targetPrefix string) *http.Client {
	return &http.Client{
		Transport: &multiRewriteTransport{
			base:     http.DefaultTransport,
			rewrites: map[string]string{targetPrefix: testServerURL},
		},
	}
}

// multiRewriteTransport redirects each known provider URL prefix to its own test server.
type multiRewriteTransport struct {
	base     http.RoundTripper
	rewrites map[string]string
}

func (t *multiRewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	origURL := req.URL.String()
	for prefix, target := range t.rewrites {
		if !strings.HasPrefix(origURL, prefix) {
			continue
		}
		newReq := req.Clone(req.Context())
		parsed, err := req.URL.Parse(target + origURL[len(prefix):])
		if err != nil {
			return nil, err
		}
		newReq.URL = parsed
		newReq.Host = parsed.Host
		return t.base.RoundTrip(newReq)
	}
	return t.base.RoundTrip(req)
}
