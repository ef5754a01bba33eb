// Package portal talks to the state health-inspection search portal: it opens
// a cookie-backed session and submits the city search form.
package portal

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/inspection-map/internal/resilience"
)

const defaultMaxBodyBytes = 8 << 20

// Config controls portal requests.
type Config struct {
	PageURL      string
	SearchURL    string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	TokenFields  []string
}

// Client issues portal requests. It holds no per-run state; each Acquire
// returns a fresh Session.
type Client struct {
	cfg       Config
	transport http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the HTTP transport used by new sessions.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// NewClient creates a portal client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.SearchURL == "" {
		cfg.SearchURL = cfg.PageURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.TokenFields) == 0 {
		cfg.TokenFields = DefaultTokenFields
	}
	c := &Client{cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.transport == nil {
		c.transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return c
}

// do sends req bounded by the configured timeout and returns the decoded body
// of a 2xx, non-blocked response.
func (c *Client) do(ctx context.Context, hc *http.Client, op string, req *http.Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req = req.WithContext(ctx)

	c.setHeaders(req)
	target := req.URL.String()

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: target, Err: eris.Wrapf(markTransport(op, err), "portal: %s request", op)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{Op: op, URL: target, Err: eris.Wrapf(markTransport(op, err), "portal: %s read body", op)}
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, &NetworkError{Op: op, URL: target,
			Err: eris.Errorf("portal: %s response exceeds %d bytes", op, c.cfg.MaxBodyBytes)}
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &NetworkError{Op: op, URL: target, StatusCode: resp.StatusCode, Block: kind,
			Err: eris.Errorf("portal: %s blocked (%s)", op, kind)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("portal: %s status %d", op, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			statusErr = resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, &NetworkError{Op: op, URL: target, StatusCode: resp.StatusCode, Err: statusErr}
	}

	return decodeBody(resp.Header.Get("Content-Type"), body), nil
}

// markTransport wraps err as transient when its failure class may clear on a
// later attempt.
func markTransport(op string, err error) error {
	kind := resilience.ClassifyFailure(err)
	zap.L().Debug("portal: transport failure",
		zap.String("op", op),
		zap.Stringer("failure", kind),
		zap.Error(err),
	)
	if kind.Transient() {
		return resilience.NewTransientError(err, 0)
	}
	return err
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if u, err := url.Parse(c.cfg.PageURL); err == nil && u.Host != "" {
		req.Header.Set("Origin", u.Scheme+"://"+u.Host)
	}
	req.Header.Set("Referer", c.cfg.PageURL)
}

// decodeBody converts body to UTF-8 using the charset named in contentType.
// Unknown or missing charsets leave the bytes as they are.
func decodeBody(contentType string, body []byte) []byte {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	cs := strings.ToLower(strings.TrimSpace(params["charset"]))
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		zap.L().Debug("portal: unsupported charset, using raw bytes", zap.String("charset", cs))
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		zap.L().Debug("portal: charset decode failed, using raw bytes",
			zap.String("charset", cs), zap.Error(err))
		return body
	}
	return out
}
