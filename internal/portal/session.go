package portal

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/publicsuffix"
)

// DefaultTokenFields are the hidden input names searched for an anti-forgery
// token, in addition to a <meta name="csrf-token"> tag.
var DefaultTokenFields = []string{"csrfToken", "_csrf", "__RequestVerificationToken", "authenticity_token"}

// metaTokenField is the form field a token found in a meta tag is posted under.
const metaTokenField = "csrfToken"

// Session is one run's portal session: the cookies set by the search page and
// the anti-forgery token, when the page carries one.
type Session struct {
	HTTP       *http.Client
	Token      string
	TokenField string
}

// HasToken reports whether the search page supplied a token.
func (s *Session) HasToken() bool {
	return s != nil && s.Token != ""
}

// Acquire loads the search page with a fresh cookie jar and extracts the
// anti-forgery token. A missing token is not an error.
func (c *Client) Acquire(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, eris.Wrap(err, "portal: create cookie jar")
	}
	hc := &http.Client{
		Jar:       jar,
		Transport: c.transport,
		Timeout:   c.cfg.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "portal: create session request")
	}

	body, err := c.do(ctx, hc, "session", req)
	if err != nil {
		return nil, err
	}

	sess := &Session{HTTP: hc}
	sess.TokenField, sess.Token = extractToken(body, c.cfg.TokenFields)

	zap.L().Debug("portal: session acquired",
		zap.Bool("token", sess.HasToken()),
		zap.String("token_field", sess.TokenField),
	)
	return sess, nil
}

// extractToken returns the field name and value of the first hidden input
// named in fields, falling back to a csrf-token meta tag.
func extractToken(body []byte, fields []string) (string, string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}

	var field, value, meta string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Input:
				name := attr(n, "name")
				if wanted[name] && strings.EqualFold(attr(n, "type"), "hidden") {
					if v := strings.TrimSpace(attr(n, "value")); v != "" {
						field, value = name, v
						return true
					}
				}
			case atom.Meta:
				if meta == "" && strings.EqualFold(attr(n, "name"), "csrf-token") {
					meta = strings.TrimSpace(attr(n, "content"))
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if walk(ch) {
				return true
			}
		}
		return false
	}

	if walk(doc) {
		return field, value
	}
	if meta != "" {
		return metaTokenField, meta
	}
	return "", ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
