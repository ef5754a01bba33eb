package portal

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetch submits the search form for city within sess and returns the
// results markup as UTF-8. It does not retry.
func (c *Client) Fetch(ctx context.Context, sess *Session, city string) ([]byte, error) {
	if sess == nil || sess.HTTP == nil {
		return nil, eris.New("portal: fetch without session")
	}

	form := url.Values{}
	form.Set("establishmentName", "")
	form.Set("city", city)
	form.Set("submit", "Search")
	if sess.HasToken() {
		form.Set(sess.TokenField, sess.Token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "portal: create listing request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(ctx, sess.HTTP, "listing", req)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("portal: listing fetched",
		zap.String("city", city),
		zap.Int("bytes", len(body)),
	)
	return body, nil
}
