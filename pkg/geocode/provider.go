package geocode

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers []Provider
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider) *CascadeClient {
	return &CascadeClient{providers: providers}
}

// Providers returns the provider names in cascade order.
func (c *CascadeClient) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Geocode implements Client by trying each provider in order. It returns an
// error only when every provider failed; a clean miss from any provider makes
// the overall result an unmatched Result.
func (c *CascadeClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if FormatOneLine(addr) == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}

	var errs []error
	var lastMiss *Result
	for _, p := range c.providers {
		result, err := p.Geocode(ctx, addr)
		if err != nil {
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if result != nil && result.Matched {
			return result, nil
		}
		if result != nil {
			lastMiss = result
		}
	}

	if lastMiss != nil {
		return lastMiss, nil
	}
	if len(errs) > 0 {
		return nil, eris.Wrap(errors.Join(errs...), "geocode: all providers failed")
	}
	return &Result{Matched: false, Source: "cascade"}, nil
}
