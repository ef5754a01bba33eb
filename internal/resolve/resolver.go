// Package resolve turns listing addresses into map coordinates. It keeps a
// per-run cache so the external geocoder sees each distinct address at most
// once, and paces every external call.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-map/internal/model"
	"github.com/sells-group/inspection-map/internal/resilience"
	"github.com/sells-group/inspection-map/internal/runlog"
	"github.com/sells-group/inspection-map/pkg/geocode"
)

// Reason classifies a failed resolution.
type Reason string

const (
	ReasonNotFound     Reason = "not_found"
	ReasonTimeout      Reason = "timeout"
	ReasonServiceError Reason = "service_error"
	ReasonOutOfBounds  Reason = "out_of_bounds"
	ReasonCircuitOpen  Reason = "circuit_open"
)

// GeocodeError reports an address that could not be placed on the map. The
// row it belongs to is left out of the snapshot; the run continues.
type GeocodeError struct {
	Address string
	Reason  Reason
	Err     error
}

func (e *GeocodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode %q: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("geocode %q: %s", e.Address, e.Reason)
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

// Fallback places unresolved addresses at a jittered point around a center.
// Such coordinates are marked approximate.
type Fallback struct {
	Enabled   bool
	CenterLat float64
	CenterLng float64
	JitterDeg float64
}

// Config controls a Resolver.
type Config struct {
	Timeout  time.Duration // per external call
	MinDelay time.Duration // pause after every external call
	// Bounds is min_lat, min_lng, max_lat, max_lng. Empty disables the check.
	Bounds   []float64
	Breaker  resilience.CircuitBreakerConfig
	Fallback Fallback
}

type outcome struct {
	coords *model.Coordinates
	err    *GeocodeError
}

// Resolver resolves addresses for a single run. It is not safe for
// concurrent use.
type Resolver struct {
	client  geocode.Client
	cfg     Config
	log     *runlog.Logger
	cache   map[string]outcome
	breaker *resilience.CircuitBreaker
	bounds  *geom.Bounds
	pause   func(ctx context.Context, d time.Duration) error
	jitter  func() float64
	calls   int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPause replaces the post-call pause.
func WithPause(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) { r.pause = fn }
}

// WithJitter replaces the source of fallback jitter, which must return values
// in [0, 1).
func WithJitter(fn func() float64) Option {
	return func(r *Resolver) { r.jitter = fn }
}

// New creates a Resolver with an empty cache.
func New(client geocode.Client, cfg Config, log *runlog.Logger, opts ...Option) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = time.Second
	}
	if log == nil {
		log = runlog.Nop()
	}

	breakerCfg := cfg.Breaker
	breakerCfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("resolve: geocoder circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	r := &Resolver{
		client:  client,
		cfg:     cfg,
		log:     log,
		cache:   make(map[string]outcome),
		breaker: resilience.NewCircuitBreaker(breakerCfg),
		pause:   sleep,
		jitter:  rand.Float64,
	}
	if len(cfg.Bounds) == 4 {
		// geom coordinates are X=lng, Y=lat.
		r.bounds = geom.NewBounds(geom.XY).Set(cfg.Bounds[1], cfg.Bounds[0], cfg.Bounds[3], cfg.Bounds[2])
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ExternalCalls returns how many times the geocoder was called.
func (r *Resolver) ExternalCalls() int {
	return r.calls
}

// Resolve returns coordinates for address. Failures are *GeocodeError unless
// ctx was cancelled, in which case the context error is returned.
func (r *Resolver) Resolve(ctx context.Context, address string) (*model.Coordinates, error) {
	key := geocode.NormalizeKey(address)
	if key == "" {
		return r.finish(address, outcome{err: &GeocodeError{Address: address, Reason: ReasonNotFound,
			Err: eris.New("empty address")}})
	}

	if out, ok := r.cache[key]; ok {
		r.log.Event(runlog.GeocodeCacheHit, "geocode cache hit",
			zap.String("address", address),
			zap.Bool("resolved", out.err == nil),
		)
		return r.finish(address, out)
	}

	out, err := r.lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if out.err == nil || out.err.Reason != ReasonCircuitOpen {
		r.cache[key] = out
	}
	return r.finish(address, out)
}

// lookup performs one external call, then pauses.
func (r *Resolver) lookup(ctx context.Context, address string) (outcome, error) {
	var deadlineHit bool
	res, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*geocode.Result, error) {
		r.calls++
		cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		res, err := r.client.Geocode(cctx, geocode.AddressInput{Street: address})
		deadlineHit = errors.Is(cctx.Err(), context.DeadlineExceeded)
		if err == nil && deadlineHit {
			err = eris.Wrap(cctx.Err(), "geocode: deadline exceeded")
		}
		return res, err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return outcome{err: &GeocodeError{Address: address, Reason: ReasonCircuitOpen, Err: err}}, nil
	}

	if perr := r.pause(ctx, r.cfg.MinDelay); perr != nil {
		return outcome{}, eris.Wrap(perr, "resolve: pause")
	}
	if ctx.Err() != nil {
		return outcome{}, eris.Wrap(ctx.Err(), "resolve: cancelled")
	}

	switch {
	case err != nil && deadlineHit:
		return outcome{err: &GeocodeError{Address: address, Reason: ReasonTimeout, Err: err}}, nil
	case err != nil:
		return outcome{err: &GeocodeError{Address: address, Reason: ReasonServiceError, Err: err}}, nil
	case res == nil || !res.Matched:
		return outcome{err: &GeocodeError{Address: address, Reason: ReasonNotFound}}, nil
	}

	if r.bounds != nil && !r.bounds.OverlapsPoint(geom.XY, geom.Coord{res.Longitude, res.Latitude}) {
		return outcome{err: &GeocodeError{Address: address, Reason: ReasonOutOfBounds,
			Err: eris.Errorf("%.5f,%.5f outside configured bounds", res.Latitude, res.Longitude)}}, nil
	}

	return outcome{coords: &model.Coordinates{
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
		Source:    res.Source,
	}}, nil
}

// finish logs a failure and applies the fallback when enabled.
func (r *Resolver) finish(address string, out outcome) (*model.Coordinates, error) {
	if out.err == nil {
		c := *out.coords
		return &c, nil
	}

	r.log.Event(runlog.GeocodeFailed, "geocode failed",
		zap.String("address", address),
		zap.String("reason", string(out.err.Reason)),
		zap.String("error", out.err.Error()),
	)

	if !r.cfg.Fallback.Enabled {
		return nil, out.err
	}

	f := r.cfg.Fallback
	c := &model.Coordinates{
		Latitude:    f.CenterLat + (r.jitter()*2-1)*f.JitterDeg,
		Longitude:   f.CenterLng + (r.jitter()*2-1)*f.JitterDeg,
		Source:      "fallback",
		Approximate: true,
	}
	r.log.Event(runlog.GeocodeFallback, "using approximate position",
		zap.String("address", address),
		zap.Float64("lat", c.Latitude),
		zap.Float64("lng", c.Longitude),
	)
	return c, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
