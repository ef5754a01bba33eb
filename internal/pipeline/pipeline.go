// Package pipeline runs one scrape of the inspection portal end to end:
// session, listing, parse, geocode, classify and snapshot write.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-map/internal/model"
	"github.com/sells-group/inspection-map/internal/parser"
	"github.com/sells-group/inspection-map/internal/portal"
	"github.com/sells-group/inspection-map/internal/resilience"
	"github.com/sells-group/inspection-map/internal/resolve"
	"github.com/sells-group/inspection-map/internal/risk"
	"github.com/sells-group/inspection-map/internal/runlog"
)

// Portal opens a session and fetches the listing markup for a city.
type Portal interface {
	Acquire(ctx context.Context) (*portal.Session, error)
	Fetch(ctx context.Context, sess *portal.Session, city string) ([]byte, error)
}

// Resolver maps an address to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*model.Coordinates, error)
}

// SnapshotWriter persists the run's records.
type SnapshotWriter interface {
	Write(records []model.InspectionRecord, timestamp time.Time, dest string) error
}

// Options are the per-run settings.
type Options struct {
	City    string
	State   string
	MaxRows int
	Output  string
	// Retry applies to the session+listing pair. The zero value makes a
	// single attempt.
	Retry resilience.RetryConfig
}

// Result summarizes a run.
type Result struct {
	RunID           string
	RowsDiscovered  int
	RowsSkipped     int
	GeocodeFailures int
	Written         int
	Output          string
}

// Pipeline runs the scrape sequentially. Only one geocode request is ever in
// flight.
type Pipeline struct {
	portal   Portal
	resolver Resolver
	writer   SnapshotWriter
	log      *runlog.Logger
	opts     Options
	now      func() time.Time
}

// New creates a Pipeline.
func New(p Portal, r Resolver, w SnapshotWriter, log *runlog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = runlog.Nop()
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	return &Pipeline{
		portal:   p,
		resolver: r,
		writer:   w,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// Run executes one scrape. Network and write failures end the run with an
// error and leave the previous snapshot in place; row and geocode problems
// are logged and skipped.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: p.log.RunID(), Output: p.opts.Output}

	p.log.Event(runlog.RunStart, "run started",
		zap.String("city", p.opts.City),
		zap.String("state", p.opts.State),
		zap.Int("max_rows", p.opts.MaxRows),
		zap.String("output", p.opts.Output),
	)

	retry := p.opts.Retry
	retry.OnRetry = resilience.RetryLogger("portal", "listing")
	markup, err := resilience.DoVal(ctx, retry, p.fetchListing)
	if err != nil {
		return res, p.fatal("listing unavailable", err)
	}

	parsed, err := parser.Parse(markup)
	if err != nil {
		return res, p.fatal("listing unparseable", err)
	}
	res.RowsDiscovered = parsed.Discovered
	res.RowsSkipped = len(parsed.Issues)

	p.log.Event(runlog.RowsDiscovered, "rows discovered",
		zap.Int("discovered", parsed.Discovered),
		zap.Int("valid", len(parsed.Rows)),
		zap.Int("skipped", len(parsed.Issues)),
	)
	for _, issue := range parsed.Issues {
		p.log.Event(runlog.RowSkipped, "row skipped",
			zap.Int("row", issue.Index),
			zap.String("reason", issue.Reason),
			zap.String("detail", issue.Detail),
		)
	}

	rows := parsed.Rows
	if p.opts.MaxRows > 0 && len(rows) > p.opts.MaxRows {
		rows = rows[:p.opts.MaxRows]
	}

	records := make([]model.InspectionRecord, 0, len(rows))
	for _, row := range rows {
		rec, ok, err := p.processRow(ctx, row)
		if err != nil {
			return res, p.fatal("run cancelled", err)
		}
		if !ok {
			res.GeocodeFailures++
			continue
		}
		records = append(records, rec)
	}

	if err := p.writer.Write(records, p.now(), p.opts.Output); err != nil {
		return res, p.fatal("snapshot write failed", err)
	}
	res.Written = len(records)

	p.log.Event(runlog.RunComplete, "run complete",
		zap.Int("discovered", res.RowsDiscovered),
		zap.Int("skipped", res.RowsSkipped),
		zap.Int("geocode_failures", res.GeocodeFailures),
		zap.Int("written", res.Written),
		zap.String("output", res.Output),
	)
	return res, nil
}

// fetchListing acquires a fresh session and submits the search with it.
func (p *Pipeline) fetchListing(ctx context.Context) ([]byte, error) {
	sess, err := p.portal.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Event(runlog.SessionAcquired, "session acquired",
		zap.Bool("token", sess.HasToken()))

	markup, err := p.portal.Fetch(ctx, sess, p.opts.City)
	if err != nil {
		return nil, err
	}
	p.log.Event(runlog.ListingFetched, "listing fetched",
		zap.Int("bytes", len(markup)))
	return markup, nil
}

// processRow resolves and classifies one row. ok is false when the row has no
// coordinates; err is set only when the run must stop.
func (p *Pipeline) processRow(ctx context.Context, row model.RawRow) (model.InspectionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.InspectionRecord{}, false, eris.Wrap(err, "pipeline: context done")
	}

	address := ComposeAddress(row.AddressFragment, p.opts.City, p.opts.State)
	coords, err := p.resolver.Resolve(ctx, address)
	if err != nil {
		var ge *resolve.GeocodeError
		if errors.As(err, &ge) {
			return model.InspectionRecord{}, false, nil
		}
		return model.InspectionRecord{}, false, err
	}

	rec := model.InspectionRecord{
		Name:      row.Name,
		Address:   address,
		Date:      row.Date,
		Details:   row.StatusText,
		Color:     risk.ClassifyRow(row.StatusText, row.CriticalCount, row.NonCriticalCount),
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
	}
	p.log.Event(runlog.RecordAdded, "record added",
		zap.String("name", rec.Name),
		zap.String("color", string(rec.Color)),
		zap.Bool("approximate", coords.Approximate),
	)
	return rec, true, nil
}

func (p *Pipeline) fatal(msg string, err error) error {
	p.log.Event(runlog.Fatal, msg, zap.Error(err))
	return err
}
