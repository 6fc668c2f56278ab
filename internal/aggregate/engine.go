package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	"github.com/linnemanlabs/triagedesk/internal/scan"
)

const (
	DefaultConcurrency   = 16
	DefaultMaxWindowDays = 90
)

var (
	// ErrInvalidWindow is returned for a metrics window outside the allowed range.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInvalidRange is returned for malformed, reversed or oversized history ranges.
	ErrInvalidRange = errors.New("invalid date range")
)

// Hooks receives scan events. Nil fields are skipped.
type Hooks struct {
	OnObject    func(outcome string)
	OnPartition func()
	OnScan      func(view, outcome string, seconds float64)
}

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Bucket        string
	Prefix        string
	Concurrency   int
	MaxWindowDays int
	Now           func() time.Time
}

// Engine computes metrics and history views over the decision log.
type Engine struct {
	logs   *decisionlog.Loader
	logger log.Logger
	hooks  Hooks

	bucket        string
	prefix        string
	concurrency   int
	maxWindowDays int
	now           func() time.Time
}

// NewEngine creates an Engine reading from logs.
func NewEngine(logs *decisionlog.Loader, logger log.Logger, hooks Hooks, opts Options) *Engine {
	if logs == nil {
		panic(xerrors.New("aggregate: log loader is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = DefaultMaxWindowDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		logs:          logs,
		logger:        logger,
		hooks:         hooks,
		bucket:        opts.Bucket,
		prefix:        opts.Prefix,
		concurrency:   opts.Concurrency,
		maxWindowDays: opts.MaxWindowDays,
		now:           opts.Now,
	}
}

// MaxWindowDays returns the largest accepted window or range, in days.
func (e *Engine) MaxWindowDays() int {
	return e.maxWindowDays
}

// visitFunc receives each readable record in listing order, with the day
// partition it was listed under.
type visitFunc func(day time.Time, ref decisionlog.Ref, rec decisionlog.Record)

// walk visits every object in the given day partitions. It returns the
// number of objects skipped because they could not be read or parsed.
func (e *Engine) walk(ctx context.Context, days []time.Time, visit visitFunc) (int, error) {
	skipped := 0
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		prefix := decisionlog.PartitionPrefix(e.prefix, day)
		e.partition()

		for keys, err := range scan.Pages(ctx, e.listFunc(prefix)) {
			if err != nil {
				return skipped, fmt.Errorf("list %s/%s: %w", e.bucket, prefix, err)
			}
			skipped += e.fetchPage(ctx, day, keys, visit)
		}
	}
	// fetches that failed because the caller went away are not skips
	return skipped, ctx.Err()
}

func (e *Engine) listFunc(prefix string) scan.PageFunc[string] {
	return func(ctx context.Context, token string) ([]string, string, error) {
		page, err := e.logs.List(ctx, e.bucket, prefix, token)
		if err != nil {
			return nil, "", err
		}
		return page.Keys, page.NextToken, nil
	}
}

// fetchPage loads one listing page concurrently and visits the results in
// key order.
func (e *Engine) fetchPage(ctx context.Context, day time.Time, keys []string, visit visitFunc) int {
	recs := make([]decisionlog.Record, len(keys))
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			ref := decisionlog.Ref{Bucket: e.bucket, Key: key}
			rec, err := e.logs.Load(ctx, ref)
			if err != nil {
				e.object(objectOutcome(err))
				e.logger.Warn(ctx, "skipping unreadable decision record", "bucket", ref.Bucket, "key", ref.Key, "error", err)
				return nil
			}
			e.object("ok")
			recs[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	skipped := 0
	for i, rec := range recs {
		if rec == nil {
			skipped++
			continue
		}
		visit(day, decisionlog.Ref{Bucket: e.bucket, Key: keys[i]}, rec)
	}
	return skipped
}

func (e *Engine) object(outcome string) {
	if e.hooks.OnObject != nil {
		e.hooks.OnObject(outcome)
	}
}

func (e *Engine) partition() {
	if e.hooks.OnPartition != nil {
		e.hooks.OnPartition()
	}
}

func (e *Engine) observe(view string, start time.Time, err error) {
	if e.hooks.OnScan == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "canceled"
	case err != nil:
		outcome = "error"
	}
	e.hooks.OnScan(view, outcome, time.Since(start).Seconds())
}

func objectOutcome(err error) string {
	switch {
	case errors.Is(err, decisionlog.ErrObjectNotFound):
		return "missing"
	case errors.Is(err, decisionlog.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, decisionlog.ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// daysBack returns the n UTC days ending today, oldest first.
func daysBack(now time.Time, n int) []time.Time {
	today := decisionlog.DayStart(now)
	days := make([]time.Time, n)
	for i := range n {
		days[i] = today.AddDate(0, 0, i-(n-1))
	}
	return days
}

// daysBetween returns every UTC day from..to inclusive.
func daysBetween(from, to time.Time) []time.Time {
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
