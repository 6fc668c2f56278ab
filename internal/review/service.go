package review

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
	DefaultPendingPageSize = 100
	DefaultConcurrency     = 16
)

// Options tunes a Service. Zero values take defaults.
type Options struct {
	PendingPageSize int
	Concurrency     int
	StoreTimeout    time.Duration
	Now             func() time.Time
}

// Service is the business boundary for review operations.
type Service struct {
	queue    QueueStore
	feedback FeedbackStore
	logs     *decisionlog.Loader
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier

	pageSize     int
	concurrency  int
	storeTimeout time.Duration
	now          func() time.Time
}

// NewService creates a new review service. metrics and notifier may be nil.
func NewService(queue QueueStore, feedback FeedbackStore, logs *decisionlog.Loader, logger log.Logger, metrics *Metrics, notifier Notifier, opts Options) *Service {
	if queue == nil || feedback == nil || logs == nil {
		panic(xerrors.New("review: queue, feedback and log stores are required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.PendingPageSize <= 0 {
		opts.PendingPageSize = DefaultPendingPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		queue:        queue,
		feedback:     feedback,
		logs:         logs,
		logger:       logger,
		metrics:      metrics,
		notifier:     notifier,
		pageSize:     opts.PendingPageSize,
		concurrency:  opts.Concurrency,
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
	}
}

// ListPending returns up to one page of pending items, each merged with the
// display fields of its decision record. Items whose record is missing or
// unreadable are returned as-is; only a failed queue scan is an error.
func (s *Service) ListPending(ctx context.Context) ([]*PendingItem, error) {
	items, err := s.scanPending(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*PendingItem, len(items))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, it := range items {
		out[i] = &PendingItem{Item: it}
		ref := it.LogRef()
		if !ref.Valid() {
			s.metrics.enrichment("no_ref")
			continue
		}
		g.Go(func() error {
			rec, err := s.logs.Load(ctx, ref)
			if err != nil {
				s.metrics.enrichment(enrichOutcome(err))
				s.logger.Warn(ctx, "enrichment failed, returning item unenriched",
					"queue_id", it.ID, "bucket", ref.Bucket, "key", ref.Key, "error", err)
				return nil
			}
			f := decisionlog.Extract(rec)
			out[i].Fields = &f
			out[i].Enriched = true
			s.metrics.enrichment("ok")
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.listed(len(out))
	return out, nil
}

// scanPending follows scan pages until a full page of pending items is
// collected. Filtered scans may return short or empty pages before the end.
func (s *Service) scanPending(ctx context.Context) ([]*Item, error) {
	items := make([]*Item, 0, s.pageSize)
	for page, err := range scan.Pages(ctx, s.scanFunc(StatusPending, s.pageSize)) {
		if err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		items = append(items, page...)
		if len(items) >= s.pageSize {
			return items[:s.pageSize], nil
		}
	}
	return items, nil
}

func (s *Service) scanFunc(status Status, limit int) scan.PageFunc[*Item] {
	return func(ctx context.Context, token string) ([]*Item, string, error) {
		ctx, cancel := s.bound(ctx)
		defer cancel()
		page, err := s.queue.Scan(ctx, ScanInput{Status: status, Limit: limit, StartKey: token})
		if err != nil {
			return nil, "", err
		}
		return page.Items, page.LastKey, nil
	}
}

// Resolve applies a verdict to a queue item. The queue update is the only
// step whose failure fails the call; the decision log patch, the feedback
// write and the notification are attempted afterwards and reported on the
// Resolution without undoing the queue update.
func (s *Service) Resolve(ctx context.Context, id, verdict, actor, notes string) (*Resolution, error) {
	v, err := ParseVerdict(verdict)
	if err != nil {
		return nil, err
	}

	L := s.logger.With("queue_id", id, "verdict", string(v), "actor", actor)

	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	before := *item

	resolved := *item
	resolved.Status = StatusResolved
	resolved.Verdict = v
	resolved.Actor = actor
	resolved.Notes = notes
	resolved.ResolvedAt = now

	if err := s.putItem(ctx, &resolved); err != nil {
		return nil, fmt.Errorf("resolve queue item %s: %w", id, err)
	}
	s.metrics.resolved(v)

	res := &Resolution{
		ID:         id,
		Status:     StatusResolved,
		Verdict:    v,
		Actor:      actor,
		Notes:      notes,
		ResolvedAt: now,
	}

	// the resolution is committed; a caller going away must not abort the
	// remaining steps
	ctx = context.WithoutCancel(ctx)

	res.LogUpdated = s.patchLog(ctx, L, &before, decisionlog.HITL{
		Status:  string(StatusResolved),
		Actor:   actor,
		Verdict: string(v),
		Notes:   notes,
		TS:      now,
	})

	fb := NewFeedbackEntry(&before, v, actor, now)
	if err := s.putFeedback(ctx, fb); err != nil {
		s.metrics.stepFailed(stepFeedback)
		L.Error(ctx, err, "feedback write failed after queue resolution", "pk", fb.PK, "sk", fb.SK)
	} else {
		res.Feedback = fb
		res.FeedbackWritten = true
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyResolution(ctx, &resolved, res); err != nil {
			s.metrics.stepFailed(stepNotify)
			L.Warn(ctx, "resolution notification failed", "error", err)
		}
	}

	L.Info(ctx, "verdict applied",
		"s3_updated", res.LogUpdated,
		"feedback_written", res.FeedbackWritten,
	)
	return res, nil
}

func (s *Service) getItem(ctx context.Context, id string) (*Item, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	item, ok, err := s.queue.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get queue item %s: %w", id, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) putItem(ctx context.Context, item *Item) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.queue.Put(ctx, item)
}

func (s *Service) putFeedback(ctx context.Context, fb *FeedbackEntry) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.feedback.PutFeedback(ctx, fb)
}

// patchLog rewrites the hitl and queue sub-objects of the item's decision
// record. Items without a log reference have nothing to patch.
func (s *Service) patchLog(ctx context.Context, L log.Logger, item *Item, h decisionlog.HITL) bool {
	ref := item.LogRef()
	if !ref.Valid() {
		return false
	}
	rec, err := s.logs.Load(ctx, ref)
	if err != nil {
		s.metrics.stepFailed(stepLogPatch)
		L.Error(ctx, err, "decision log read failed after queue resolution", "bucket", ref.Bucket, "key", ref.Key)
		return false
	}
	rec.ApplyVerdict(h)
	if err := s.logs.Save(ctx, ref, rec); err != nil {
		s.metrics.stepFailed(stepLogPatch)
		L.Error(ctx, err, "decision log write failed after queue resolution", "bucket", ref.Bucket, "key", ref.Key)
		return false
	}
	return true
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func enrichOutcome(err error) string {
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
