package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

// Row is one flattened history entry.
type Row struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	decisionlog.Fields
	PHIPositive bool   `json:"phi"`
	HITLStatus  string `json:"hitl_status,omitempty"`
	HITLVerdict string `json:"hitl_verdict,omitempty"`
	LogBucket   string `json:"log_bucket"`
	LogKey      string `json:"log_key"`
}

// History lists every record whose effective timestamp falls within the
// inclusive UTC date range [from, to], given as YYYY-MM-DD. Rows keep
// partition and listing order.
func (e *Engine) History(ctx context.Context, from, to string) (rows []Row, err error) {
	start, end, err := e.parseRange(from, to)
	if err != nil {
		return nil, err
	}
	began := time.Now()
	defer func() { e.observe("history", began, err) }()

	// end is the first instant after the range
	lo, hi := start, end.AddDate(0, 0, 1)

	rows = []Row{}
	skipped, err := e.walk(ctx, daysBetween(start, end), func(_ time.Time, ref decisionlog.Ref, rec decisionlog.Record) {
		ts, ok := decisionlog.Timestamp(rec)
		if !ok || ts.Before(lo) || !ts.Before(hi) {
			return
		}
		rows = append(rows, newRow(ref, rec, ts))
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "history aggregated", "from", from, "to", to, "rows", len(rows), "skipped", skipped)
	return rows, nil
}

func (e *Engine) parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidRange)
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidRange)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidRange)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > e.maxWindowDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range spans %d days, max %d", ErrInvalidRange, days, e.maxWindowDays)
	}
	return start, end, nil
}

func newRow(ref decisionlog.Ref, rec decisionlog.Record, ts time.Time) Row {
	status, verdict := decisionlog.Review(rec)
	f := decisionlog.Extract(rec)
	return Row{
		ID:          decisionlog.ID(rec),
		Timestamp:   ts,
		Fields:      f,
		PHIPositive: f.PHIEntities != nil && *f.PHIEntities > 0,
		HITLStatus:  status,
		HITLVerdict: verdict,
		LogBucket:   ref.Bucket,
		LogKey:      ref.Key,
	}
}
