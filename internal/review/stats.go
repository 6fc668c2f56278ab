package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	"github.com/linnemanlabs/triagedesk/internal/scan"
)

// Stats scans the whole queue, following every page, and summarizes it.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	acc := newStatsAccumulator(s.now())
	for it, err := range scan.All(ctx, s.scanFunc("", 0)) {
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		acc.add(it)
	}
	s.metrics.statsScanned(acc.seen)
	return acc.result(), nil
}

type statsAccumulator struct {
	today, tomorrow time.Time

	seen          int
	pending       int
	resolved      int
	reviewedToday int
	scored        int
	agreed        int
	durations     int
	durationSum   float64
}

func newStatsAccumulator(now time.Time) *statsAccumulator {
	today := decisionlog.DayStart(now)
	return &statsAccumulator{today: today, tomorrow: today.AddDate(0, 0, 1)}
}

func (a *statsAccumulator) add(it *Item) {
	a.seen++
	switch it.Status {
	case StatusPending:
		a.pending++
		return
	case StatusResolved:
	default:
		return
	}

	a.resolved++
	if !it.ResolvedAt.IsZero() && !it.ResolvedAt.Before(a.today) && it.ResolvedAt.Before(a.tomorrow) {
		a.reviewedToday++
	}

	if scored, agree := agreement(it.Decision, it.Verdict); scored && it.Verdict != "" {
		a.scored++
		if agree {
			a.agreed++
		}
	}

	if !it.CreatedAt.IsZero() && !it.ResolvedAt.IsZero() {
		if d := it.ResolvedAt.Sub(it.CreatedAt).Seconds(); d > 0 {
			a.durations++
			a.durationSum += d
		}
	}
}

func (a *statsAccumulator) result() *Stats {
	st := &Stats{
		Pending:       a.pending,
		ReviewedToday: a.reviewedToday,
		Resolved:      a.resolved,
		Scored:        a.scored,
	}
	if a.scored > 0 {
		st.Accuracy = float64(a.agreed) / float64(a.scored)
	}
	if a.durations > 0 {
		st.AvgTimeSeconds = a.durationSum / float64(a.durations)
	}
	return st
}

// agreement scores a machine decision against a human verdict. IT_REVIEW and
// unknown decisions are not predictions and are not scored.
func agreement(decision string, v Verdict) (scored, agree bool) {
	switch strings.ToUpper(decision) {
	case decisionlog.DecisionAllow:
		return true, v == VerdictAllow
	case decisionlog.DecisionQuarantine:
		return true, v == VerdictBlock
	default:
		return false, false
	}
}
