package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

// TrendPoint is the record count for one UTC day.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Report is the metrics view over a window of days.
type Report struct {
	WindowDays      int            `json:"windowDays"`
	Total           int            `json:"total"`
	ByDecision      map[string]int `json:"byDecision"`
	PHIPositive     int            `json:"phiPositive"`
	Classifications map[string]int `json:"classifications"`
	Errors          int            `json:"errors"`
	Disagreements   int            `json:"disagreements"`
	AvgElapsed      float64        `json:"avgElapsed"`
	Trend           []TrendPoint   `json:"trend"`
	Skipped         int            `json:"skipped"`
}

// Metrics aggregates every record in the windowDays partitions ending today.
func (e *Engine) Metrics(ctx context.Context, windowDays int) (rep *Report, err error) {
	if windowDays < 1 || windowDays > e.maxWindowDays {
		return nil, fmt.Errorf("%w: windowDays must be between 1 and %d", ErrInvalidWindow, e.maxWindowDays)
	}
	start := time.Now()
	defer func() { e.observe("metrics", start, err) }()

	days := daysBack(e.now(), windowDays)
	acc := newReportAccumulator(days)

	skipped, err := e.walk(ctx, days, func(day time.Time, _ decisionlog.Ref, rec decisionlog.Record) {
		acc.add(day, rec)
	})
	if err != nil {
		return nil, err
	}

	rep = acc.result()
	rep.Skipped = skipped
	e.logger.Info(ctx, "metrics aggregated", "window_days", windowDays, "total", rep.Total, "skipped", skipped)
	return rep, nil
}

type reportAccumulator struct {
	rep        *Report
	dayIndex   map[string]int
	elapsedSum float64
}

func newReportAccumulator(days []time.Time) *reportAccumulator {
	a := &reportAccumulator{
		rep: &Report{
			WindowDays:      len(days),
			ByDecision:      make(map[string]int),
			Classifications: make(map[string]int),
			Trend:           make([]TrendPoint, len(days)),
		},
		dayIndex: make(map[string]int, len(days)),
	}
	for i, d := range days {
		date := d.Format(time.DateOnly)
		a.rep.Trend[i] = TrendPoint{Date: date}
		a.dayIndex[date] = i
	}
	return a
}

func (a *reportAccumulator) add(day time.Time, rec decisionlog.Record) {
	r := a.rep
	r.Total++

	if d := decisionlog.Decision(rec); d != "" {
		r.ByDecision[d]++
	}
	if n, ok := decisionlog.PHIEntities(rec); ok && n > 0 {
		r.PHIPositive++
	}
	if c := decisionlog.Classification(rec); c != "" {
		r.Classifications[c]++
	}
	if code, ok := decisionlog.StatusCode(rec); ok && code != 200 {
		r.Errors++
	}
	if disagrees(rec) {
		r.Disagreements++
	}
	if ms, ok := decisionlog.ElapsedMS(rec); ok {
		a.elapsedSum += ms
	}

	if i, ok := a.dayIndex[day.Format(time.DateOnly)]; ok {
		r.Trend[i].Count++
	}
}

func (a *reportAccumulator) result() *Report {
	if a.rep.Total > 0 {
		a.rep.AvgElapsed = a.elapsedSum / float64(a.rep.Total)
	}
	return a.rep
}

// disagrees reports a resolved human verdict that contradicts an ALLOW or
// QUARANTINE machine decision.
func disagrees(rec decisionlog.Record) bool {
	status, verdict := decisionlog.Review(rec)
	if status != "resolved" {
		return false
	}
	switch decisionlog.Decision(rec) {
	case decisionlog.DecisionAllow:
		return verdict == "block"
	case decisionlog.DecisionQuarantine:
		return verdict == "allow"
	}
	return false
}
