package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	"github.com/linnemanlabs/triagedesk/internal/decisionlog/memstore"
)

var now = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

// countingStore wraps the in-memory store with call counting and failure
// injection.
type countingStore struct {
	*memstore.Store
	mu      sync.Mutex
	lists   []string // prefix|token per call
	gets    int
	listErr error
	cancel  context.CancelFunc // fired on first list
}

func (c *countingStore) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, bucket, key)
}

func (c *countingStore) List(ctx context.Context, bucket, prefix, token string) (*decisionlog.Page, error) {
	c.mu.Lock()
	c.lists = append(c.lists, prefix+"|"+token)
	err := c.listErr
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err != nil {
		return nil, err
	}
	return c.Store.List(ctx, bucket, prefix, token)
}

func newEngine(t *testing.T, pageSize int) (*Engine, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memstore.New().WithPageSize(pageSize)}
	e := NewEngine(decisionlog.NewLoader(store, time.Second), log.Nop(), Hooks{}, Options{
		Bucket:        "logs",
		Prefix:        "decisions",
		MaxWindowDays: 30,
		Now:           func() time.Time { return now },
	})
	return e, store
}

func put(t *testing.T, s *countingStore, day time.Time, file, body string) {
	t.Helper()
	key := decisionlog.ObjectKey("decisions", day, file)
	if err := s.Store.Put(context.Background(), "logs", key, []byte(body)); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func day(offset int) time.Time {
	return decisionlog.DayStart(now).AddDate(0, 0, offset)
}

// Metrics

func TestMetrics_EmptyWindow(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 0)
	rep, err := e.Metrics(context.Background(), 7)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if rep.Total != 0 || rep.AvgElapsed != 0 {
		t.Errorf("Total/AvgElapsed = %d/%v, want 0/0", rep.Total, rep.AvgElapsed)
	}
	if len(rep.Trend) != 7 {
		t.Fatalf("trend len = %d, want 7", len(rep.Trend))
	}
	for _, p := range rep.Trend {
		if p.Count != 0 {
			t.Errorf("trend %s = %d, want 0", p.Date, p.Count)
		}
	}
	if rep.Trend[0].Date != "2025-10-28" || rep.Trend[6].Date != "2025-11-03" {
		t.Errorf("trend spans %s..%s, want 2025-10-28..2025-11-03", rep.Trend[0].Date, rep.Trend[6].Date)
	}
}

func TestMetrics_Accumulates(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	put(t, s, day(0), "a", `{"decision":"ALLOW","status":200,"elapsed_ms":100,"summary":{"classification":"benign"}}`)
	put(t, s, day(0), "b", `{"decision_agent":{"decision":"QUARANTINE","signals":{"phi_entities":2}},"decision":"ALLOW",
		"status":200,"timings":{"elapsed_ms":300},"summary":{"classification":"phishing"},
		"hitl":{"status":"resolved","verdict":"allow"}}`)
	put(t, s, day(-2), "c", `{"decision":"IT_REVIEW","status":500,"features":{"timings.elapsed_ms":200},"summary":{"has_phi":true,"classification":"phishing"}}`)
	put(t, s, day(-9), "old", `{"decision":"ALLOW"}`) // outside the window

	rep, err := e.Metrics(context.Background(), 3)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if rep.Total != 3 {
		t.Errorf("Total = %d, want 3", rep.Total)
	}
	if rep.ByDecision["ALLOW"] != 1 || rep.ByDecision["QUARANTINE"] != 1 || rep.ByDecision["IT_REVIEW"] != 1 {
		t.Errorf("ByDecision = %v", rep.ByDecision)
	}
	if rep.PHIPositive != 2 {
		t.Errorf("PHIPositive = %d, want 2", rep.PHIPositive)
	}
	if rep.Classifications["phishing"] != 2 || rep.Classifications["benign"] != 1 {
		t.Errorf("Classifications = %v", rep.Classifications)
	}
	if rep.Errors != 1 {
		t.Errorf("Errors = %d, want 1", rep.Errors)
	}
	if rep.Disagreements != 1 {
		t.Errorf("Disagreements = %d, want 1", rep.Disagreements)
	}
	if rep.AvgElapsed != 200 {
		t.Errorf("AvgElapsed = %v, want 200", rep.AvgElapsed)
	}
	want := []TrendPoint{{"2025-11-01", 1}, {"2025-11-02", 0}, {"2025-11-03", 2}}
	if fmt.Sprint(rep.Trend) != fmt.Sprint(want) {
		t.Errorf("Trend = %v, want %v", rep.Trend, want)
	}
}

func TestMetrics_SkipsCorruptAndCounts(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		outcomes = map[string]int{}
	)
	e, s := newEngine(t, 0)
	e.hooks.OnObject = func(outcome string) {
		mu.Lock()
		outcomes[outcome]++
		mu.Unlock()
	}
	put(t, s, day(0), "good", `{"decision":"ALLOW"}`)
	put(t, s, day(0), "bad", `{not json`)
	put(t, s, day(0), "array", `[1,2,3]`)

	rep, err := e.Metrics(context.Background(), 1)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if rep.Total != 1 || rep.Skipped != 2 {
		t.Errorf("Total/Skipped = %d/%d, want 1/2", rep.Total, rep.Skipped)
	}
	if outcomes["corrupt"] != 2 || outcomes["ok"] != 1 {
		t.Errorf("outcomes = %v, want 2 corrupt and 1 ok", outcomes)
	}
}

func TestMetrics_FollowsListingPages(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 2)
	for i := range 5 {
		put(t, s, day(0), fmt.Sprintf("r%d", i), `{"decision":"ALLOW"}`)
	}

	rep, err := e.Metrics(context.Background(), 1)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if rep.Total != 5 {
		t.Errorf("Total = %d, want 5", rep.Total)
	}
	if len(s.lists) != 3 {
		t.Errorf("list calls = %v, want 3 pages", s.lists)
	}
	if !strings.HasSuffix(s.lists[0], "|") {
		t.Errorf("first list must start without a token: %q", s.lists[0])
	}
}

func TestMetrics_ListFailureIsFatal(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	boom := errors.New("access denied")
	s.listErr = boom

	if _, err := e.Metrics(context.Background(), 3); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestMetrics_WindowValidation(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	for _, w := range []int{0, -1, 31} {
		if _, err := e.Metrics(context.Background(), w); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("Metrics(%d) err = %v, want ErrInvalidWindow", w, err)
		}
	}
	if len(s.lists) != 0 {
		t.Error("invalid windows must not touch the store")
	}
}

func TestMetrics_CancellationStopsPartitions(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	for d := range 5 {
		put(t, s, day(-d), "r", `{"decision":"ALLOW"}`)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel

	_, err := e.Metrics(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(s.lists) != 1 {
		t.Errorf("list calls after cancel = %d, want 1", len(s.lists))
	}
}

// History

func TestHistory_SingleDayInclusive(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	d := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	put(t, s, d, "start", `{"id":"start","timestamp":"2025-11-01T00:00:00Z"}`)
	put(t, s, d, "end", `{"id":"end","timestamp":"2025-11-01T23:59:59Z"}`)
	put(t, s, d, "late", `{"id":"late","timestamp":"2025-11-02T00:00:00Z"}`)
	put(t, s, d, "early", `{"id":"early","timestamp":"2025-10-31T23:59:59.999Z"}`)
	put(t, s, d, "undated", `{"id":"undated"}`)

	rows, err := e.History(context.Background(), "2025-11-01", "2025-11-01")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	// listing order is key order
	if fmt.Sprint(ids) != "[end start]" {
		t.Errorf("ids = %v, want [end start]", ids)
	}
}

func TestHistory_AcceptsISOVariants(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	d := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	put(t, s, d, "a", `{"id":"zoneless","timestamp":"2025-11-01T10:00:00.123456"}`)
	put(t, s, d, "b", `{"id":"offset","timestamp":"2025-11-01T10:00:00+00:00"}`)
	put(t, s, d, "c", `{"id":"spaced","timestamp":"2025-11-01 10:00:00Z"}`)

	rows, err := e.History(context.Background(), "2025-11-01", "2025-11-01")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if fmt.Sprint(ids) != "[zoneless offset spaced]" {
		t.Errorf("ids = %v, want all three same-day records", ids)
	}
}

func TestHistory_RowFields(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	d := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	put(t, s, d, "x", `{
		"id": "m-1",
		"compact": {"from": {"addr": "a@b.example"}, "to": ["c@d.example", "e@f.example"], "subject": "Hi", "date_iso": "2025-11-01T10:00:00Z"},
		"decision": "QUARANTINE",
		"elapsed_ms": 1234,
		"phi_entities": 1,
		"hitl": {"status": "resolved", "verdict": "block", "actor": "sam"}
	}`)

	rows, err := e.History(context.Background(), "2025-11-01", "2025-11-01")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.From != "a@b.example" || r.To != "c@d.example, e@f.example" || r.Subject != "Hi" {
		t.Errorf("addressing = %q %q %q", r.From, r.To, r.Subject)
	}
	if r.AIDecisionText != "Quarantine" || r.LatencyText != "1.2s" || r.HumanDecisionText != "Blocked by sam" {
		t.Errorf("texts = %q %q %q", r.AIDecisionText, r.LatencyText, r.HumanDecisionText)
	}
	if !r.PHIPositive || r.HITLVerdict != "block" {
		t.Errorf("phi/verdict = %v/%q", r.PHIPositive, r.HITLVerdict)
	}
	if r.LogBucket != "logs" || r.LogKey != "decisions/2025/11/01/x.json" {
		t.Errorf("ref = %s/%s", r.LogBucket, r.LogKey)
	}
}

func TestHistory_InvalidRangesMakeNoStoreCalls(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	tests := []struct{ from, to string }{
		{"2025-11-02", "2025-11-01"},
		{"2025-11-01", "not-a-date"},
		{"11/01/2025", "2025-11-01"},
		{"2025-01-01", "2025-03-01"}, // exceeds 30 days
	}
	for _, tt := range tests {
		if _, err := e.History(context.Background(), tt.from, tt.to); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("History(%s, %s) err = %v, want ErrInvalidRange", tt.from, tt.to, err)
		}
	}
	if len(s.lists) != 0 || s.gets != 0 {
		t.Errorf("store touched: %d lists, %d gets", len(s.lists), s.gets)
	}
}

func TestHistory_SpansPartitionsInOrder(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 1)
	d1 := time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	put(t, s, d2, "b", `{"id":"d2","timestamp":"2025-10-31T08:00:00Z"}`)
	put(t, s, d1, "a", `{"id":"d1","timestamp":"2025-10-30T08:00:00Z"}`)

	rows, err := e.History(context.Background(), "2025-10-30", "2025-10-31")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "d1" || rows[1].ID != "d2" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestHistory_EmptyRangeReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, 0)
	rows, err := e.History(context.Background(), "2025-11-01", "2025-11-02")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %#v, want empty non-nil slice", rows)
	}
}

func TestHooks_Metrics(t *testing.T) {
	t.Parallel()

	e, s := newEngine(t, 0)
	var partitions int
	var views []string
	e.hooks.OnPartition = func() { partitions++ }
	e.hooks.OnScan = func(view, outcome string, _ float64) { views = append(views, view+":"+outcome) }
	put(t, s, day(0), "r", `{}`)

	if _, err := e.Metrics(context.Background(), 2); err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if partitions != 2 {
		t.Errorf("partitions = %d, want 2", partitions)
	}
	if fmt.Sprint(views) != "[metrics:ok]" {
		t.Errorf("views = %v", views)
	}
}
