package review

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
	logmem "github.com/linnemanlabs/triagedesk/internal/decisionlog/memstore"
)

var fixedNow = time.Date(2025, 11, 1, 15, 0, 0, 0, time.UTC)

// mockQueue implements QueueStore for testing.
type mockQueue struct {
	mu       sync.Mutex
	items    map[string]*Item
	puts     int
	pageSize int
	getErr   error
	putErr   error
	scanErr  error
}

func newMockQueue(items ...*Item) *mockQueue {
	m := &mockQueue{items: make(map[string]*Item), pageSize: 1000}
	for _, it := range items {
		cp := *it
		m.items[it.ID] = &cp
	}
	return m
}

func (m *mockQueue) Get(_ context.Context, id string) (*Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	it, ok := m.items[id]
	if !ok {
		return nil, false, nil
	}
	cp := *it
	return &cp, true, nil
}

func (m *mockQueue) Put(_ context.Context, it *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

// Scan examines at most pageSize items per call, in ID order, then filters.
func (m *mockQueue) Scan(_ context.Context, in ScanInput) (*ScanPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var ids []string
	for id := range m.items {
		if id > in.StartKey {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	page := &ScanPage{}
	if len(ids) > m.pageSize {
		ids = ids[:m.pageSize]
		page.LastKey = ids[len(ids)-1]
	}
	for _, id := range ids {
		it := m.items[id]
		if in.Status != "" && it.Status != in.Status {
			continue
		}
		cp := *it
		page.Items = append(page.Items, &cp)
	}
	return page, nil
}

// mockFeedback implements FeedbackStore for testing.
type mockFeedback struct {
	mu      sync.Mutex
	entries []*FeedbackEntry
	err     error
}

func (m *mockFeedback) PutFeedback(_ context.Context, e *FeedbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// logStore wraps the in-memory object store with failure injection and call
// counting.
type logStore struct {
	*logmem.Store
	mu     sync.Mutex
	gets   int
	puts   int
	getErr error
	putErr error
}

func newLogStore() *logStore {
	return &logStore{Store: logmem.New()}
}

func (l *logStore) Get(ctx context.Context, bucket, key string) ([]byte, bool, error) {
	l.mu.Lock()
	l.gets++
	err := l.getErr
	l.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return l.Store.Get(ctx, bucket, key)
}

func (l *logStore) Put(ctx context.Context, bucket, key string, body []byte) error {
	l.mu.Lock()
	l.puts++
	err := l.putErr
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return l.Store.Put(ctx, bucket, key, body)
}

func (l *logStore) seed(t *testing.T, key, body string) {
	t.Helper()
	if err := l.Store.Put(context.Background(), "logs", key, []byte(body)); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

// mockNotifier records notifications.
type mockNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockNotifier) NotifyResolution(context.Context, *Item, *Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

type fixture struct {
	queue    *mockQueue
	feedback *mockFeedback
	logs     *logStore
	notifier *mockNotifier
	svc      *Service
}

func newFixture(t *testing.T, items ...*Item) *fixture {
	t.Helper()
	f := &fixture{
		queue:    newMockQueue(items...),
		feedback: &mockFeedback{},
		logs:     newLogStore(),
		notifier: &mockNotifier{},
	}
	f.svc = NewService(f.queue, f.feedback, decisionlog.NewLoader(f.logs, time.Second), log.Nop(), nil, f.notifier, Options{
		Now:          func() time.Time { return fixedNow },
		StoreTimeout: time.Second,
	})
	return f
}

func pendingItem(id string) *Item {
	return &Item{
		ID:        id,
		Status:    StatusPending,
		Decision:  "QUARANTINE",
		Subject:   "Invoice " + id,
		FromAddr:  "billing@Vendor.example",
		RunID:     "run-" + id,
		CreatedAt: fixedNow.Add(-time.Hour),
		LogBucket: "logs",
		LogKey:    "p/2025/11/01/" + id + ".json",
	}
}

// Resolve

func TestResolve_InvalidVerdictTouchesNothing(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"", "ALLOW", "Block", "quarantine", "allow ", "yes"} {
		t.Run(v, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, pendingItem("q-1"))

			_, err := f.svc.Resolve(context.Background(), "q-1", v, "sam", "")
			if !errors.Is(err, ErrInvalidVerdict) {
				t.Fatalf("err = %v, want ErrInvalidVerdict", err)
			}
			if f.queue.puts != 0 || f.logs.gets != 0 || f.logs.puts != 0 || len(f.feedback.entries) != 0 {
				t.Errorf("store touched: queue puts=%d log gets=%d log puts=%d feedback=%d",
					f.queue.puts, f.logs.gets, f.logs.puts, len(f.feedback.entries))
			}
		})
	}
}

func TestResolve_NotFoundTouchesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Resolve(context.Background(), "missing", "allow", "sam", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if f.queue.puts != 0 || f.logs.puts != 0 || len(f.feedback.entries) != 0 {
		t.Error("expected no writes for a missing item")
	}
	if f.notifier.calls != 0 {
		t.Error("expected no notification for a missing item")
	}
}

func TestResolve_AllStepsSucceed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{
		"decision": "QUARANTINE",
		"summary": {"classification": "phishing"},
		"decision_agent": {"decision": "QUARANTINE"},
		"queue": {"status": "pending"}
	}`)

	res, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", "known vendor")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.LogUpdated {
		t.Error("expected s3Updated=true")
	}
	if !res.FeedbackWritten || res.Feedback == nil {
		t.Fatal("expected feedback entry")
	}
	if !res.ResolvedAt.Equal(fixedNow) {
		t.Errorf("ResolvedAt = %v, want %v", res.ResolvedAt, fixedNow)
	}

	it, _, _ := f.queue.Get(context.Background(), "q-1")
	if it.Status != StatusResolved || it.Verdict != VerdictAllow || it.Actor != "sam" || it.Notes != "known vendor" {
		t.Errorf("queue item = %+v", it)
	}

	body, _, _ := f.logs.Store.Get(context.Background(), "logs", "p/2025/11/01/q-1.json")
	rec, err := decisionlog.Parse(body)
	if err != nil {
		t.Fatalf("patched record unparseable: %v", err)
	}
	status, verdict := decisionlog.Review(rec)
	if status != "resolved" || verdict != "allow" {
		t.Errorf("record hitl = %s/%s", status, verdict)
	}
	agent := rec["decision_agent"].(map[string]any)
	if agent["hitl"] == nil {
		t.Error("decision_agent.hitl not written")
	}
	if decisionlog.Classification(rec) != "phishing" {
		t.Error("business fields must survive the patch")
	}

	fb := f.feedback.entries[0]
	if fb.PK != "domain#vendor.example" {
		t.Errorf("PK = %q", fb.PK)
	}
	if !strings.HasPrefix(fb.SK, "verdict#2025-11-01T15:00:00") {
		t.Errorf("SK = %q", fb.SK)
	}
	if fb.TrustTier != "trusted" || fb.RunID != "run-q-1" || fb.QueueID != "q-1" {
		t.Errorf("feedback = %+v", fb)
	}
	if f.notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", f.notifier.calls)
	}
}

func TestResolve_LogPatchFailureKeepsResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{"decision":"QUARANTINE"}`)
	f.logs.putErr = errors.New("s3 unavailable")

	res, err := f.svc.Resolve(context.Background(), "q-1", "block", "sam", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.LogUpdated {
		t.Error("expected s3Updated=false")
	}
	if !res.FeedbackWritten {
		t.Error("feedback must still be written when the log patch fails")
	}
	it, _, _ := f.queue.Get(context.Background(), "q-1")
	if it.Status != StatusResolved || it.Verdict != VerdictBlock {
		t.Errorf("queue item = %s/%s, want resolved/block", it.Status, it.Verdict)
	}
	if res.Feedback.TrustTier != "blocked" {
		t.Errorf("TrustTier = %q, want blocked", res.Feedback.TrustTier)
	}
}

func TestResolve_MissingLogObject(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	res, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.LogUpdated {
		t.Error("expected s3Updated=false for a missing record")
	}
	if f.logs.puts != 0 {
		t.Error("must not create a record that does not exist")
	}
}

func TestResolve_NoLogReference(t *testing.T) {
	t.Parallel()

	it := pendingItem("q-1")
	it.LogBucket, it.LogKey = "", ""
	f := newFixture(t, it)

	res, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.LogUpdated {
		t.Error("expected s3Updated=false without a log reference")
	}
	if f.logs.gets != 0 {
		t.Error("expected no log reads without a log reference")
	}
	if !res.FeedbackWritten {
		t.Error("expected feedback to be written")
	}
}

func TestResolve_FeedbackFailureKeepsResolution(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{"decision":"QUARANTINE"}`)
	f.feedback.err = errors.New("table throttled")

	res, err := f.svc.Resolve(context.Background(), "q-1", "block", "sam", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.FeedbackWritten || res.Feedback != nil {
		t.Error("feedback must be omitted when the write fails")
	}
	if !res.LogUpdated {
		t.Error("expected log patch to succeed")
	}
}

func TestResolve_QueueWriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{}`)
	boom := errors.New("dynamodb down")
	f.queue.putErr = boom

	_, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", "")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if f.logs.puts != 0 || len(f.feedback.entries) != 0 {
		t.Error("no side effects may run before the queue update commits")
	}
}

func TestResolve_QueueReadError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.queue.getErr = errors.New("timeout")
	_, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", "")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want store error", err)
	}
}

func TestResolve_NotifierFailureIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.notifier.err = errors.New("slack 500")
	if _, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}

func TestResolve_ReResolveOverwrites(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	if _, err := f.svc.Resolve(context.Background(), "q-1", "allow", "sam", ""); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := f.svc.Resolve(context.Background(), "q-1", "block", "alex", "changed mind"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	it, _, _ := f.queue.Get(context.Background(), "q-1")
	if it.Verdict != VerdictBlock || it.Actor != "alex" {
		t.Errorf("item = %s by %s, want block by alex", it.Verdict, it.Actor)
	}
	if len(f.feedback.entries) != 2 {
		t.Errorf("feedback entries = %d, want 2", len(f.feedback.entries))
	}
}

func TestResolve_CanceledCallerStillFinishesSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("q-1"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	q := &cancelOnPut{mockQueue: f.queue, cancel: cancel}
	svc := NewService(q, f.feedback, decisionlog.NewLoader(f.logs, time.Second), log.Nop(), nil, nil, Options{Now: func() time.Time { return fixedNow }})

	res, err := svc.Resolve(ctx, "q-1", "allow", "sam", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.LogUpdated || !res.FeedbackWritten {
		t.Errorf("side effects aborted: %+v", res)
	}
}

type cancelOnPut struct {
	*mockQueue
	cancel context.CancelFunc
}

func (c *cancelOnPut) Put(ctx context.Context, it *Item) error {
	err := c.mockQueue.Put(ctx, it)
	c.cancel()
	return err
}

// ListPending

func TestListPending_EnrichesInScanOrder(t *testing.T) {
	t.Parallel()

	var items []*Item
	for i := range 8 {
		items = append(items, pendingItem(fmt.Sprintf("q-%02d", i)))
	}
	f := newFixture(t, items...)
	for _, it := range items {
		f.logs.seed(t, it.LogKey, fmt.Sprintf(`{"summary":{"classification":"c-%s"},"elapsed_ms":1500}`, it.ID))
	}

	got, err := f.svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	for i, p := range got {
		want := fmt.Sprintf("q-%02d", i)
		if p.ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, p.ID, want)
		}
		if !p.Enriched || p.Fields == nil {
			t.Fatalf("got[%d] not enriched", i)
		}
		if p.Classification != "c-"+want {
			t.Errorf("got[%d].Classification = %q", i, p.Classification)
		}
		if p.LatencyText != "1.5s" {
			t.Errorf("got[%d].LatencyText = %q", i, p.LatencyText)
		}
		if p.Item.Subject != "Invoice "+want {
			t.Errorf("original queue fields lost: %+v", p.Item)
		}
	}
}

func TestListPending_MissingOrBrokenRecordsStayUnenriched(t *testing.T) {
	t.Parallel()

	noRef := pendingItem("q-3")
	noRef.LogKey = ""
	f := newFixture(t, pendingItem("q-1"), pendingItem("q-2"), noRef, pendingItem("q-4"))
	f.logs.seed(t, "p/2025/11/01/q-1.json", `{"decision":"ALLOW"}`)
	f.logs.seed(t, "p/2025/11/01/q-2.json", `{not json`)
	// q-4 has no object at all

	got, err := f.svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (no item may be dropped)", len(got))
	}
	if !got[0].Enriched {
		t.Error("q-1 should be enriched")
	}
	for _, p := range got[1:] {
		if p.Enriched || p.Fields != nil {
			t.Errorf("%s should be unenriched", p.ID)
		}
		if p.Item.Subject == "" || p.Item.FromAddr == "" {
			t.Errorf("%s lost original fields", p.ID)
		}
	}
}

func TestListPending_SkipsResolvedAndFollowsShortPages(t *testing.T) {
	t.Parallel()

	var items []*Item
	for i := range 6 {
		it := pendingItem(fmt.Sprintf("q-%d", i))
		if i < 4 {
			it.Status = StatusResolved
		}
		items = append(items, it)
	}
	f := newFixture(t, items...)
	f.queue.pageSize = 2 // first two pages contain only resolved items

	got, err := f.svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 2 || got[0].ID != "q-4" || got[1].ID != "q-5" {
		ids := make([]string, 0, len(got))
		for _, p := range got {
			ids = append(ids, p.ID)
		}
		t.Errorf("ids = %v, want [q-4 q-5]", ids)
	}
}

func TestListPending_PageSizeBound(t *testing.T) {
	t.Parallel()

	var items []*Item
	for i := range 12 {
		it := pendingItem(fmt.Sprintf("q-%02d", i))
		it.LogKey = ""
		items = append(items, it)
	}
	f := newFixture(t, items...)
	svc := NewService(f.queue, f.feedback, decisionlog.NewLoader(f.logs, 0), log.Nop(), nil, nil, Options{PendingPageSize: 5})

	got, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5", len(got))
	}
}

func TestListPending_ScanErrorFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.queue.scanErr = errors.New("scan failed")
	if _, err := f.svc.ListPending(context.Background()); err == nil {
		t.Fatal("expected error when the queue scan fails")
	}
}

// Stats

func resolvedItem(id, decision string, v Verdict, created, resolved time.Time) *Item {
	return &Item{ID: id, Status: StatusResolved, Decision: decision, Verdict: v, CreatedAt: created, ResolvedAt: resolved}
}

func TestStats_ITReviewExcludedFromAccuracy(t *testing.T) {
	t.Parallel()

	var items []*Item
	for i := range 7 {
		items = append(items, resolvedItem(fmt.Sprintf("a-%d", i), "ALLOW", VerdictAllow, fixedNow.Add(-2*time.Minute), fixedNow.Add(-time.Minute)))
	}
	for i := range 3 {
		items = append(items, resolvedItem(fmt.Sprintf("i-%d", i), "IT_REVIEW", VerdictBlock, fixedNow.Add(-2*time.Minute), fixedNow.Add(-time.Minute)))
	}
	f := newFixture(t, items...)
	f.queue.pageSize = 3

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Accuracy != 1.0 {
		t.Errorf("Accuracy = %v, want 1.0", st.Accuracy)
	}
	if st.Resolved != 10 || st.Scored != 7 {
		t.Errorf("Resolved/Scored = %d/%d, want 10/7", st.Resolved, st.Scored)
	}
	if st.AvgTimeSeconds != 60 {
		t.Errorf("AvgTimeSeconds = %v, want 60", st.AvgTimeSeconds)
	}
}

func TestStats_Mixed(t *testing.T) {
	t.Parallel()

	yesterday := fixedNow.AddDate(0, 0, -1)
	items := []*Item{
		pendingItem("p-1"),
		pendingItem("p-2"),
		resolvedItem("r-1", "ALLOW", VerdictAllow, fixedNow.Add(-100*time.Second), fixedNow),                   // agree, today
		resolvedItem("r-2", "QUARANTINE", VerdictBlock, yesterday.Add(-50*time.Second), yesterday),             // agree
		resolvedItem("r-3", "QUARANTINE", VerdictAllow, fixedNow.Add(-30*time.Second), fixedNow),               // disagree, today
		resolvedItem("r-4", "ALLOW", VerdictBlock, fixedNow, fixedNow.Add(-time.Hour)),                         // disagree, negative duration ignored
		resolvedItem("r-5", "IT_REVIEW", VerdictAllow, time.Time{}, decisionlog.DayStart(fixedNow)),            // midnight counts as today
		resolvedItem("r-6", "ALLOW", VerdictAllow, decisionlog.DayStart(fixedNow).Add(-20*time.Second), decisionlog.DayStart(fixedNow).Add(-time.Nanosecond)), // agree, yesterday
	}
	f := newFixture(t, items...)

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Pending != 2 {
		t.Errorf("Pending = %d, want 2", st.Pending)
	}
	if st.ReviewedToday != 4 {
		t.Errorf("ReviewedToday = %d, want 4", st.ReviewedToday)
	}
	if st.Scored != 5 {
		t.Errorf("Scored = %d, want 5", st.Scored)
	}
	if want := 3.0 / 5.0; st.Accuracy != want {
		t.Errorf("Accuracy = %v, want %v", st.Accuracy, want)
	}
	// r-1 100s, r-2 50s, r-3 30s, r-6 positive; r-4 negative and r-5 missing created are ignored
	r6 := (20*time.Second - time.Nanosecond).Seconds()
	if want := (100 + 50 + 30 + r6) / 4; st.AvgTimeSeconds != want {
		t.Errorf("AvgTimeSeconds = %v, want %v", st.AvgTimeSeconds, want)
	}
}

func TestStats_NothingResolved(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingItem("p-1"))
	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Pending != 1 || st.ReviewedToday != 0 || st.Accuracy != 0 || st.AvgTimeSeconds != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStats_ScanError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.queue.scanErr = errors.New("scan failed")
	if _, err := f.svc.Stats(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// Model

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"allow", "block"} {
		if _, err := ParseVerdict(ok); err != nil {
			t.Errorf("ParseVerdict(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "Allow", "BLOCK", "deny"} {
		if _, err := ParseVerdict(bad); !errors.Is(err, ErrInvalidVerdict) {
			t.Errorf("ParseVerdict(%q) err = %v", bad, err)
		}
	}
}

func TestItemDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		item Item
		want string
	}{
		{Item{FromDomain: "Example.COM", FromAddr: "a@other.org"}, "example.com"},
		{Item{FromAddr: "a@Other.org"}, "other.org"},
		{Item{FromAddr: "broken@"}, "unknown"},
		{Item{}, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.item.Domain(); got != tt.want {
			t.Errorf("Domain(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestNewFeedbackEntry_GeneratesRunID(t *testing.T) {
	t.Parallel()

	fb := NewFeedbackEntry(&Item{ID: "q"}, VerdictBlock, "sam", fixedNow)
	if fb.RunID == "" {
		t.Error("expected generated run_id")
	}
	if fb.PK != "domain#unknown" {
		t.Errorf("PK = %q", fb.PK)
	}
	if fb.SK != "verdict#2025-11-01T15:00:00Z" {
		t.Errorf("SK = %q", fb.SK)
	}
}
