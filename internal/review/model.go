package review

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

// Status tracks where a queue item is in its lifecycle.
type Status string

const (
	// StatusPending means waiting for a reviewer
	StatusPending Status = "pending"

	// StatusResolved means a verdict has been applied
	StatusResolved Status = "resolved"
)

// Verdict is a reviewer's final judgment.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictBlock Verdict = "block"
)

// ParseVerdict accepts exactly "allow" or "block".
func ParseVerdict(s string) (Verdict, error) {
	switch Verdict(s) {
	case VerdictAllow, VerdictBlock:
		return Verdict(s), nil
	}
	return "", ErrInvalidVerdict
}

// Item is one email awaiting or having received review.
type Item struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Verdict    Verdict   `json:"verdict,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_ts,omitzero"`
	ResolvedAt time.Time `json:"resolved_ts,omitzero"`
	Decision   string    `json:"decision,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	FromAddr   string    `json:"from_addr,omitempty"`
	FromDomain string    `json:"from_domain,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	LogBucket  string    `json:"log_bucket,omitempty"`
	LogKey     string    `json:"log_key,omitempty"`
}

// LogRef returns the item's decision log location.
func (it *Item) LogRef() decisionlog.Ref {
	return decisionlog.Ref{Bucket: it.LogBucket, Key: it.LogKey}
}

// Domain returns the sender domain, derived from the address when unset.
func (it *Item) Domain() string {
	if it.FromDomain != "" {
		return strings.ToLower(it.FromDomain)
	}
	if at := strings.LastIndexByte(it.FromAddr, '@'); at >= 0 && at < len(it.FromAddr)-1 {
		return strings.ToLower(it.FromAddr[at+1:])
	}
	return "unknown"
}

// PendingItem is a queue item merged with display fields from its decision
// record. Fields is nil when the record could not be loaded.
type PendingItem struct {
	*Item
	*decisionlog.Fields
	Enriched bool `json:"enriched"`
}

// FeedbackEntry is a learning signal derived from a resolved verdict.
type FeedbackEntry struct {
	PK         string    `json:"pk"`
	SK         string    `json:"sk"`
	QueueID    string    `json:"queue_id"`
	Verdict    Verdict   `json:"verdict"`
	Actor      string    `json:"actor"`
	RunID      string    `json:"run_id"`
	FromAddr   string    `json:"from_addr,omitempty"`
	FromDomain string    `json:"from_domain"`
	TrustTier  string    `json:"trust_tier"`
	CreatedAt  time.Time `json:"created_ts"`
	LogBucket  string    `json:"log_bucket,omitempty"`
	LogKey     string    `json:"log_key,omitempty"`
}

// NewFeedbackEntry derives the feedback row for item as it was before
// resolution.
func NewFeedbackEntry(item *Item, v Verdict, actor string, at time.Time) *FeedbackEntry {
	at = at.UTC()
	domain := item.Domain()
	runID := item.RunID
	if runID == "" {
		runID = ulid.Make().String()
	}
	tier := "blocked"
	if v == VerdictAllow {
		tier = "trusted"
	}
	return &FeedbackEntry{
		PK:         "domain#" + domain,
		SK:         "verdict#" + at.Format(time.RFC3339Nano),
		QueueID:    item.ID,
		Verdict:    v,
		Actor:      actor,
		RunID:      runID,
		FromAddr:   item.FromAddr,
		FromDomain: domain,
		TrustTier:  tier,
		CreatedAt:  at,
		LogBucket:  item.LogBucket,
		LogKey:     item.LogKey,
	}
}

// Resolution is the outcome of applying a verdict. The queue update always
// succeeded when a Resolution is returned; LogUpdated and FeedbackWritten report
// the best-effort steps.
type Resolution struct {
	ID              string         `json:"id"`
	Status          Status         `json:"status"`
	Verdict         Verdict        `json:"verdict"`
	Actor           string         `json:"actor"`
	Notes           string         `json:"notes"`
	ResolvedAt      time.Time      `json:"resolved_ts"`
	LogUpdated      bool           `json:"s3Updated"`
	FeedbackWritten bool           `json:"feedbackWritten"`
	Feedback        *FeedbackEntry `json:"feedback,omitempty"`
}

// Stats summarizes the whole queue.
type Stats struct {
	Pending        int     `json:"pending"`
	ReviewedToday  int     `json:"reviewedToday"`
	Accuracy       float64 `json:"accuracy"`
	AvgTimeSeconds float64 `json:"avgTimeSeconds"`
	Resolved       int     `json:"resolved"`
	Scored         int     `json:"scored"`
}
