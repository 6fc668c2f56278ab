package review

import (
	"context"
	"errors"
)

var (
	// ErrInvalidVerdict is returned for any verdict other than allow or block.
	ErrInvalidVerdict = errors.New("verdict must be one of: allow, block")

	// ErrNotFound is returned when the queue item does not exist.
	ErrNotFound = errors.New("queue item not found")
)

// ScanInput selects a page of queue items. Zero values mean no status filter,
// store default page size, and the first page.
type ScanInput struct {
	Status   Status
	Limit    int
	StartKey string
}

// ScanPage is one page of a queue scan. LastKey is empty on the final page.
type ScanPage struct {
	Items   []*Item
	LastKey string
}

// QueueStore is the persistence interface for review queue items.
type QueueStore interface {
	Get(ctx context.Context, id string) (*Item, bool, error)
	Put(ctx context.Context, item *Item) error
	Scan(ctx context.Context, in ScanInput) (*ScanPage, error)
}

// FeedbackStore is the append-only sink for verdict feedback.
type FeedbackStore interface {
	PutFeedback(ctx context.Context, entry *FeedbackEntry) error
}

// Notifier announces resolved verdicts.
type Notifier interface {
	NotifyResolution(ctx context.Context, item *Item, res *Resolution) error
}
