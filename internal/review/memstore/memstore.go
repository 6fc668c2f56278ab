// Package memstore provides an in-memory implementation of review.QueueStore
// and review.FeedbackStore.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/linnemanlabs/triagedesk/internal/review"
)

// DefaultScanLimit is the page size used when a scan does not set one.
const DefaultScanLimit = 1000

// Store holds queue items and feedback in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	items    map[string]*review.Item // queue ID -> item
	feedback []review.FeedbackEntry  // append-only
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		items: make(map[string]*review.Item),
	}
}

// Get retrieves a queue item by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*review.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	cp := *it
	return &cp, true, nil
}

// Put stores a copy of the queue item.
func (s *Store) Put(_ context.Context, it *review.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *it
	s.items[it.ID] = &cp
	return nil
}

// Scan walks items in ID order. Like a DynamoDB scan, Limit bounds the
// number of items examined, so a filtered page can be short.
func (s *Store) Scan(_ context.Context, in review.ScanInput) (*review.ScanPage, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		if id > in.StartKey {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	page := &review.ScanPage{}
	examined := ids
	if len(ids) > limit {
		examined = ids[:limit]
		page.LastKey = examined[len(examined)-1]
	}
	for _, id := range examined {
		it := s.items[id]
		if in.Status != "" && it.Status != in.Status {
			continue
		}
		cp := *it
		page.Items = append(page.Items, &cp)
	}
	return page, nil
}

// PutFeedback appends a copy of the entry.
func (s *Store) PutFeedback(_ context.Context, e *review.FeedbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, *e)
	return nil
}

// Feedback returns a snapshot of all feedback entries in write order.
func (s *Store) Feedback() []review.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.feedback)
}
