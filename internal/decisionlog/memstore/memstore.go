// Package memstore provides an in-memory implementation of decisionlog.Store.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/linnemanlabs/triagedesk/internal/decisionlog"
)

// DefaultPageSize matches the S3 ListObjectsV2 default.
const DefaultPageSize = 1000

// Store holds objects in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	objects  map[string]map[string][]byte // bucket -> key -> body
	pageSize int
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		objects:  make(map[string]map[string][]byte),
		pageSize: DefaultPageSize,
	}
}

// WithPageSize sets the listing page size, used by tests to force pagination.
func (s *Store) WithPageSize(n int) *Store {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// Get returns a copy of the object body.
func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[bucket][key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(body), true, nil
}

// Put stores a copy of body.
func (s *Store) Put(_ context.Context, bucket, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[bucket]
	if !ok {
		b = make(map[string][]byte)
		s.objects[bucket] = b
	}
	b[key] = slices.Clone(body)
	return nil
}

// List returns keys under prefix in lexical order. The continuation token is
// the last key of the previous page.
func (s *Store) List(_ context.Context, bucket, prefix, token string) (*decisionlog.Page, error) {
	s.mu.RLock()
	keys := make([]string, 0)
	for k := range s.objects[bucket] {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	slices.Sort(keys)
	page := &decisionlog.Page{}
	if len(keys) > s.pageSize {
		page.Keys = keys[:s.pageSize]
		page.NextToken = keys[s.pageSize-1]
		return page, nil
	}
	page.Keys = keys
	return page, nil
}
