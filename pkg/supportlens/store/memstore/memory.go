package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/supportlens/pkg/supportlens/aggregate"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a deep copy of r.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
	}
	s.runs[r.ID] = copyRun(r)
	return nil
}

// GetRun returns a copy of the stored run.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	return copyRun(r), nil
}

// LatestRun returns the newest run.
func (s *Store) LatestRun(ctx context.Context) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sortedLocked()
	if len(sorted) == 0 {
		return store.Run{}, fmt.Errorf("%w: no runs", internalerr.ErrNotFound)
	}
	return copyRun(sorted[0]), nil
}

// ListRuns returns run headers, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := s.sortedLocked()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]store.RunInfo, len(sorted))
	for i, r := range sorted {
		out[i] = r.Info()
	}
	return out, nil
}

// sortedLocked orders runs newest first, breaking ties by id like the
// sqlite store does.
func (s *Store) sortedLocked() []store.Run {
	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func copyRun(r store.Run) store.Run {
	out := r
	out.Records = append([]records.Record(nil), r.Records...)
	out.Inquiries = append([]store.Inquiry(nil), r.Inquiries...)
	out.Buckets = make([]aggregate.Bucket, len(r.Buckets))
	for i, b := range r.Buckets {
		out.Buckets[i] = copyBucket(b)
	}
	return out
}

func copyBucket(b aggregate.Bucket) aggregate.Bucket {
	out := aggregate.Bucket{Tag: b.Tag}
	out.FAQ = make([]aggregate.FAQEntry, len(b.FAQ))
	for i, e := range b.FAQ {
		e.ConversationIDs = append([]string(nil), e.ConversationIDs...)
		out.FAQ[i] = e
	}
	out.Keywords = make([]aggregate.KeywordEntry, len(b.Keywords))
	for i, e := range b.Keywords {
		e.ConversationIDs = append([]string(nil), e.ConversationIDs...)
		out.Keywords[i] = e
	}
	if b.Summary != nil {
		sum := *b.Summary
		sum.Keywords = append([]string(nil), b.Summary.Keywords...)
		out.Summary = &sum
	}
	return out
}
