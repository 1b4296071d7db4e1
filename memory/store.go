// Package memory provides an in-process InspectionStore. Aggregates are kept
// as encoded documents so callers never share pointers with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dukerupert/checkmate"
	"github.com/google/uuid"
)

// Compile-time check that Store implements checkmate.InspectionStore.
var _ checkmate.InspectionStore = (*Store)(nil)

type record struct {
	document []byte
	version  int64
	summary  checkmate.InspectionSummary
}

// Store is a concurrency-safe in-memory InspectionStore.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[uuid.UUID]*record)}
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*checkmate.Inspection, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, checkmate.NotFound("Inspection %s not found", id)
	}
	insp, err := checkmate.DecodeDocument(rec.document, rec.version)
	if err != nil {
		return nil, checkmate.Internal("Failed to decode inspection", err)
	}
	return insp, nil
}

func (s *Store) Save(ctx context.Context, insp *checkmate.Inspection) error {
	doc, err := checkmate.EncodeDocument(insp)
	if err != nil {
		return checkmate.Internal("Failed to encode inspection", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[insp.ID]
	switch {
	case insp.Version == 0 && ok:
		return checkmate.Conflict("Inspection %s already exists", insp.ID)
	case insp.Version != 0 && !ok:
		return checkmate.NotFound("Inspection %s not found", insp.ID)
	case ok && existing.version != insp.Version:
		return checkmate.Conflict("Inspection %s was modified concurrently", insp.ID)
	}

	next := insp.Version + 1
	s.records[insp.ID] = &record{document: doc, version: next, summary: *insp.Summarize()}
	insp.Version = next
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return checkmate.NotFound("Inspection %s not found", id)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) List(ctx context.Context, filter checkmate.InspectionFilter) ([]*checkmate.InspectionSummary, int, error) {
	s.mu.RLock()
	matched := make([]*checkmate.InspectionSummary, 0, len(s.records))
	for _, rec := range s.records {
		if filter.State != nil && rec.summary.State != *filter.State {
			continue
		}
		sum := rec.summary
		matched = append(matched, &sum)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			return []*checkmate.InspectionSummary{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
