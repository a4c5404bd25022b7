package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

var _ usecase.Store = (*InMemoryStore)(nil)

// InMemoryStore keeps everything in process memory. InsertMany validates the
// whole chunk before mutating anything, so a chunk is stored entirely or not at all.
type InMemoryStore struct {
	mu         sync.RWMutex
	cards      map[string]entity.SimCard // by serial number
	order      []string
	batches    map[string]*batchRecord
	activities map[string][]entity.Activity
}

type batchRecord struct {
	mu   sync.RWMutex
	meta entity.Batch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cards:      make(map[string]entity.SimCard),
		batches:    make(map[string]*batchRecord),
		activities: make(map[string][]entity.Activity),
	}
}

func (s *InMemoryStore) InsertMany(ctx context.Context, cards []entity.SimCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(cards))
	for _, c := range cards {
		if _, exists := s.cards[c.SerialNumber]; exists {
			return fmt.Errorf("serial %s: %w", c.SerialNumber, pkgerror.ErrConflict)
		}
		if _, dup := seen[c.SerialNumber]; dup {
			return fmt.Errorf("serial %s repeated in chunk: %w", c.SerialNumber, pkgerror.ErrConflict)
		}
		seen[c.SerialNumber] = struct{}{}
	}

	for _, c := range cards {
		s.cards[c.SerialNumber] = c
		s.order = append(s.order, c.SerialNumber)
	}

	return nil
}

func (s *InMemoryStore) DeleteByBatch(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, serial := range s.order {
		if s.cards[serial].BatchID == batchID {
			delete(s.cards, serial)
			continue
		}
		kept = append(kept, serial)
	}
	s.order = kept

	return nil
}

func (s *InMemoryStore) CreateBatch(ctx context.Context, meta entity.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[meta.ID]; exists {
		return pkgerror.ErrConflict
	}

	s.batches[meta.ID] = &batchRecord{meta: meta}

	return nil
}

func (s *InMemoryStore) UpdateBatch(ctx context.Context, batchID string, fn func(meta *entity.Batch)) error {
	rec, err := s.batch(batchID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	fn(&rec.meta)

	return nil
}

func (s *InMemoryStore) GetBatch(ctx context.Context, batchID string) (entity.Batch, error) {
	rec, err := s.batch(batchID)
	if err != nil {
		return entity.Batch{}, err
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	return rec.meta, nil
}

func (s *InMemoryStore) ListCards(ctx context.Context, filter usecase.CardFilter, page, pageSize int) ([]entity.SimCard, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	start := (page - 1) * pageSize
	end := start + pageSize
	items := make([]entity.SimCard, 0, pageSize)

	for _, serial := range s.order {
		card := s.cards[serial]
		if !filter.Matches(card) {
			continue
		}

		if total >= start && total < end {
			items = append(items, card)
		}
		total++
	}

	return items, total, nil
}

func (s *InMemoryStore) GetCard(ctx context.Context, serial string) (entity.SimCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[serial]
	if !ok {
		return entity.SimCard{}, pkgerror.ErrNotFound
	}

	return card, nil
}

func (s *InMemoryStore) UpdateCard(ctx context.Context, serial string, fn func(card *entity.SimCard) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card, ok := s.cards[serial]
	if !ok {
		return pkgerror.ErrNotFound
	}

	if err := fn(&card); err != nil {
		return err
	}
	card.SerialNumber = serial
	s.cards[serial] = card

	return nil
}

func (s *InMemoryStore) AppendActivity(ctx context.Context, act entity.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activities[act.BatchID] = append(s.activities[act.BatchID], act)

	return nil
}

func (s *InMemoryStore) ListActivities(ctx context.Context, batchID string) ([]entity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Activity, len(s.activities[batchID]))
	copy(out, s.activities[batchID])

	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) batch(batchID string) (*batchRecord, error) {
	s.mu.RLock()
	rec, ok := s.batches[batchID]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}
