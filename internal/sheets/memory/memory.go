// Package memory is an in-process export target, used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"registro/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[int64]core.Movement
	order []int64
}

func New() *Store {
	return &Store{items: make(map[int64]core.Movement)}
}

// Append stores the movement and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, m core.Movement) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.items[m.ID]; !seen {
		s.order = append(s.order, m.ID)
	}
	s.items[m.ID] = m
	return fmt.Sprintf("mem:%d", m.ID), nil
}

// Delete removes an exported movement.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("movement %d: %w", id, core.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// Movements returns the stored movements in append order.
func (s *Store) Movements() []core.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Movement, 0, len(s.items))
	for _, id := range s.order {
		if m, ok := s.items[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
