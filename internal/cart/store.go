package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Store is a cart bound to one persistence key. It is safe for concurrent use; every
// mutation is written through to persistence before it becomes visible.
type Store struct {
	mu          sync.Mutex
	key         string
	items       []Item
	persistence Persistence
}

// NewStore returns an empty cart for key. persistence may be nil.
func NewStore(key string, persistence Persistence) *Store {
	return &Store{key: key, persistence: persistence}
}

// Open loads the snapshot stored under key. A missing snapshot yields an empty cart.
func Open(ctx context.Context, key string, persistence Persistence) (*Store, error) {
	store := NewStore(key, persistence)
	if persistence == nil {
		return store, nil
	}
	items, _, err := persistence.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	store.items = items
	return store, nil
}

// Key returns the persistence key.
func (s *Store) Key() string {
	return s.key
}

// AddItem adds qty units of p. It returns false without touching the cart when p has no id
// or no positive price.
func (s *Store) AddItem(ctx context.Context, p Product, qty int) (bool, error) {
	return s.mutate(ctx, func(items []Item) ([]Item, bool) {
		return Add(items, p, qty)
	})
}

// RemoveItem drops the line with id.
func (s *Store) RemoveItem(ctx context.Context, id string) (bool, error) {
	return s.mutate(ctx, func(items []Item) ([]Item, bool) {
		return Remove(items, id)
	})
}

// UpdateQuantity sets the quantity of id; zero or negative removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, qty int) (bool, error) {
	return s.mutate(ctx, func(items []Item) ([]Item, bool) {
		return SetQuantity(items, id, qty)
	})
}

// ClearCart empties the cart and persists the empty snapshot.
func (s *Store) ClearCart(ctx context.Context) error {
	_, err := s.mutate(ctx, func([]Item) ([]Item, bool) {
		return nil, true
	})
	return err
}

// ResetCart empties the cart and removes the persisted snapshot.
func (s *Store) ResetCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistence != nil {
		if err := s.persistence.Delete(ctx, s.key); err != nil {
			return err
		}
	}
	s.items = nil
	return nil
}

// ItemsCount is the number of units in the cart.
func (s *Store) ItemsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Count(s.items)
}

// Total is the cart total rounded to two decimals.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Total(s.items)
}

func (s *Store) HasItem(id string) bool {
	_, ok := s.GetItem(id)
	return ok
}

func (s *Store) GetItem(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Find(s.items, id)
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

func (s *Store) mutate(ctx context.Context, fn func([]Item) ([]Item, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := fn(s.items)
	if !changed {
		return false, nil
	}
	if s.persistence != nil {
		if err := s.persistence.Save(ctx, s.key, next); err != nil {
			return false, fmt.Errorf("persist cart: %w", err)
		}
	}
	s.items = next
	return true, nil
}
