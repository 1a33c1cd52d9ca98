package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/abgdnv/cartsync/internal/domain"
	carterrors "github.com/abgdnv/cartsync/internal/errors"
)

var _ CartStore = (*InMemoryStore)(nil)

// InMemoryStore implements CartStore with an insertion-ordered map.
// Totals are recomputed under the same lock as every item change.
type InMemoryStore struct {
	mu          sync.RWMutex
	order       []string
	items       map[string]domain.Item
	totalItems  int
	totalAmount int64
	generation  uint64
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items: make(map[string]domain.Item),
	}
}

// Load replaces the full mapping. The incoming items are checked before anything is touched.
func (s *InMemoryStore) Load(items []domain.Item) error {
	order := make([]string, 0, len(items))
	mapping := make(map[string]domain.Item, len(items))
	for i, item := range items {
		if err := checkItem(item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := mapping[item.CartID]; dup {
			return fmt.Errorf("duplicate cart id %q: %w", item.CartID, carterrors.ErrInvalidSnapshot)
		}
		order = append(order, item.CartID)
		mapping[item.CartID] = item
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = order
	s.items = mapping
	s.generation++
	s.recompute()
	return nil
}

// Apply sets the quantity of an existing item.
func (s *InMemoryStore) Apply(cartID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity %d: %w", quantity, carterrors.ErrInvalidQuantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[cartID]
	if !ok {
		return carterrors.ErrItemNotFound
	}
	item.Quantity = quantity
	s.items[cartID] = item
	s.recompute()
	return nil
}

// Remove deletes an item and reports where it was.
func (s *InMemoryStore) Remove(cartID string) (domain.Item, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[cartID]
	if !ok {
		return domain.Item{}, -1, carterrors.ErrItemNotFound
	}
	position := slices.Index(s.order, cartID)
	s.order = slices.Delete(s.order, position, position+1)
	delete(s.items, cartID)
	s.recompute()
	return item, position, nil
}

// Restore reinserts an item. Positions past the end append.
func (s *InMemoryStore) Restore(item domain.Item, position int) error {
	if err := checkItem(item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.CartID]; ok {
		return carterrors.ErrItemExists
	}
	position = max(0, min(position, len(s.order)))
	s.order = slices.Insert(s.order, position, item.CartID)
	s.items[item.CartID] = item
	s.recompute()
	return nil
}

// Get returns a single item.
func (s *InMemoryStore) Get(cartID string) (domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[cartID]
	if !ok {
		return domain.Item{}, carterrors.ErrItemNotFound
	}
	return item, nil
}

// Snapshot copies the cart in insertion order.
func (s *InMemoryStore) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Item, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.items[id])
	}
	return domain.Cart{
		Items:       list,
		TotalItems:  s.totalItems,
		TotalAmount: s.totalAmount,
	}
}

// Clear drops every item.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.items = make(map[string]domain.Item)
	s.generation++
	s.recompute()
}

// Generation returns the snapshot generation.
func (s *InMemoryStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// recompute derives the totals from the items. Callers must hold the write lock.
func (s *InMemoryStore) recompute() {
	var count int
	var amount int64
	for _, item := range s.items {
		count += item.Quantity
		amount += item.LineTotal()
	}
	s.totalItems = count
	s.totalAmount = amount
}

func checkItem(item domain.Item) error {
	switch {
	case item.CartID == "":
		return fmt.Errorf("empty cart id: %w", carterrors.ErrInvalidSnapshot)
	case item.Quantity < 1:
		return fmt.Errorf("cart id %q has quantity %d: %w", item.CartID, item.Quantity, carterrors.ErrInvalidSnapshot)
	case item.Price < 0:
		return fmt.Errorf("cart id %q has negative price: %w", item.CartID, carterrors.ErrInvalidSnapshot)
	case item.Stock < 0:
		return fmt.Errorf("cart id %q has negative stock: %w", item.CartID, carterrors.ErrInvalidSnapshot)
	}
	return nil
}
