// Package store holds the local cart snapshot shown to the UI.
package store

import "github.com/abgdnv/cartsync/internal/domain"

// CartStore is the single source of truth for what the UI currently shows.
// Implementations never perform I/O and know nothing about network state.
type CartStore interface {
	// Load replaces all items and recomputes the totals.
	// Returns ErrInvalidSnapshot and leaves the store untouched if the items are inconsistent.
	Load(items []domain.Item) error

	// Apply sets the quantity of an existing item.
	// Returns ErrItemNotFound if the item is absent and ErrInvalidQuantity if quantity is below one.
	Apply(cartID string, quantity int) error

	// Remove deletes an item and returns it together with its position.
	// Returns ErrItemNotFound if the item is absent.
	Remove(cartID string) (domain.Item, int, error)

	// Restore puts a removed item back at its former position.
	// Returns ErrItemExists if an item with the same cart ID is present.
	Restore(item domain.Item, position int) error

	// Get returns a single item.
	// Returns ErrItemNotFound if the item is absent.
	Get(cartID string) (domain.Item, error)

	// Snapshot returns a copy of the cart that callers may keep.
	Snapshot() domain.Cart

	// Clear drops every item.
	Clear()

	// Generation identifies the current snapshot. Load and Clear move it forward, item changes do not.
	Generation() uint64
}
