// Package domain holds the cart types shared by the store, the gateway and the coordinator.
package domain

// Item is one line of the cart.
// Price is in minor currency units (cents). Stock is the ceiling reported by the catalog at the last fetch.
type Item struct {
	CartID    string `json:"cart_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Stock     int    `json:"stock"`
	ImageRef  string `json:"image_ref,omitempty"`
}

// LineTotal returns price multiplied by quantity.
func (i Item) LineTotal() int64 {
	return i.Price * int64(i.Quantity)
}

// Cart is a read-only view of the cart with its derived totals.
type Cart struct {
	Items       []Item `json:"items"`
	TotalItems  int    `json:"total_items"`
	TotalAmount int64  `json:"total_amount"`
}

// Find returns the item with the given cart ID.
func (c Cart) Find(cartID string) (Item, bool) {
	for _, item := range c.Items {
		if item.CartID == cartID {
			return item, true
		}
	}
	return Item{}, false
}

// Len returns the number of lines in the cart.
func (c Cart) Len() int {
	return len(c.Items)
}

// OperationKind names the mutation a PendingOperation belongs to.
type OperationKind string

const (
	OpIncrement   OperationKind = "increment"
	OpDecrement   OperationKind = "decrement"
	OpSetQuantity OperationKind = "set_quantity"
	OpRemove      OperationKind = "remove"
)

// PendingOperation captures what is needed to undo one in-flight mutation.
// Previous and Position are only set for removals. Generation is the store generation the optimistic
// change was applied to; once it moves on, the change can no longer be undone.
type PendingOperation struct {
	Kind             OperationKind
	CartID           string
	PreviousQuantity int
	Previous         Item
	Position         int
	Generation       uint64
}

// KindFor derives the operation kind from the quantity delta.
func KindFor(previous, requested int) OperationKind {
	switch requested - previous {
	case 1:
		return OpIncrement
	case -1:
		return OpDecrement
	default:
		return OpSetQuantity
	}
}
