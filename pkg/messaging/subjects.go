package messaging

// Subjects are relative; the NATS publisher prepends the configured prefix.
const (
	CartLoadedSubject      = "cart.loaded"
	CartItemUpdatedSubject = "cart.item.updated"
	CartItemRemovedSubject = "cart.item.removed"
)
