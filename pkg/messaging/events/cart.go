package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/cartsync/pkg/messaging"
	"go.opentelemetry.io/otel/propagation"
)

// CartLoadedEvent is emitted after a full fetch replaced the local cart.
type CartLoadedEvent struct {
	Carrier     propagation.MapCarrier `json:"carrier,omitempty"`
	Lines       int                    `json:"lines"`
	TotalItems  int                    `json:"total_items"`
	TotalAmount int64                  `json:"total_amount"`
	LoadedAt    time.Time              `json:"loaded_at"`
}

func (e CartLoadedEvent) Subject() string {
	return messaging.CartLoadedSubject
}

func (e CartLoadedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// CartItemUpdatedEvent is emitted when a quantity change was confirmed by the cart service.
type CartItemUpdatedEvent struct {
	Carrier          propagation.MapCarrier `json:"carrier,omitempty"`
	CartID           string                 `json:"cart_id"`
	Quantity         int                    `json:"quantity"`
	PreviousQuantity int                    `json:"previous_quantity"`
	TotalItems       int                    `json:"total_items"`
	TotalAmount      int64                  `json:"total_amount"`
	CommittedAt      time.Time              `json:"committed_at"`
}

func (e CartItemUpdatedEvent) Subject() string {
	return messaging.CartItemUpdatedSubject
}

func (e CartItemUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// CartItemRemovedEvent is emitted when a line removal was confirmed by the cart service.
type CartItemRemovedEvent struct {
	Carrier     propagation.MapCarrier `json:"carrier,omitempty"`
	CartID      string                 `json:"cart_id"`
	TotalItems  int                    `json:"total_items"`
	TotalAmount int64                  `json:"total_amount"`
	CommittedAt time.Time              `json:"committed_at"`
}

func (e CartItemRemovedEvent) Subject() string {
	return messaging.CartItemRemovedSubject
}

func (e CartItemRemovedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
