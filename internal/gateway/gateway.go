// Package gateway defines the boundary to the authoritative remote cart service.
package gateway

import (
	"context"

	"github.com/abgdnv/cartsync/internal/domain"
)

// RemoteCartGateway is the network boundary for the cart.
// A returned error always means the call failed in transit; a service-side refusal is reported through
// IsSuccess=false in the result with a nil error.
type RemoteCartGateway interface {
	// FetchCart returns the full cart in the order the service keeps it.
	FetchCart(ctx context.Context) ([]domain.Item, error)

	// SetQuantity writes a new quantity for one line. Repeated calls are last-write-wins.
	SetQuantity(ctx context.Context, cartID string, quantity int) (SetQuantityResult, error)

	// RemoveItem deletes one line.
	RemoveItem(ctx context.Context, cartID string) (RemoveResult, error)
}

// SetQuantityResult is the service's answer to SetQuantity.
// Quantity is set when the service reports the quantity it actually stored.
type SetQuantityResult struct {
	IsSuccess bool
	Message   string
	Quantity  *int
}

// RemoveResult is the service's answer to RemoveItem.
type RemoveResult struct {
	IsSuccess bool
	Message   string
}
