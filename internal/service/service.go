// Package service reconciles the local cart with the remote cart service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/cartsync/internal/domain"
	carterrors "github.com/abgdnv/cartsync/internal/errors"
	"github.com/abgdnv/cartsync/internal/gateway"
	"github.com/abgdnv/cartsync/internal/guard"
	"github.com/abgdnv/cartsync/internal/quantity"
	"github.com/abgdnv/cartsync/internal/store"
	"github.com/abgdnv/cartsync/pkg/messaging"
	"github.com/abgdnv/cartsync/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// CartService defines the user-facing cart operations.
// Every mutation is validated locally, applied optimistically and then confirmed or undone by the cart service.
type CartService interface {
	// UpdateQuantity sets the quantity of a line.
	// A quantity below the minimum is handled as RemoveItem. Requesting the current quantity is a no-op.
	// Returns ErrItemNotFound, ErrExceedsStock, ErrAlreadyPending, a *BusinessRejectionError or a *TransportError.
	UpdateQuantity(ctx context.Context, cartID string, requested int) error

	// Increment adds one to the quantity of a line.
	Increment(ctx context.Context, cartID string) error

	// Decrement subtracts one from the quantity of a line. Decrementing a line at the minimum removes it.
	Decrement(ctx context.Context, cartID string) error

	// RemoveItem deletes a line once the Confirmer agreed.
	// Returns ErrRemovalDeclined when the user said no, otherwise the same errors as UpdateQuantity.
	RemoveItem(ctx context.Context, cartID string) error

	// LoadCart replaces the local cart with the cart service's. The local cart is untouched on failure.
	LoadCart(ctx context.Context) error

	// Snapshot returns the current cart.
	Snapshot() domain.Cart

	// EndSession drops the local cart.
	EndSession()

	// Pending reports whether a mutation for cartID is in flight.
	Pending(cartID string) bool
}

var _ CartService = (*Coordinator)(nil)

// Coordinator implements CartService. It is the only writer of its CartStore.
type Coordinator struct {
	// mu orders snapshot replacement against optimistic writes, late commits and rollbacks.
	// It is never held across a call to the cart service.
	mu          sync.Mutex
	store       store.CartStore
	guard       *guard.MutationGuard
	gateway     gateway.RemoteCartGateway
	confirmer   Confirmer
	publisher   messaging.Publisher
	callTimeout time.Duration
	minimum     int
	metrics     metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewCoordinator creates a Coordinator. callTimeout bounds every call to the cart service.
func NewCoordinator(
	cartStore store.CartStore,
	cartGateway gateway.RemoteCartGateway,
	confirmer Confirmer,
	publisher messaging.Publisher,
	callTimeout time.Duration,
	logger *slog.Logger,
) *Coordinator {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	mutationGuard := guard.New()
	return &Coordinator{
		store:       cartStore,
		guard:       mutationGuard,
		gateway:     cartGateway,
		confirmer:   confirmer,
		publisher:   publisher,
		callTimeout: callTimeout,
		minimum:     quantity.DefaultMinimum,
		metrics:     newMetrics(otel.Meter(meterName), mutationGuard),
		logger:      logger.With("component", "coordinator"),
		now:         time.Now,
	}
}

func (c *Coordinator) UpdateQuantity(ctx context.Context, cartID string, requested int) error {
	item, err := c.store.Get(cartID)
	if err != nil {
		c.metrics.mutation(ctx, domain.OpSetQuantity, err)
		return fmt.Errorf("update quantity of %s: %w", cartID, err)
	}

	verdict := quantity.Validate(requested, item.Stock, c.minimum)
	switch verdict.Verdict {
	case quantity.BelowMinimum:
		c.logger.DebugContext(ctx, "Quantity below minimum, routing to removal", "cart_id", cartID, "requested", requested)
		return c.RemoveItem(ctx, cartID)
	case quantity.ExceedsStock:
		err := fmt.Errorf("update quantity of %s to %d, stock %d: %w", cartID, requested, item.Stock, carterrors.ErrExceedsStock)
		c.logger.WarnContext(ctx, "Quantity rejected", "cart_id", cartID, "requested", requested, "stock", item.Stock)
		c.metrics.mutation(ctx, domain.KindFor(item.Quantity, requested), err)
		return err
	}
	if verdict.Quantity == item.Quantity {
		return nil
	}

	token, err := c.guard.Acquire(cartID)
	if err != nil {
		c.logger.DebugContext(ctx, "Update dropped, another change is in flight", "cart_id", cartID)
		c.metrics.mutation(ctx, domain.KindFor(item.Quantity, verdict.Quantity), err)
		return fmt.Errorf("update quantity of %s: %w", cartID, err)
	}
	defer token.Release()

	current, op, changed, err := c.beginUpdate(cartID, verdict.Quantity)
	if err != nil {
		c.metrics.mutation(ctx, op.Kind, err)
		return fmt.Errorf("update quantity of %s to %d: %w", cartID, verdict.Quantity, err)
	}
	if !changed {
		return nil
	}

	res, err := c.callSetQuantity(ctx, cartID, verdict.Quantity)
	if err == nil && !res.IsSuccess {
		err = &carterrors.BusinessRejectionError{Op: "update quantity", Message: res.Message}
	}
	if err != nil {
		c.rollback(ctx, op)
		c.logFailure(ctx, "Quantity update rolled back", op, err)
		c.metrics.mutation(ctx, op.Kind, err)
		return err
	}

	committed := c.commitUpdate(ctx, op, current, verdict.Quantity, res.Quantity)
	c.logger.InfoContext(ctx, "Quantity updated", "cart_id", cartID, "previous", op.PreviousQuantity, "quantity", committed)
	c.metrics.mutation(ctx, op.Kind, nil)

	snapshot := c.store.Snapshot()
	c.publish(ctx, events.CartItemUpdatedEvent{
		Carrier:          traceCarrier(ctx),
		CartID:           cartID,
		Quantity:         committed,
		PreviousQuantity: op.PreviousQuantity,
		TotalItems:       snapshot.TotalItems,
		TotalAmount:      snapshot.TotalAmount,
		CommittedAt:      c.now(),
	})
	return nil
}

// beginUpdate re-reads the line under the guard, since it may have changed since the first read,
// and applies qty optimistically. changed is false when the line already has qty.
func (c *Coordinator) beginUpdate(cartID string, qty int) (domain.Item, domain.PendingOperation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.Get(cartID)
	if err != nil {
		return domain.Item{}, domain.PendingOperation{Kind: domain.OpSetQuantity, CartID: cartID}, false, err
	}
	op := domain.PendingOperation{
		Kind:             domain.KindFor(current.Quantity, qty),
		CartID:           cartID,
		PreviousQuantity: current.Quantity,
		Generation:       c.store.Generation(),
	}
	if recheck := quantity.Validate(qty, current.Stock, c.minimum); !recheck.Accepted() {
		return current, op, false, fmt.Errorf("stock %d: %w", current.Stock, carterrors.ErrExceedsStock)
	}
	if qty == current.Quantity {
		return current, op, false, nil
	}
	if err := c.store.Apply(cartID, qty); err != nil {
		return current, op, false, err
	}
	return current, op, true, nil
}

// commitUpdate settles a quantity change the cart service accepted.
// If the cart was replaced while the call was in flight, the accepted quantity is carried over to the
// reloaded line, subject to the same checks as a reported quantity.
func (c *Coordinator) commitUpdate(ctx context.Context, op domain.PendingOperation, item domain.Item, applied int, reported *int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Generation() == op.Generation {
		return c.reconcile(ctx, item, applied, reported)
	}
	accepted := applied
	if reported != nil {
		accepted = *reported
	}
	line, err := c.store.Get(op.CartID)
	if err != nil {
		c.logger.InfoContext(ctx, "Updated line is not in the reloaded cart", "cart_id", op.CartID)
		return accepted
	}
	return c.reconcile(ctx, line, line.Quantity, &accepted)
}

// reconcile adopts the quantity reported by the cart service when it differs from the one applied.
// A reported quantity below the minimum means the service dropped the line. A reported quantity above the
// stock observed locally is not adopted; the next LoadCart brings both values in line.
func (c *Coordinator) reconcile(ctx context.Context, item domain.Item, applied int, reported *int) int {
	if reported == nil || *reported == applied {
		return applied
	}
	serverQty := *reported
	switch {
	case serverQty < c.minimum:
		if _, _, err := c.store.Remove(item.CartID); err != nil {
			c.logger.ErrorContext(ctx, "Failed to drop line removed by the cart service", "cart_id", item.CartID, "error", err)
			return applied
		}
		c.logger.InfoContext(ctx, "Cart service removed the line", "cart_id", item.CartID)
		return serverQty
	case serverQty > item.Stock:
		c.logger.WarnContext(ctx, "Cart service reported a quantity above known stock", "cart_id", item.CartID, "reported", serverQty, "stock", item.Stock)
		return applied
	default:
		if err := c.store.Apply(item.CartID, serverQty); err != nil {
			c.logger.ErrorContext(ctx, "Failed to adopt quantity reported by the cart service", "cart_id", item.CartID, "error", err)
			return applied
		}
		return serverQty
	}
}

func (c *Coordinator) Increment(ctx context.Context, cartID string) error {
	item, err := c.store.Get(cartID)
	if err != nil {
		c.metrics.mutation(ctx, domain.OpIncrement, err)
		return fmt.Errorf("increment %s: %w", cartID, err)
	}
	return c.UpdateQuantity(ctx, cartID, item.Quantity+1)
}

func (c *Coordinator) Decrement(ctx context.Context, cartID string) error {
	item, err := c.store.Get(cartID)
	if err != nil {
		c.metrics.mutation(ctx, domain.OpDecrement, err)
		return fmt.Errorf("decrement %s: %w", cartID, err)
	}
	return c.UpdateQuantity(ctx, cartID, item.Quantity-1)
}

func (c *Coordinator) RemoveItem(ctx context.Context, cartID string) error {
	item, err := c.store.Get(cartID)
	if err != nil {
		c.metrics.mutation(ctx, domain.OpRemove, err)
		return fmt.Errorf("remove %s: %w", cartID, err)
	}

	if !c.confirmer.ConfirmRemoval(ctx, item) {
		c.logger.DebugContext(ctx, "Removal declined", "cart_id", cartID)
		c.metrics.mutation(ctx, domain.OpRemove, carterrors.ErrRemovalDeclined)
		return fmt.Errorf("remove %s: %w", cartID, carterrors.ErrRemovalDeclined)
	}

	token, err := c.guard.Acquire(cartID)
	if err != nil {
		c.logger.DebugContext(ctx, "Removal dropped, another change is in flight", "cart_id", cartID)
		c.metrics.mutation(ctx, domain.OpRemove, err)
		return fmt.Errorf("remove %s: %w", cartID, err)
	}
	defer token.Release()

	c.mu.Lock()
	generation := c.store.Generation()
	removed, position, err := c.store.Remove(cartID)
	c.mu.Unlock()
	if err != nil {
		c.metrics.mutation(ctx, domain.OpRemove, err)
		return fmt.Errorf("remove %s: %w", cartID, err)
	}
	op := domain.PendingOperation{
		Kind:             domain.OpRemove,
		CartID:           cartID,
		PreviousQuantity: removed.Quantity,
		Previous:         removed,
		Position:         position,
		Generation:       generation,
	}

	res, err := c.callRemoveItem(ctx, cartID)
	if err == nil && !res.IsSuccess {
		err = &carterrors.BusinessRejectionError{Op: "remove item", Message: res.Message}
	}
	if err != nil {
		c.rollback(ctx, op)
		c.logFailure(ctx, "Removal rolled back", op, err)
		c.metrics.mutation(ctx, op.Kind, err)
		return err
	}

	c.commitRemove(ctx, op)
	c.logger.InfoContext(ctx, "Line removed", "cart_id", cartID)
	c.metrics.mutation(ctx, op.Kind, nil)

	snapshot := c.store.Snapshot()
	c.publish(ctx, events.CartItemRemovedEvent{
		Carrier:     traceCarrier(ctx),
		CartID:      cartID,
		TotalItems:  snapshot.TotalItems,
		TotalAmount: snapshot.TotalAmount,
		CommittedAt: c.now(),
	})
	return nil
}

func (c *Coordinator) LoadCart(ctx context.Context) error {
	callCtx, cancel := c.detached(ctx)
	defer cancel()

	items, err := c.gateway.FetchCart(callCtx)
	if err != nil {
		err = asTransport("fetch cart", err)
		c.logger.ErrorContext(ctx, "Failed to load cart", "error", err)
		c.metrics.load(ctx, err)
		return err
	}
	c.mu.Lock()
	err = c.store.Load(items)
	c.mu.Unlock()
	if err != nil {
		c.logger.ErrorContext(ctx, "Cart service returned an inconsistent cart", "error", err)
		c.metrics.load(ctx, err)
		return fmt.Errorf("load cart: %w", err)
	}

	snapshot := c.store.Snapshot()
	c.logger.InfoContext(ctx, "Cart loaded", "lines", snapshot.Len(), "total_items", snapshot.TotalItems)
	c.metrics.load(ctx, nil)
	c.publish(ctx, events.CartLoadedEvent{
		Carrier:     traceCarrier(ctx),
		Lines:       snapshot.Len(),
		TotalItems:  snapshot.TotalItems,
		TotalAmount: snapshot.TotalAmount,
		LoadedAt:    c.now(),
	})
	return nil
}

func (c *Coordinator) Snapshot() domain.Cart {
	return c.store.Snapshot()
}

func (c *Coordinator) EndSession() {
	c.mu.Lock()
	c.store.Clear()
	c.mu.Unlock()
	c.logger.Info("Session ended, local cart cleared")
}

func (c *Coordinator) Pending(cartID string) bool {
	return c.guard.Held(cartID)
}

// detached returns a context that survives the caller going away but is bounded by the call timeout.
func (c *Coordinator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
}

func (c *Coordinator) callSetQuantity(ctx context.Context, cartID string, qty int) (gateway.SetQuantityResult, error) {
	callCtx, cancel := c.detached(ctx)
	defer cancel()
	res, err := c.gateway.SetQuantity(callCtx, cartID, qty)
	if err != nil {
		return gateway.SetQuantityResult{}, asTransport("set quantity", err)
	}
	return res, nil
}

func (c *Coordinator) callRemoveItem(ctx context.Context, cartID string) (gateway.RemoveResult, error) {
	callCtx, cancel := c.detached(ctx)
	defer cancel()
	res, err := c.gateway.RemoveItem(callCtx, cartID)
	if err != nil {
		return gateway.RemoveResult{}, asTransport("remove item", err)
	}
	return res, nil
}

// commitRemove settles a removal the cart service accepted.
// A reload that ran while the call was in flight may have brought the line back.
func (c *Coordinator) commitRemove(ctx context.Context, op domain.PendingOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Generation() == op.Generation {
		return
	}
	if _, _, err := c.store.Remove(op.CartID); err == nil {
		c.logger.InfoContext(ctx, "Dropped removed line brought back by a reload", "cart_id", op.CartID)
	}
}

// rollback restores the state recorded in op.
// Nothing is restored once the cart was reloaded or cleared: the new snapshot is authoritative.
func (c *Coordinator) rollback(ctx context.Context, op domain.PendingOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Generation() != op.Generation {
		c.logger.WarnContext(ctx, "Rollback skipped, cart was replaced while the call was in flight", "cart_id", op.CartID, "operation", op.Kind)
		return
	}
	var err error
	if op.Kind == domain.OpRemove {
		err = c.store.Restore(op.Previous, op.Position)
	} else {
		err = c.store.Apply(op.CartID, op.PreviousQuantity)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "Rollback failed", "cart_id", op.CartID, "operation", op.Kind, "error", err)
		return
	}
	c.metrics.rollback(ctx, op.Kind)
}

func (c *Coordinator) logFailure(ctx context.Context, msg string, op domain.PendingOperation, err error) {
	if errors.Is(err, carterrors.ErrBusinessRejection) {
		c.logger.WarnContext(ctx, msg, "cart_id", op.CartID, "operation", op.Kind, "error", err)
		return
	}
	c.logger.ErrorContext(ctx, msg, "cart_id", op.CartID, "operation", op.Kind, "error", err)
}

func (c *Coordinator) publish(ctx context.Context, event messaging.Event) {
	pubCtx, cancel := c.detached(ctx)
	defer cancel()
	if err := c.publisher.Publish(pubCtx, event); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish cart event", "subject", event.Subject(), "error", err)
	}
}

// asTransport makes sure a gateway failure is classified as a transport error.
// Snapshot validation failures keep their own classification.
func asTransport(op string, err error) error {
	if errors.Is(err, carterrors.ErrTransport) || errors.Is(err, carterrors.ErrInvalidSnapshot) {
		return err
	}
	return &carterrors.TransportError{Op: op, Err: err}
}

func traceCarrier(ctx context.Context) propagation.MapCarrier {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}
