package service

import (
	"context"

	"github.com/abgdnv/cartsync/internal/domain"
)

// Confirmer asks the user whether a line should really be removed.
type Confirmer interface {
	// ConfirmRemoval reports whether the user agreed to remove item. It may block until the user answers.
	ConfirmRemoval(ctx context.Context, item domain.Item) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, item domain.Item) bool

func (f ConfirmFunc) ConfirmRemoval(ctx context.Context, item domain.Item) bool {
	return f(ctx, item)
}

// AlwaysConfirm approves every removal.
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, domain.Item) bool { return true })

type removalConfirmedKey struct{}

// WithRemovalConfirmed marks ctx as carrying the user's consent to remove an item.
// Transports use it when the prompt was answered before the request was sent.
func WithRemovalConfirmed(ctx context.Context) context.Context {
	return context.WithValue(ctx, removalConfirmedKey{}, true)
}

// ContextConfirmer approves a removal only when the context was marked with WithRemovalConfirmed.
type ContextConfirmer struct{}

func (ContextConfirmer) ConfirmRemoval(ctx context.Context, _ domain.Item) bool {
	confirmed, _ := ctx.Value(removalConfirmedKey{}).(bool)
	return confirmed
}
