package service

import (
	"context"

	"github.com/Strob0t/PartyLedger/internal/domain/event"
	"github.com/Strob0t/PartyLedger/internal/port/broadcast"
)

// InventoryNotifier is what inventory mutation handlers call after a
// successful write. Every method is fire-and-forget.
type InventoryNotifier struct {
	broadcaster broadcast.Broadcaster
}

// NewInventoryNotifier creates a notifier publishing through b.
func NewInventoryNotifier(b broadcast.Broadcaster) *InventoryNotifier {
	return &InventoryNotifier{broadcaster: b}
}

// ItemAdded announces a new item in the inventory identified by slug.
func (n *InventoryNotifier) ItemAdded(ctx context.Context, slug string, item any) {
	n.notify(ctx, slug, event.TypeItemAdded, item)
}

// ItemUpdated announces a changed item.
func (n *InventoryNotifier) ItemUpdated(ctx context.Context, slug string, item any) {
	n.notify(ctx, slug, event.TypeItemUpdated, item)
}

// ItemRemoved announces a deleted item. item is the snapshot taken before
// deletion.
func (n *InventoryNotifier) ItemRemoved(ctx context.Context, slug string, item any) {
	n.notify(ctx, slug, event.TypeItemRemoved, item)
}

// CurrencyUpdated announces new currency totals.
func (n *InventoryNotifier) CurrencyUpdated(ctx context.Context, slug string, currency any) {
	n.notify(ctx, slug, event.TypeCurrencyUpdated, currency)
}

// Publish forwards a producer-supplied event after validating its type and
// payload. Validation failures wrap domain.ErrValidation.
func (n *InventoryNotifier) Publish(ctx context.Context, slug string, eventType string, payload any) error {
	t, err := event.ParseDomainType(eventType)
	if err != nil {
		return err
	}
	if err := event.ValidatePayload(payload); err != nil {
		return err
	}
	n.notify(ctx, slug, t, payload)
	return nil
}

func (n *InventoryNotifier) notify(ctx context.Context, slug string, t event.Type, payload any) {
	if n == nil || n.broadcaster == nil {
		return
	}
	n.broadcaster.BroadcastEvent(ctx, slug, string(t), payload)
}
