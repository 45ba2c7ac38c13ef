package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/mail"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
)

// Confirmations sends the order confirmation email at most once per order.
type Confirmations struct {
	orders    *orders.Store
	sender    mail.Sender
	storeName string
	nowFunc   func() time.Time
}

// NewConfirmations returns a notifier for confirmed orders.
func NewConfirmations(store *orders.Store, sender mail.Sender, storeName string) *Confirmations {
	return &Confirmations{orders: store, sender: sender, storeName: storeName, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// OrderConfirmed emails the customer unless the order already has a
// confirmation on record. The record is claimed before sending and released
// when the send fails.
func (n *Confirmations) OrderConfirmed(ctx context.Context, o *orders.Order) error {
	if o.ConfirmationSentAt != nil {
		return nil
	}
	msg, err := mail.ConfirmationMessage(mail.ConfirmationData{
		Store:     n.storeName,
		Name:      o.Customer.Name,
		OrderCode: o.Code,
		Status:    string(o.Status),
		Method:    string(o.Method),
		Total:     o.Total,
	})
	if err != nil {
		return err
	}

	now := n.nowFunc()
	claimed, err := n.orders.MarkConfirmationSent(ctx, o.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := n.sender.Send(ctx, o.PrimaryEmail(), msg); err != nil {
		if rErr := n.orders.ClearConfirmationSent(ctx, o.ID, now); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	o.ConfirmationSentAt = &now
	return nil
}
