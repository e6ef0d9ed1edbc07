package events

import (
	"context"
	"errors"

	"go-storefront/checkout"
	"go-storefront/models"
)

// Fanout delivers every event to each notifier in turn. One notifier failing
// does not stop the others; the failures are joined.
type Fanout []checkout.Notifier

func (f Fanout) OrderPlaced(ctx context.Context, user *models.User, order *models.Order) error {
	var errs []error
	for _, n := range f {
		if err := n.OrderPlaced(ctx, user, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PaymentFailed(ctx context.Context, user *models.User, order *models.Order) error {
	var errs []error
	for _, n := range f {
		if err := n.PaymentFailed(ctx, user, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
