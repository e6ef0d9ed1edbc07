// Package ledger reserves and releases product stock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	// ErrCompensationFailed means reserved stock could not be returned after
	// retrying and needs manual correction.
	ErrCompensationFailed = errors.New("stock compensation failed")
)

// Store performs the atomic stock updates. Decrement must only succeed when
// the available quantity covers qty, in a single conditional write.
type Store interface {
	Decrement(ctx context.Context, productID primitive.ObjectID, qty int) error
	Increment(ctx context.Context, productID primitive.ObjectID, qty int) error
}

// Line is a quantity of one product.
type Line struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// ShortageError names the product a reservation failed on.
type ShortageError struct {
	ProductID primitive.ObjectID
	Err       error
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("reserve %s: %v", e.ProductID.Hex(), e.Err)
}

func (e *ShortageError) Unwrap() error {
	return e.Err
}

// Ledger wraps a Store with all-or-nothing reservations.
type Ledger struct {
	store    Store
	logger   *log.Logger
	attempts int
	backoff  time.Duration
}

type Option func(*Ledger)

// WithRetry sets how many times a compensating release is attempted and the
// initial delay between attempts. The delay doubles after every attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(l *Ledger) {
		if attempts > 0 {
			l.attempts = attempts
		}
		l.backoff = backoff
	}
}

func New(store Store, logger *log.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		logger:   logger,
		attempts: 3,
		backoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve takes qty units of a product.
func (l *Ledger) Reserve(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty < 1 {
		return fmt.Errorf("reserve %s: quantity must be positive", productID.Hex())
	}
	if err := l.store.Decrement(ctx, productID, qty); err != nil {
		if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductNotFound) {
			return &ShortageError{ProductID: productID, Err: err}
		}
		return fmt.Errorf("reserve %s: %w", productID.Hex(), err)
	}
	return nil
}

// Release returns qty units of a product.
func (l *Ledger) Release(ctx context.Context, productID primitive.ObjectID, qty int) error {
	if qty < 1 {
		return nil
	}
	if err := l.store.Increment(ctx, productID, qty); err != nil {
		return fmt.Errorf("release %s: %w", productID.Hex(), err)
	}
	return nil
}

// ReserveAll reserves every line or none. Lines are reserved one at a time in
// order; when one fails, the lines already reserved are released in reverse.
func (l *Ledger) ReserveAll(ctx context.Context, lines []Line) error {
	reserved := make([]Line, 0, len(lines))
	for _, line := range lines {
		if err := l.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			if cerr := l.compensate(ctx, reserved); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		reserved = append(reserved, line)
	}
	return nil
}

// ReleaseAll returns every line, retrying transient failures.
func (l *Ledger) ReleaseAll(ctx context.Context, lines []Line) error {
	var errs []error
	for _, line := range lines {
		if err := l.releaseWithRetry(ctx, line); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCompensationFailed, errors.Join(errs...))
	}
	return nil
}

func (l *Ledger) compensate(ctx context.Context, reserved []Line) error {
	// The caller's context may already be done; compensation must still run.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(reserved) - 1; i >= 0; i-- {
		if err := l.releaseWithRetry(ctx, reserved[i]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCompensationFailed, errors.Join(errs...))
	}
	return nil
}

func (l *Ledger) releaseWithRetry(ctx context.Context, line Line) error {
	delay := l.backoff
	var err error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if err = l.Release(ctx, line.ProductID, line.Quantity); err == nil {
			return nil
		}
		if errors.Is(err, ErrProductNotFound) {
			break
		}
		l.logger.Printf("ledger: release attempt=%d product=%s qty=%d err=%v", attempt, line.ProductID.Hex(), line.Quantity, err)
		if attempt < l.attempts && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			}
			delay *= 2
		}
	}
	l.logger.Printf("ledger: giving up release product=%s qty=%d err=%v", line.ProductID.Hex(), line.Quantity, err)
	return err
}
