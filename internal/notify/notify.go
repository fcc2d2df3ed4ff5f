// Package notify is the outbound side-effect port of the order lifecycle:
// kitchen ticket printing and customer alerts. Dispatch failures are always
// best-effort — callers log them and never roll back the transition that
// triggered them.
package notify

import (
	"context"
	"errors"
	"log"

	"github.com/comandesja/api/internal/domain"
)

// Dispatcher delivers one notification for an order on a channel
// (enum.ChannelPrint or enum.ChannelCustomerAlert).
type Dispatcher interface {
	Dispatch(ctx context.Context, order domain.Order, channel string) error
}

// Multi fans one dispatch out to several dispatchers and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, order domain.Order, channel string) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, order, channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger writes a line per dispatch. It is the fallback dispatcher when no
// broker or spool is configured, and keeps customer alerts observable.
type Logger struct{}

func (Logger) Dispatch(ctx context.Context, order domain.Order, channel string) error {
	log.Printf("notify: order %s (%s) dispatched on %s", order.Number, order.CustomerName, channel)
	return nil
}

// Nop discards dispatches. Used by tests that only care about transitions.
type Nop struct{}

func (Nop) Dispatch(ctx context.Context, order domain.Order, channel string) error { return nil }
