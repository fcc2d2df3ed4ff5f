package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/notify"
	"github.com/comandesja/api/internal/store"
	"github.com/comandesja/api/internal/ws"
)

// Errors returned by the lifecycle service.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTransitionRace    = errors.New("order changed, please retry")
)

// LifecycleStore defines the DB methods the lifecycle needs.
// Satisfied by *memory.Store and *postgres.Store.
type LifecycleStore interface {
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (domain.Order, error)
	SaveOrderTransition(ctx context.Context, o domain.Order, fromStatus string) error
}

// Broadcaster pushes events to the tenant's WebSocket room.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToTenant(tenantID uuid.UUID, event ws.Event)
}

// orderEvent is the payload broadcast on every status change.
type orderEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	Notified    bool      `json:"notified"`
	PrepMinutes *int      `json:"prepMinutes,omitempty"`
}

// Lifecycle moves orders through their statuses. Every transition is a
// guarded compare-and-swap on the previous status; two kitchen tablets
// racing on the same order get ErrTransitionRace instead of a double move.
type Lifecycle struct {
	store      LifecycleStore
	dispatcher notify.Dispatcher
	hub        Broadcaster

	// Now is the clock; tests override it.
	Now func() time.Time
}

// NewLifecycle creates a Lifecycle. dispatcher and hub may be notify.Nop{}
// and nil when running headless (e.g. in the seed tool).
func NewLifecycle(st LifecycleStore, dispatcher notify.Dispatcher, hub Broadcaster) *Lifecycle {
	return &Lifecycle{
		store:      st,
		dispatcher: dispatcher,
		hub:        hub,
		Now:        time.Now,
	}
}

// Accept moves a PENDING order to COOKING and dispatches the kitchen
// ticket. Accepting an order that is already COOKING is a no-op: the
// ticket was printed on the first accept and must not print twice.
func (l *Lifecycle) Accept(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.load(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if o.Status == enum.OrderStatusCooking {
		return o, nil
	}
	if o.Status != enum.OrderStatusPending {
		return domain.Order{}, ErrInvalidTransition
	}

	o.Status = enum.OrderStatusCooking
	if err := l.save(ctx, o, enum.OrderStatusPending); err != nil {
		return domain.Order{}, err
	}

	l.dispatch(ctx, o, enum.ChannelPrint)
	l.broadcast(o)
	return o, nil
}

// MarkReady moves a COOKING order to READY. The ready timestamp is NOT
// recorded here; it is fixed later, when the customer is notified.
func (l *Lifecycle) MarkReady(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.load(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if o.Status != enum.OrderStatusCooking {
		return domain.Order{}, ErrInvalidTransition
	}

	o.Status = enum.OrderStatusReady
	if err := l.save(ctx, o, enum.OrderStatusCooking); err != nil {
		return domain.Order{}, err
	}

	l.broadcast(o)
	return o, nil
}

// Notify tells the customer their order is ready. It freezes the prep time
// (rounded minutes since creation, never negative) and the ready timestamp,
// then routes: delivery orders go ON_WAY, pickup orders stay READY with the
// notified flag set. Calling Notify again on an already-notified order is a
// no-op so the customer is never alerted twice.
func (l *Lifecycle) Notify(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.load(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if o.Notified || o.Status == enum.OrderStatusOnWay {
		return o, nil
	}
	if o.Status != enum.OrderStatusReady {
		return domain.Order{}, ErrInvalidTransition
	}

	now := l.Now()
	prep := int(math.Round(now.Sub(o.CreatedAt).Minutes()))
	if prep < 0 {
		prep = 0
	}
	o.PrepMinutes = &prep
	if o.ReadyAt == nil {
		t := now
		o.ReadyAt = &t
	}
	o.Notified = true
	if o.DeliveryType == enum.DeliveryTypeDelivery {
		o.Status = enum.OrderStatusOnWay
	}

	if err := l.save(ctx, o, enum.OrderStatusReady); err != nil {
		return domain.Order{}, err
	}

	l.dispatch(ctx, o, enum.ChannelCustomerAlert)
	l.broadcast(o)
	return o, nil
}

// ConfirmDelivered closes an order. Delivery orders must be ON_WAY; pickup
// orders must be READY and already notified (the customer cannot collect
// an order they were never told about).
func (l *Lifecycle) ConfirmDelivered(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.load(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	from := o.Status
	switch {
	case o.Status == enum.OrderStatusOnWay:
	case o.Status == enum.OrderStatusReady && o.Notified:
	default:
		return domain.Order{}, ErrInvalidTransition
	}

	o.Status = enum.OrderStatusDelivered
	if err := l.save(ctx, o, from); err != nil {
		return domain.Order{}, err
	}

	l.broadcast(o)
	return o, nil
}

// Reject cancels a PENDING order. Orders already in the kitchen cannot be
// rejected.
func (l *Lifecycle) Reject(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.load(ctx, tenantID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if o.Status != enum.OrderStatusPending {
		return domain.Order{}, ErrInvalidTransition
	}

	o.Status = enum.OrderStatusCancelled
	if err := l.save(ctx, o, enum.OrderStatusPending); err != nil {
		return domain.Order{}, err
	}

	l.broadcast(o)
	return o, nil
}

func (l *Lifecycle) load(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error) {
	o, err := l.store.GetOrder(ctx, tenantID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, err
}

func (l *Lifecycle) save(ctx context.Context, o domain.Order, fromStatus string) error {
	o.UpdatedAt = l.Now()
	err := l.store.SaveOrderTransition(ctx, o, fromStatus)
	switch {
	case errors.Is(err, store.ErrConflict):
		return ErrTransitionRace
	case errors.Is(err, store.ErrNotFound):
		return ErrOrderNotFound
	}
	return err
}

// dispatch sends a notification without failing the transition; the status
// change is already committed, a dead printer must not roll it back.
func (l *Lifecycle) dispatch(ctx context.Context, o domain.Order, channel string) {
	if l.dispatcher == nil {
		return
	}
	if err := l.dispatcher.Dispatch(ctx, o, channel); err != nil {
		log.Printf("ERROR: dispatch %s for order %s: %v", channel, o.Number, err)
	}
}

func (l *Lifecycle) broadcast(o domain.Order) {
	if l.hub == nil {
		return
	}
	l.hub.BroadcastToTenant(o.TenantID, ws.NewEvent(enum.EventOrderStatus, orderEvent{
		OrderID:     o.ID,
		Number:      o.Number,
		Status:      o.Status,
		Notified:    o.Notified,
		PrepMinutes: o.PrepMinutes,
	}))
}
