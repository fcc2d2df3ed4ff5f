package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/store"
	"github.com/comandesja/api/internal/ws"
)

// stagnantEvent is broadcast for every order sitting too long on the pass.
type stagnantEvent struct {
	OrderID        uuid.UUID `json:"orderId"`
	Number         string    `json:"number"`
	MinutesWaiting int       `json:"minutesWaiting"`
}

// IsStagnant reports whether an order has been sitting READY past the
// threshold. Orders that were never notified have no ReadyAt and are not
// stagnant yet regardless of age; the clock starts when the customer is
// told, not when the kitchen finishes.
func IsStagnant(o domain.Order, now time.Time, threshold time.Duration) bool {
	if o.Status != enum.OrderStatusReady || o.ReadyAt == nil {
		return false
	}
	return int(now.Sub(*o.ReadyAt).Minutes()) > int(threshold.Minutes())
}

// Monitor periodically sweeps READY orders and flags the ones going cold.
// It is stateless: a stagnant order is re-broadcast every sweep until it
// moves on, which keeps the kitchen banner alive across tablet reloads.
type Monitor struct {
	store     ShiftStore
	hub       Broadcaster
	threshold time.Duration
	interval  time.Duration

	Now func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(st ShiftStore, hub Broadcaster, threshold, interval time.Duration) *Monitor {
	return &Monitor{
		store:     st,
		hub:       hub,
		threshold: threshold,
		interval:  interval,
		Now:       time.Now,
	}
}

// Run sweeps until the context is cancelled.
// This should be called as a goroutine: go monitor.Run(ctx)
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass over all tenants' READY orders.
func (m *Monitor) Sweep(ctx context.Context) {
	orders, err := m.store.ListOrders(ctx, store.OrderFilter{
		Statuses: []string{enum.OrderStatusReady},
	})
	if err != nil {
		log.Printf("ERROR: stagnation sweep: %v", err)
		return
	}

	now := m.Now()
	for _, o := range orders {
		if !IsStagnant(o, now, m.threshold) {
			continue
		}
		m.hub.BroadcastToTenant(o.TenantID, ws.NewEvent(enum.EventOrderStagnant, stagnantEvent{
			OrderID:        o.ID,
			Number:         o.Number,
			MinutesWaiting: int(now.Sub(*o.ReadyAt).Minutes()),
		}))
	}
}
