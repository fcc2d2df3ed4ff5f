package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/store/memory"
)

func TestIsStagnant(t *testing.T) {
	now := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	threshold := 10 * time.Minute

	readyAt := func(minutesAgo time.Duration) *time.Time {
		t := now.Add(-minutesAgo)
		return &t
	}

	cases := []struct {
		name  string
		order domain.Order
		want  bool
	}{
		{
			"ready past threshold",
			domain.Order{Status: enum.OrderStatusReady, ReadyAt: readyAt(11 * time.Minute)},
			true,
		},
		{
			"ready exactly at threshold",
			domain.Order{Status: enum.OrderStatusReady, ReadyAt: readyAt(10 * time.Minute)},
			false,
		},
		{
			"barely over, same whole minute",
			domain.Order{Status: enum.OrderStatusReady, ReadyAt: readyAt(10*time.Minute + 30*time.Second)},
			false,
		},
		{
			"ready but never notified",
			domain.Order{Status: enum.OrderStatusReady},
			false,
		},
		{
			"old but already collected",
			domain.Order{Status: enum.OrderStatusDelivered, ReadyAt: readyAt(30 * time.Minute)},
			false,
		},
		{
			"old but on its way",
			domain.Order{Status: enum.OrderStatusOnWay, ReadyAt: readyAt(30 * time.Minute)},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsStagnant(tc.order, now, threshold); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSweepBroadcastsStagnantOrders(t *testing.T) {
	st := memory.New()
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)

	old := now.Add(-20 * time.Minute)
	fresh := now.Add(-2 * time.Minute)

	orders := []domain.Order{
		{ID: uuid.New(), TenantID: tenantID, Number: "ORD-001", Status: enum.OrderStatusReady, ReadyAt: &old, CreatedAt: old},
		{ID: uuid.New(), TenantID: tenantID, Number: "ORD-002", Status: enum.OrderStatusReady, ReadyAt: &fresh, CreatedAt: fresh},
		{ID: uuid.New(), TenantID: tenantID, Number: "ORD-003", Status: enum.OrderStatusCooking, CreatedAt: old},
	}
	for _, o := range orders {
		if err := st.CreateOrder(context.Background(), o); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	hub := &mockBroadcaster{}
	m := NewMonitor(st, hub, 10*time.Minute, 30*time.Second)
	m.Now = fixedClock(now)

	m.Sweep(context.Background())

	if len(hub.events) != 1 {
		t.Fatalf("events: got %d, want 1", len(hub.events))
	}
	if hub.events[0].Type != enum.EventOrderStagnant {
		t.Errorf("event type: got %s, want %s", hub.events[0].Type, enum.EventOrderStagnant)
	}
}

func TestSweepIsRepeatable(t *testing.T) {
	st := memory.New()
	tenantID := uuid.New()
	now := time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)
	old := now.Add(-15 * time.Minute)

	err := st.CreateOrder(context.Background(), domain.Order{
		ID: uuid.New(), TenantID: tenantID, Number: "ORD-001",
		Status: enum.OrderStatusReady, ReadyAt: &old, CreatedAt: old,
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	hub := &mockBroadcaster{}
	m := NewMonitor(st, hub, 10*time.Minute, 30*time.Second)
	m.Now = fixedClock(now)

	m.Sweep(context.Background())
	m.Sweep(context.Background())

	// Stateless by design: the banner re-fires every sweep.
	if len(hub.events) != 2 {
		t.Errorf("events: got %d, want 2", len(hub.events))
	}
}
