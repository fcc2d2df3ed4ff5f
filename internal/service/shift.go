package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/store"
)

// ErrUnknownShift is returned for a shift name with no configured window.
var ErrUnknownShift = errors.New("unknown shift")

// ShiftStore defines the DB methods the aggregator needs.
// Satisfied by *memory.Store and *postgres.Store.
type ShiftStore interface {
	ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error)
}

// Aggregator builds the till-close report for a shift. An order counts
// toward a shift when it was created inside the window and ended the day
// DELIVERED, or is still READY at till-close (cooked but not collected;
// the kitchen did the work, the report should show it).
type Aggregator struct {
	store    ShiftStore
	windows  []domain.ShiftWindow
	fallback bool
}

// NewAggregator creates an Aggregator. With fallback enabled, an empty
// shift report widens to every DELIVERED order of the calendar day.
func NewAggregator(st ShiftStore, windows []domain.ShiftWindow, fallback bool) *Aggregator {
	return &Aggregator{store: st, windows: windows, fallback: fallback}
}

// Report aggregates one tenant's shift on the given calendar day.
func (a *Aggregator) Report(ctx context.Context, tenantID uuid.UUID, shift string, day time.Time) (domain.ShiftSummary, error) {
	var window *domain.ShiftWindow
	for i := range a.windows {
		if a.windows[i].Name == shift {
			window = &a.windows[i]
			break
		}
	}
	if window == nil {
		return domain.ShiftSummary{}, ErrUnknownShift
	}

	from, err := atClockTime(day, window.Start)
	if err != nil {
		return domain.ShiftSummary{}, fmt.Errorf("bad window start %q: %w", window.Start, err)
	}
	to, err := atClockTime(day, window.End)
	if err != nil {
		return domain.ShiftSummary{}, fmt.Errorf("bad window end %q: %w", window.End, err)
	}

	orders, err := a.store.ListOrders(ctx, store.OrderFilter{
		TenantID: &tenantID,
		Statuses: []string{enum.OrderStatusDelivered, enum.OrderStatusReady},
		From:     &from,
		To:       &to,
	})
	if err != nil {
		return domain.ShiftSummary{}, fmt.Errorf("list shift orders: %w", err)
	}

	summary := domain.ShiftSummary{
		Shift: window.Name,
		Start: window.Start,
		End:   window.End,
	}

	if len(orders) == 0 && a.fallback {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)
		orders, err = a.store.ListOrders(ctx, store.OrderFilter{
			TenantID: &tenantID,
			Statuses: []string{enum.OrderStatusDelivered},
			From:     &dayStart,
			To:       &dayEnd,
		})
		if err != nil {
			return domain.ShiftSummary{}, fmt.Errorf("list fallback orders: %w", err)
		}
		summary.FallbackUsed = len(orders) > 0
	}

	summary.Orders = orders
	summary.TotalOrders = len(orders)
	summary.TotalSales = decimal.Zero
	summary.TotalCash = decimal.Zero
	summary.TotalCard = decimal.Zero
	for _, o := range orders {
		summary.TotalSales = summary.TotalSales.Add(o.Total)
		switch o.PaymentMethod {
		case enum.PaymentMethodCash:
			summary.TotalCash = summary.TotalCash.Add(o.Total)
		case enum.PaymentMethodCard:
			summary.TotalCard = summary.TotalCard.Add(o.Total)
		}
	}

	summary.AverageTicket = decimal.Zero
	if summary.TotalOrders > 0 {
		summary.AverageTicket = summary.TotalSales.Div(decimal.NewFromInt(int64(summary.TotalOrders))).Round(2)
	}
	return summary, nil
}

// RenderZReport formats the till-close slip for the receipt printer.
func RenderZReport(s domain.ShiftSummary, storeName string, day time.Time) string {
	var b strings.Builder
	line := strings.Repeat("-", 32)

	b.WriteString(centerLine(storeName) + "\n")
	b.WriteString(centerLine("CIERRE DE TURNO") + "\n")
	b.WriteString(line + "\n")
	b.WriteString(reportRow("Turno:", s.Shift) + "\n")
	b.WriteString(reportRow("Franja:", s.Start+" - "+s.End) + "\n")
	b.WriteString(reportRow("Fecha:", day.Format("02/01/2006")) + "\n")
	b.WriteString(line + "\n")
	b.WriteString(reportRow("Pedidos:", fmt.Sprintf("%d", s.TotalOrders)) + "\n")
	b.WriteString(reportRow("Efectivo:", s.TotalCash.StringFixed(2)+" EUR") + "\n")
	b.WriteString(reportRow("Tarjeta:", s.TotalCard.StringFixed(2)+" EUR") + "\n")
	b.WriteString(reportRow("TOTAL:", s.TotalSales.StringFixed(2)+" EUR") + "\n")
	b.WriteString(reportRow("Ticket medio:", s.AverageTicket.StringFixed(2)+" EUR") + "\n")
	if s.FallbackUsed {
		b.WriteString(line + "\n")
		b.WriteString(centerLine("* dia completo *") + "\n")
	}
	b.WriteString(line + "\n")
	b.WriteString(centerLine("ComandesJa System") + "\n")
	return b.String()
}

func centerLine(s string) string {
	if len(s) >= 32 {
		return s
	}
	pad := (32 - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func reportRow(label, value string) string {
	gap := 32 - len(label) - len(value)
	if gap < 1 {
		gap = 1
	}
	return label + strings.Repeat(" ", gap) + value
}
