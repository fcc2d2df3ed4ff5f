package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
)

// ticketWidth is the character width of an 80mm thermal ticket.
const ticketWidth = 32

// Printer renders kitchen tickets and writes them to a spool (a file, a
// serial device or stdout). It only reacts to the PRINT channel.
type Printer struct {
	StoreName func(order domain.Order) string
	Now       func() time.Time

	mu    sync.Mutex
	spool io.Writer
}

// NewPrinter creates a Printer writing to spool.
func NewPrinter(spool io.Writer, storeName func(domain.Order) string) *Printer {
	return &Printer{
		StoreName: storeName,
		Now:       time.Now,
		spool:     spool,
	}
}

func (p *Printer) Dispatch(ctx context.Context, order domain.Order, channel string) error {
	if channel != enum.ChannelPrint {
		return nil
	}
	name := "Comercio Local"
	if p.StoreName != nil {
		if s := p.StoreName(order); s != "" {
			name = s
		}
	}
	ticket := RenderTicket(order, name, p.Now())
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.spool, ticket); err != nil {
		return fmt.Errorf("print order %s: %w", order.Number, err)
	}
	return nil
}

// RenderTicket produces the plain-text kitchen ticket for an order.
func RenderTicket(order domain.Order, storeName string, now time.Time) string {
	var b strings.Builder
	divider := strings.Repeat("-", ticketWidth) + "\n"

	b.WriteString(center(strings.ToUpper(storeName)) + "\n")
	b.WriteString(divider)
	b.WriteString(center("ORDEN #" + shortNumber(order.Number)) + "\n")
	b.WriteString(center(now.Format("02/01/2006 15:04")) + "\n")
	b.WriteString(divider)

	b.WriteString("Cliente: " + order.CustomerName + "\n")
	if order.PaymentMethod == enum.PaymentMethodCash {
		b.WriteString("Pago: EFECTIVO\n")
	} else {
		b.WriteString("Pago: TARJETA\n")
	}
	if order.DeliveryType == enum.DeliveryTypeDelivery {
		b.WriteString("Entrega: DELIVERY\n")
	} else {
		b.WriteString("Entrega: RETIRO EN LOCAL\n")
	}
	b.WriteString(divider)

	for _, item := range order.Items {
		line := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		price := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)).StringFixed(2)
		b.WriteString(row(line, price))
		if item.Notes != "" {
			b.WriteString("  * " + item.Notes + "\n")
		}
	}
	b.WriteString(divider)

	b.WriteString(row("TOTAL:", "EUR "+order.Total.StringFixed(2)))
	b.WriteString("\n")
	b.WriteString(center("¡Gracias por su compra!") + "\n")
	b.WriteString(center("ComandesJa System") + "\n\n")
	return b.String()
}

func center(s string) string {
	if len(s) >= ticketWidth {
		return s
	}
	pad := (ticketWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

func row(left, right string) string {
	gap := ticketWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

// shortNumber strips the prefix: "ORD-042" prints as "042".
func shortNumber(number string) string {
	if i := strings.IndexByte(number, '-'); i >= 0 {
		return number[i+1:]
	}
	return number
}
