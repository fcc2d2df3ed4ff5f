package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/kv"
	"github.com/comandesja/api/internal/store"
	"github.com/comandesja/api/internal/ws"
)

// Errors returned by the checkout service.
var (
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidPhone       = errors.New("phone must have at least 9 digits")
	ErrInvalidAddress     = errors.New("delivery address must have at least 5 characters")
	ErrInvalidDelivery    = errors.New("invalid delivery_type")
	ErrInvalidPayment     = errors.New("invalid payment_method")
	ErrInvalidTiming      = errors.New("invalid timing")
	ErrScheduleRequired   = errors.New("scheduled_for is required for SCHEDULED orders")
	ErrStoreClosing       = errors.New("store is closing, ASAP orders are no longer accepted")
	ErrProductNotFound    = errors.New("product not found in store")
	ErrProductUnavailable = errors.New("product not available")
	ErrCouponInvalid      = errors.New("coupon is not valid")
)

// Estimated wait shown to the customer while the order is live.
const (
	etaDelivery = "25-35 min"
	etaPickup   = "15-20 min"
)

// activeOrderTTL keeps the customer's tracking entry around for the evening.
const activeOrderTTL = 4 * time.Hour

// CheckoutStore defines the DB methods checkout needs.
// Satisfied by *memory.Store and *postgres.Store.
type CheckoutStore interface {
	NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, o domain.Order) error
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (domain.Coupon, error)
	RedeemCoupon(ctx context.Context, tenantID uuid.UUID, code string) error
}

// CheckoutRequest is the validated input for placing an order.
type CheckoutRequest struct {
	TenantID     uuid.UUID
	StoreName    string
	CustomerID   uuid.UUID
	CustomerName string
	Phone        string
	Address      string
	DeliveryType string
	Timing       string
	ScheduledFor *time.Time
	Payment      string
	CouponCode   string
	Items        []CheckoutItem
}

// CheckoutItem is a single line in the cart.
type CheckoutItem struct {
	ProductID uuid.UUID
	Quantity  int32
	Notes     string
}

// Checkout prices and places orders. Prices always come from the catalog,
// never from the client; an active flash sale substitutes the product's
// price before the coupon is applied, and the delivery fee is added after
// the discount.
type Checkout struct {
	store CheckoutStore
	kv    kv.Store
	hub   Broadcaster

	nightClose    string // "HH:MM"
	closingCutoff time.Duration
	deliveryFee   decimal.Decimal

	Now func() time.Time
}

// NewCheckout creates a Checkout.
func NewCheckout(st CheckoutStore, kvStore kv.Store, hub Broadcaster, nightClose string, closingCutoff time.Duration, deliveryFee decimal.Decimal) *Checkout {
	return &Checkout{
		store:         st,
		kv:            kvStore,
		hub:           hub,
		nightClose:    nightClose,
		closingCutoff: closingCutoff,
		deliveryFee:   deliveryFee,
		Now:           time.Now,
	}
}

// PlaceOrder validates the cart, prices it and creates the PENDING order.
func (c *Checkout) PlaceOrder(ctx context.Context, req CheckoutRequest) (domain.Order, error) {
	if err := c.validate(req); err != nil {
		return domain.Order{}, err
	}

	now := c.Now()
	if req.Timing == enum.OrderTimingASAP && c.closingSoon(now) {
		return domain.Order{}, ErrStoreClosing
	}

	sale := c.activeSale(ctx, req.TenantID, now)

	// Price the cart from the catalog.
	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		p, err := c.store.GetProduct(ctx, req.TenantID, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Order{}, fmt.Errorf("item[%d]: %w", i, ErrProductNotFound)
			}
			return domain.Order{}, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		if req.DeliveryType == enum.DeliveryTypeDelivery && !p.DeliveryAvailable {
			return domain.Order{}, fmt.Errorf("item[%d]: %w", i, ErrProductUnavailable)
		}
		if p.Stock != nil && *p.Stock < line.Quantity {
			return domain.Order{}, fmt.Errorf("item[%d]: %w", i, ErrProductUnavailable)
		}

		unit := effectivePrice(p, sale)
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt32(line.Quantity)))
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Notes:     line.Notes,
		})
	}

	// Coupon discount comes off the subtotal; the delivery fee is added
	// after the discount, so a 15% coupon on a 20.00 cart with delivery
	// gives 20.00 - 3.00 + fee.
	discount := decimal.Zero
	couponCode := strings.ToUpper(strings.TrimSpace(req.CouponCode))
	if couponCode != "" {
		coupon, err := c.store.GetCouponByCode(ctx, req.TenantID, couponCode)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Order{}, ErrCouponInvalid
			}
			return domain.Order{}, fmt.Errorf("get coupon: %w", err)
		}
		if err := c.store.RedeemCoupon(ctx, req.TenantID, couponCode); err != nil {
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				return domain.Order{}, ErrCouponInvalid
			}
			return domain.Order{}, fmt.Errorf("redeem coupon: %w", err)
		}
		discount = subtotal.Mul(decimal.NewFromInt32(coupon.DiscountPercent)).Div(decimal.NewFromInt(100)).Round(2)
	}

	fee := decimal.Zero
	if req.DeliveryType == enum.DeliveryTypeDelivery {
		fee = c.deliveryFee
	}
	total := subtotal.Sub(discount).Add(fee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	var order domain.Order
	for attempt := 0; ; attempt++ {
		seq, err := c.store.NextOrderNumber(ctx, req.TenantID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("next order number: %w", err)
		}

		order = domain.Order{
			ID:            uuid.New(),
			TenantID:      req.TenantID,
			Number:        fmt.Sprintf("ORD-%03d", seq),
			CustomerName:  req.CustomerName,
			Phone:         req.Phone,
			Address:       req.Address,
			Items:         items,
			Status:        enum.OrderStatusPending,
			PaymentMethod: req.Payment,
			DeliveryType:  req.DeliveryType,
			Timing:        req.Timing,
			ScheduledFor:  req.ScheduledFor,
			CouponCode:    couponCode,
			Subtotal:      subtotal,
			Discount:      discount,
			DeliveryFee:   fee,
			Total:         total,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = c.store.CreateOrder(ctx, order)
		if err == nil {
			break
		}
		// Two concurrent checkouts can race to the same sequence number;
		// the loser re-reads and takes the next one.
		if errors.Is(err, store.ErrDuplicate) && attempt < 3 {
			continue
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	c.reduceStock(ctx, req.TenantID, items)
	c.trackActiveOrder(ctx, order, req)
	c.announce(order)
	return order, nil
}

func (c *Checkout) validate(req CheckoutRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if len(digitsOf(req.Phone)) < 9 {
		return ErrInvalidPhone
	}
	switch req.DeliveryType {
	case enum.DeliveryTypeDelivery:
		if len(strings.TrimSpace(req.Address)) < 5 {
			return ErrInvalidAddress
		}
	case enum.DeliveryTypePickup:
	default:
		return ErrInvalidDelivery
	}
	switch req.Payment {
	case enum.PaymentMethodCash, enum.PaymentMethodCard:
	default:
		return ErrInvalidPayment
	}
	switch req.Timing {
	case enum.OrderTimingASAP:
	case enum.OrderTimingScheduled:
		if req.ScheduledFor == nil {
			return ErrScheduleRequired
		}
	default:
		return ErrInvalidTiming
	}
	return nil
}

// closingSoon rejects ASAP orders in the last stretch before the night
// close and for the hour after it; an order placed at 03:00 is for the
// next evening, not a closing one.
func (c *Checkout) closingSoon(now time.Time) bool {
	closeAt, err := atClockTime(now, c.nightClose)
	if err != nil {
		log.Printf("ERROR: bad night close time %q: %v", c.nightClose, err)
		return false
	}
	// Just after midnight the relevant close is yesterday's.
	for _, at := range []time.Time{closeAt, closeAt.AddDate(0, 0, -1)} {
		untilClose := at.Sub(now)
		if untilClose <= c.closingCutoff && untilClose > -time.Hour {
			return true
		}
	}
	return false
}

// activeSale loads the tenant's flash sale, if one is running right now.
func (c *Checkout) activeSale(ctx context.Context, tenantID uuid.UUID, now time.Time) *domain.FlashSale {
	if c.kv == nil {
		return nil
	}
	raw, ok, err := c.kv.Get(ctx, kv.FlashSaleKey(tenantID))
	if err != nil {
		log.Printf("ERROR: read flash sale for tenant %s: %v", tenantID, err)
		return nil
	}
	if !ok {
		return nil
	}
	var sale domain.FlashSale
	if err := json.Unmarshal([]byte(raw), &sale); err != nil {
		log.Printf("ERROR: decode flash sale for tenant %s: %v", tenantID, err)
		return nil
	}
	if !sale.IsActive || sale.EndTime <= now.UnixMilli() {
		return nil
	}
	return &sale
}

// reduceStock decrements tracked stock counters. Best effort: a lost
// decrement under-counts, it never blocks a paid order.
func (c *Checkout) reduceStock(ctx context.Context, tenantID uuid.UUID, items []domain.OrderItem) {
	for _, item := range items {
		p, err := c.store.GetProduct(ctx, tenantID, item.ProductID)
		if err != nil || p.Stock == nil {
			continue
		}
		left := *p.Stock - item.Quantity
		if left < 0 {
			left = 0
		}
		p.Stock = &left
		if err := c.store.UpdateProduct(ctx, p); err != nil {
			log.Printf("ERROR: reduce stock for product %s: %v", item.ProductID, err)
		}
	}
}

// trackActiveOrder stores the customer-facing summary their app polls.
func (c *Checkout) trackActiveOrder(ctx context.Context, order domain.Order, req CheckoutRequest) {
	if c.kv == nil || req.CustomerID == uuid.Nil {
		return
	}
	eta := etaPickup
	if order.DeliveryType == enum.DeliveryTypeDelivery {
		eta = etaDelivery
	}
	var count int32
	for _, item := range order.Items {
		count += item.Quantity
	}
	active := domain.ActiveOrder{
		OrderID:    order.ID,
		TenantID:   order.TenantID,
		StoreName:  req.StoreName,
		Total:      order.Total,
		ItemsCount: count,
		Type:       order.DeliveryType,
		ETA:        eta,
		Status:     order.Status,
		Timestamp:  order.CreatedAt.UnixMilli(),
	}
	raw, err := json.Marshal(active)
	if err != nil {
		log.Printf("ERROR: marshal active order %s: %v", order.Number, err)
		return
	}
	if err := c.kv.Set(ctx, kv.ActiveOrderKey(req.CustomerID), string(raw), activeOrderTTL); err != nil {
		log.Printf("ERROR: track active order %s: %v", order.Number, err)
	}
}

func (c *Checkout) announce(order domain.Order) {
	if c.hub == nil {
		return
	}
	c.hub.BroadcastToTenant(order.TenantID, ws.NewEvent(enum.EventOrderCreated, orderEvent{
		OrderID:  order.ID,
		Number:   order.Number,
		Status:   order.Status,
		Notified: order.Notified,
	}))
}

// --- Helpers ---

// effectivePrice picks the unit price: flash sale beats promotional price
// beats list price.
func effectivePrice(p domain.Product, sale *domain.FlashSale) decimal.Decimal {
	if sale != nil && sale.ProductID == p.ID {
		return sale.DiscountedPrice
	}
	if p.PromotionalPrice != nil {
		return *p.PromotionalPrice
	}
	return p.Price
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// atClockTime pins an "HH:MM" wall-clock value onto now's calendar day.
func atClockTime(now time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}
