// Package domain holds the core data model shared by the repositories,
// services and handlers. Records are treated as values: services mutate a
// copy and persist it with a single atomic replace.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is one customer purchase. ReadyAt and PrepMinutes are set together,
// exactly once, when the customer is first notified; they never change
// afterwards.
type Order struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Number        string
	CustomerName  string
	Phone         string
	Address       string
	Items         []OrderItem
	Status        string
	PaymentMethod string
	DeliveryType  string
	Timing        string
	ScheduledFor  *time.Time
	CouponCode    string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Total         decimal.Decimal
	Notified      bool
	CreatedAt     time.Time
	ReadyAt       *time.Time
	PrepMinutes   *int
	UpdatedAt     time.Time
}

// OrderItem is a single line on an order.
type OrderItem struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	Notes     string
}

// Product is one catalog entry of a tenant.
type Product struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	Description       string
	Price             decimal.Decimal
	PromotionalPrice  *decimal.Decimal
	Category          string
	IsFeatured        bool
	Stock             *int32
	DeliveryAvailable bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// User is an authenticated account. TENANT users carry the id and slug of
// the storefront they operate; CUSTOMER users have a zero TenantID.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TenantID     uuid.UUID
	StoreSlug    string
	BusinessType string
	CreatedAt    time.Time
}

// Coupon is a percent-off code. MaxUses of 0 means unlimited.
type Coupon struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Code            string
	DiscountPercent int32
	IsActive        bool
	Uses            int32
	MaxUses         int32
	CreatedAt       time.Time
}

// FlashSale is a time-boxed price cut on a single product. EndTime is epoch
// milliseconds, matching the stored layout the customer app reads.
type FlashSale struct {
	IsActive        bool            `json:"isActive"`
	ProductID       uuid.UUID       `json:"productId"`
	ProductName     string          `json:"productName"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DiscountedPrice decimal.Decimal `json:"discountedPrice"`
	EndTime         int64           `json:"endTime"`
}

// ActiveOrder is the customer-visible summary of their current order.
type ActiveOrder struct {
	OrderID    uuid.UUID       `json:"orderId"`
	TenantID   uuid.UUID       `json:"tenantId"`
	StoreName  string          `json:"storeName"`
	Total      decimal.Decimal `json:"total"`
	ItemsCount int32           `json:"itemsCount"`
	Type       string          `json:"type"`
	ETA        string          `json:"eta"`
	Status     string          `json:"status"`
	Timestamp  int64           `json:"timestamp"`
}

// Notification is one entry in a customer's notification feed.
type Notification struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// ShiftWindow is a named time-of-day range used to bucket orders for the
// till-close report. Start and End are "HH:MM" on the current calendar day.
type ShiftWindow struct {
	Name  string
	Start string
	End   string
}

// ShiftSummary is the till-close report for one shift window.
type ShiftSummary struct {
	Shift         string
	Start         string
	End           string
	TotalOrders   int
	TotalSales    decimal.Decimal
	TotalCash     decimal.Decimal
	TotalCard     decimal.Decimal
	AverageTicket decimal.Decimal
	FallbackUsed  bool
	Orders        []Order
}
