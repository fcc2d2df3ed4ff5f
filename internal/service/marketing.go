package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/kv"
	"github.com/comandesja/api/internal/store"
	"github.com/comandesja/api/internal/ws"
)

// Errors returned by the marketing service.
var (
	ErrNoFlashSale      = errors.New("no flash sale is running")
	ErrInvalidSalePrice = errors.New("sale price must be below the list price")
	ErrInvalidDuration  = errors.New("duration must be > 0")
)

// maxNotifications caps a tenant's broadcast feed; older entries fall off.
const maxNotifications = 20

// MarketingStore defines the DB methods marketing needs.
// Satisfied by *memory.Store and *postgres.Store.
type MarketingStore interface {
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (domain.Product, error)
}

// Marketing runs the tenant's promotional tools: one flash sale at a time
// per store, and broadcast campaign messages that land in the customers'
// notification feed. Both live in the KV store, so a flash sale simply
// expires with its TTL.
type Marketing struct {
	store MarketingStore
	kv    kv.Store
	hub   Broadcaster

	Now func() time.Time
}

// NewMarketing creates a Marketing service.
func NewMarketing(st MarketingStore, kvStore kv.Store, hub Broadcaster) *Marketing {
	return &Marketing{store: st, kv: kvStore, hub: hub, Now: time.Now}
}

// StartFlashSale puts one product on sale for the given duration. A new
// sale replaces whatever sale was running.
func (m *Marketing) StartFlashSale(ctx context.Context, tenantID, productID uuid.UUID, salePrice decimal.Decimal, duration time.Duration) (domain.FlashSale, error) {
	if duration <= 0 {
		return domain.FlashSale{}, ErrInvalidDuration
	}

	p, err := m.store.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FlashSale{}, ErrProductNotFound
		}
		return domain.FlashSale{}, fmt.Errorf("get product: %w", err)
	}
	if !salePrice.IsPositive() || salePrice.GreaterThanOrEqual(p.Price) {
		return domain.FlashSale{}, ErrInvalidSalePrice
	}

	sale := domain.FlashSale{
		IsActive:        true,
		ProductID:       p.ID,
		ProductName:     p.Name,
		OriginalPrice:   p.Price,
		DiscountedPrice: salePrice,
		EndTime:         m.Now().Add(duration).UnixMilli(),
	}
	raw, err := json.Marshal(sale)
	if err != nil {
		return domain.FlashSale{}, fmt.Errorf("marshal flash sale: %w", err)
	}
	if err := m.kv.Set(ctx, kv.FlashSaleKey(tenantID), string(raw), duration); err != nil {
		return domain.FlashSale{}, fmt.Errorf("store flash sale: %w", err)
	}

	m.broadcast(tenantID, enum.EventFlashSaleStarted, sale)
	return sale, nil
}

// StopFlashSale ends the running sale early.
func (m *Marketing) StopFlashSale(ctx context.Context, tenantID uuid.UUID) error {
	sale, err := m.GetFlashSale(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, kv.FlashSaleKey(tenantID)); err != nil {
		return fmt.Errorf("delete flash sale: %w", err)
	}
	sale.IsActive = false
	m.broadcast(tenantID, enum.EventFlashSaleStopped, sale)
	return nil
}

// GetFlashSale returns the running sale, or ErrNoFlashSale when there is
// none (including one that has expired but not yet been evicted).
func (m *Marketing) GetFlashSale(ctx context.Context, tenantID uuid.UUID) (domain.FlashSale, error) {
	raw, ok, err := m.kv.Get(ctx, kv.FlashSaleKey(tenantID))
	if err != nil {
		return domain.FlashSale{}, fmt.Errorf("read flash sale: %w", err)
	}
	if !ok {
		return domain.FlashSale{}, ErrNoFlashSale
	}
	var sale domain.FlashSale
	if err := json.Unmarshal([]byte(raw), &sale); err != nil {
		return domain.FlashSale{}, fmt.Errorf("decode flash sale: %w", err)
	}
	if !sale.IsActive || sale.EndTime <= m.Now().UnixMilli() {
		return domain.FlashSale{}, ErrNoFlashSale
	}
	return sale, nil
}

// SendCampaign pushes a message onto the store's notification feed and
// announces it to connected customers.
func (m *Marketing) SendCampaign(ctx context.Context, tenantID uuid.UUID, title, message string) (domain.Notification, error) {
	n := domain.Notification{
		ID:      uuid.NewString(),
		Title:   title,
		Message: message,
		Date:    m.Now(),
	}

	feed, err := m.Notifications(ctx, tenantID)
	if err != nil {
		return domain.Notification{}, err
	}
	feed = append([]domain.Notification{n}, feed...)
	if len(feed) > maxNotifications {
		feed = feed[:maxNotifications]
	}

	raw, err := json.Marshal(feed)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("marshal notifications: %w", err)
	}
	if err := m.kv.Set(ctx, kv.NotificationsKey(tenantID), string(raw), 0); err != nil {
		return domain.Notification{}, fmt.Errorf("store notifications: %w", err)
	}

	m.broadcast(tenantID, enum.EventCampaignBroadcast, n)
	return n, nil
}

// Notifications returns the store's feed, newest first.
func (m *Marketing) Notifications(ctx context.Context, tenantID uuid.UUID) ([]domain.Notification, error) {
	raw, ok, err := m.kv.Get(ctx, kv.NotificationsKey(tenantID))
	if err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var feed []domain.Notification
	if err := json.Unmarshal([]byte(raw), &feed); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return feed, nil
}

func (m *Marketing) broadcast(tenantID uuid.UUID, eventType string, payload any) {
	if m.hub == nil {
		return
	}
	m.hub.BroadcastToTenant(tenantID, ws.NewEvent(eventType, payload))
}
