package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/kv"
	"github.com/comandesja/api/internal/store/memory"
)

func newMarketingFixture(t *testing.T) (*Marketing, *mockBroadcaster, uuid.UUID, domain.Product) {
	t.Helper()
	st := memory.New()
	tenantID := uuid.New()
	product := domain.Product{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "Quattro Formaggi",
		Price:    decimal.NewFromFloat(12.00),
	}
	if err := st.CreateProduct(context.Background(), product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	hub := &mockBroadcaster{}
	m := NewMarketing(st, kv.NewMemory(), hub)
	m.Now = fixedClock(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	return m, hub, tenantID, product
}

func TestStartFlashSale(t *testing.T) {
	m, hub, tenantID, product := newMarketingFixture(t)

	sale, err := m.StartFlashSale(context.Background(), tenantID, product.ID, decimal.NewFromFloat(8.00), time.Hour)
	if err != nil {
		t.Fatalf("start flash sale: %v", err)
	}

	if !sale.IsActive {
		t.Error("sale not active")
	}
	if sale.ProductName != "Quattro Formaggi" {
		t.Errorf("product name: got %q", sale.ProductName)
	}
	if !sale.OriginalPrice.Equal(decimal.NewFromFloat(12.00)) {
		t.Errorf("original price: got %s, want 12.00", sale.OriginalPrice)
	}
	if want := m.Now().Add(time.Hour).UnixMilli(); sale.EndTime != want {
		t.Errorf("end time: got %d, want %d", sale.EndTime, want)
	}
	if len(hub.events) != 1 || hub.events[0].Type != enum.EventFlashSaleStarted {
		t.Errorf("broadcast: got %v", hub.events)
	}

	got, err := m.GetFlashSale(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("get flash sale: %v", err)
	}
	if got.ProductID != product.ID {
		t.Errorf("stored sale product: got %v, want %v", got.ProductID, product.ID)
	}
}

func TestStartFlashSaleValidatesPrice(t *testing.T) {
	m, _, tenantID, product := newMarketingFixture(t)

	for _, price := range []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromFloat(-1.00),
		decimal.NewFromFloat(12.00), // equal to list price
		decimal.NewFromFloat(15.00), // above list price
	} {
		_, err := m.StartFlashSale(context.Background(), tenantID, product.ID, price, time.Hour)
		if !errors.Is(err, ErrInvalidSalePrice) {
			t.Errorf("price %s: got %v, want ErrInvalidSalePrice", price, err)
		}
	}
}

func TestStartFlashSaleUnknownProduct(t *testing.T) {
	m, _, tenantID, _ := newMarketingFixture(t)

	_, err := m.StartFlashSale(context.Background(), tenantID, uuid.New(), decimal.NewFromFloat(5.00), time.Hour)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("got %v, want ErrProductNotFound", err)
	}
}

func TestStopFlashSale(t *testing.T) {
	m, hub, tenantID, product := newMarketingFixture(t)

	if _, err := m.StartFlashSale(context.Background(), tenantID, product.ID, decimal.NewFromFloat(8.00), time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.StopFlashSale(context.Background(), tenantID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if _, err := m.GetFlashSale(context.Background(), tenantID); !errors.Is(err, ErrNoFlashSale) {
		t.Errorf("after stop: got %v, want ErrNoFlashSale", err)
	}
	if len(hub.events) != 2 || hub.events[1].Type != enum.EventFlashSaleStopped {
		t.Errorf("broadcast: got %v", hub.events)
	}
}

func TestStopFlashSaleWithoutOne(t *testing.T) {
	m, _, tenantID, _ := newMarketingFixture(t)

	if err := m.StopFlashSale(context.Background(), tenantID); !errors.Is(err, ErrNoFlashSale) {
		t.Errorf("got %v, want ErrNoFlashSale", err)
	}
}

func TestGetFlashSaleExpired(t *testing.T) {
	m, _, tenantID, product := newMarketingFixture(t)

	if _, err := m.StartFlashSale(context.Background(), tenantID, product.ID, decimal.NewFromFloat(8.00), time.Hour); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two hours later the entry may still sit in the KV store, but the
	// sale is over.
	m.Now = fixedClock(m.Now().Add(2 * time.Hour))
	if _, err := m.GetFlashSale(context.Background(), tenantID); !errors.Is(err, ErrNoFlashSale) {
		t.Errorf("got %v, want ErrNoFlashSale", err)
	}
}

func TestSendCampaign(t *testing.T) {
	m, hub, tenantID, _ := newMarketingFixture(t)

	n, err := m.SendCampaign(context.Background(), tenantID, "2x1 en pizzas", "Solo esta noche")
	if err != nil {
		t.Fatalf("send campaign: %v", err)
	}
	if n.Title != "2x1 en pizzas" {
		t.Errorf("title: got %q", n.Title)
	}
	if len(hub.events) != 1 || hub.events[0].Type != enum.EventCampaignBroadcast {
		t.Errorf("broadcast: got %v", hub.events)
	}

	feed, err := m.Notifications(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != n.ID {
		t.Errorf("feed: got %v", feed)
	}
}

func TestSendCampaignFeedIsNewestFirstAndCapped(t *testing.T) {
	m, _, tenantID, _ := newMarketingFixture(t)

	for i := 0; i < maxNotifications+5; i++ {
		if _, err := m.SendCampaign(context.Background(), tenantID, "Promo", "msg"); err != nil {
			t.Fatalf("send campaign %d: %v", i, err)
		}
	}

	feed, err := m.Notifications(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(feed) != maxNotifications {
		t.Errorf("feed length: got %d, want %d", len(feed), maxNotifications)
	}
}
