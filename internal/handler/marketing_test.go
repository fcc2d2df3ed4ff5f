package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/handler"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/store"
)

// --- Mocks ---

type mockCouponStore struct {
	coupons map[uuid.UUID]domain.Coupon
}

func newMockCouponStore() *mockCouponStore {
	return &mockCouponStore{coupons: make(map[uuid.UUID]domain.Coupon)}
}

func (m *mockCouponStore) CreateCoupon(_ context.Context, c domain.Coupon) error {
	for _, existing := range m.coupons {
		if existing.TenantID == c.TenantID && existing.Code == c.Code {
			return store.ErrDuplicate
		}
	}
	m.coupons[c.ID] = c
	return nil
}

func (m *mockCouponStore) UpdateCoupon(_ context.Context, c domain.Coupon) error {
	if _, ok := m.coupons[c.ID]; !ok {
		return store.ErrNotFound
	}
	m.coupons[c.ID] = c
	return nil
}

func (m *mockCouponStore) ListCoupons(_ context.Context, tenantID uuid.UUID) ([]domain.Coupon, error) {
	var result []domain.Coupon
	for _, c := range m.coupons {
		if c.TenantID == tenantID {
			result = append(result, c)
		}
	}
	return result, nil
}

type mockPromoter struct {
	startFn         func(ctx context.Context, tenantID, productID uuid.UUID, salePrice decimal.Decimal, duration time.Duration) (domain.FlashSale, error)
	stopFn          func(ctx context.Context, tenantID uuid.UUID) error
	getFn           func(ctx context.Context, tenantID uuid.UUID) (domain.FlashSale, error)
	sendFn          func(ctx context.Context, tenantID uuid.UUID, title, message string) (domain.Notification, error)
	notificationsFn func(ctx context.Context, tenantID uuid.UUID) ([]domain.Notification, error)
}

func (m *mockPromoter) StartFlashSale(ctx context.Context, tenantID, productID uuid.UUID, salePrice decimal.Decimal, duration time.Duration) (domain.FlashSale, error) {
	return m.startFn(ctx, tenantID, productID, salePrice, duration)
}

func (m *mockPromoter) StopFlashSale(ctx context.Context, tenantID uuid.UUID) error {
	return m.stopFn(ctx, tenantID)
}

func (m *mockPromoter) GetFlashSale(ctx context.Context, tenantID uuid.UUID) (domain.FlashSale, error) {
	return m.getFn(ctx, tenantID)
}

func (m *mockPromoter) SendCampaign(ctx context.Context, tenantID uuid.UUID, title, message string) (domain.Notification, error) {
	return m.sendFn(ctx, tenantID, title, message)
}

func (m *mockPromoter) Notifications(ctx context.Context, tenantID uuid.UUID) ([]domain.Notification, error) {
	return m.notificationsFn(ctx, tenantID)
}

// --- Helpers ---

func setupMarketingRouter(st *mockCouponStore, promoter *mockPromoter) *chi.Mux {
	h := handler.NewMarketingHandler(st, promoter)
	r := chi.NewRouter()
	r.Route("/tenants/{tid}/marketing", h.RegisterRoutes)
	return r
}

// --- Flash sale tests ---

func TestFlashSaleStart_Valid(t *testing.T) {
	tenantID := uuid.New()
	productID := uuid.New()

	var gotPrice decimal.Decimal
	var gotDuration time.Duration
	promoter := &mockPromoter{
		startFn: func(_ context.Context, _, pid uuid.UUID, price decimal.Decimal, duration time.Duration) (domain.FlashSale, error) {
			gotPrice, gotDuration = price, duration
			return domain.FlashSale{
				IsActive:        true,
				ProductID:       pid,
				ProductName:     "Pizza Quattro Formaggi",
				OriginalPrice:   decimal.NewFromFloat(12.00),
				DiscountedPrice: price,
			}, nil
		},
	}

	router := setupMarketingRouter(newMockCouponStore(), promoter)
	rr := doRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/marketing/flash-sale", map[string]interface{}{
		"product_id":       productID.String(),
		"discounted_price": "6.50",
		"duration_minutes": 60,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if !gotPrice.Equal(decimal.NewFromFloat(6.50)) {
		t.Errorf("sale price: got %s, want 6.50", gotPrice)
	}
	if gotDuration != time.Hour {
		t.Errorf("duration: got %s, want 1h", gotDuration)
	}

	resp := decodeResponse(t, rr)
	if resp["isActive"] != true {
		t.Errorf("expected an active sale, got %v", resp)
	}
}

func TestFlashSaleStart_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown product", service.ErrProductNotFound, http.StatusNotFound},
		{"bad price", service.ErrInvalidSalePrice, http.StatusBadRequest},
		{"bad duration", service.ErrInvalidDuration, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			promoter := &mockPromoter{
				startFn: func(_ context.Context, _, _ uuid.UUID, _ decimal.Decimal, _ time.Duration) (domain.FlashSale, error) {
					return domain.FlashSale{}, tt.err
				},
			}
			router := setupMarketingRouter(newMockCouponStore(), promoter)

			rr := doRequest(t, router, "POST", "/tenants/"+uuid.New().String()+"/marketing/flash-sale", map[string]interface{}{
				"product_id":       uuid.New().String(),
				"discounted_price": "6.50",
				"duration_minutes": 60,
			})

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestFlashSaleGet_NoneRunning(t *testing.T) {
	promoter := &mockPromoter{
		getFn: func(_ context.Context, _ uuid.UUID) (domain.FlashSale, error) {
			return domain.FlashSale{}, service.ErrNoFlashSale
		},
	}
	router := setupMarketingRouter(newMockCouponStore(), promoter)

	rr := doRequest(t, router, "GET", "/tenants/"+uuid.New().String()+"/marketing/flash-sale", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestFlashSaleStop_Valid(t *testing.T) {
	stopped := false
	promoter := &mockPromoter{
		stopFn: func(_ context.Context, _ uuid.UUID) error {
			stopped = true
			return nil
		},
	}
	router := setupMarketingRouter(newMockCouponStore(), promoter)

	rr := doRequest(t, router, "DELETE", "/tenants/"+uuid.New().String()+"/marketing/flash-sale", nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if !stopped {
		t.Error("expected the sale to be stopped")
	}
}

// --- Campaign tests ---

func TestCampaignSend_Valid(t *testing.T) {
	promoter := &mockPromoter{
		sendFn: func(_ context.Context, _ uuid.UUID, title, message string) (domain.Notification, error) {
			return domain.Notification{ID: "n1", Title: title, Message: message, Date: time.Now()}, nil
		},
	}
	router := setupMarketingRouter(newMockCouponStore(), promoter)

	rr := doRequest(t, router, "POST", "/tenants/"+uuid.New().String()+"/marketing/campaigns", map[string]string{
		"title":   "2x1 en pizzas",
		"message": "Solo esta noche",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["title"] != "2x1 en pizzas" {
		t.Errorf("title: got %v, want 2x1 en pizzas", resp["title"])
	}
}

func TestCampaignSend_MissingFields(t *testing.T) {
	router := setupMarketingRouter(newMockCouponStore(), &mockPromoter{})

	rr := doRequest(t, router, "POST", "/tenants/"+uuid.New().String()+"/marketing/campaigns", map[string]string{
		"title": "No message",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Coupon tests ---

func TestCouponCreate_Valid(t *testing.T) {
	st := newMockCouponStore()
	router := setupMarketingRouter(st, &mockPromoter{})
	tenantID := uuid.New()

	rr := doRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/marketing/coupons", map[string]interface{}{
		"code":             "pizza10",
		"discount_percent": 10,
		"is_active":        true,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["code"] != "PIZZA10" {
		t.Errorf("code: got %v, want PIZZA10 (uppercased)", resp["code"])
	}
	if len(st.coupons) != 1 {
		t.Errorf("expected the coupon to be stored, have %d", len(st.coupons))
	}
}

func TestCouponCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing code", map[string]interface{}{"discount_percent": 10}},
		{"zero percent", map[string]interface{}{"code": "X", "discount_percent": 0}},
		{"over 100 percent", map[string]interface{}{"code": "X", "discount_percent": 150}},
		{"negative max uses", map[string]interface{}{"code": "X", "discount_percent": 10, "max_uses": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupMarketingRouter(newMockCouponStore(), &mockPromoter{})

			rr := doRequest(t, router, "POST", "/tenants/"+uuid.New().String()+"/marketing/coupons", tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCouponCreate_Duplicate(t *testing.T) {
	st := newMockCouponStore()
	tenantID := uuid.New()
	st.coupons[uuid.New()] = domain.Coupon{ID: uuid.New(), TenantID: tenantID, Code: "PIZZA10"}

	router := setupMarketingRouter(st, &mockPromoter{})
	rr := doRequest(t, router, "POST", "/tenants/"+tenantID.String()+"/marketing/coupons", map[string]interface{}{
		"code":             "PIZZA10",
		"discount_percent": 10,
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestCouponUpdate_PreservesUses(t *testing.T) {
	st := newMockCouponStore()
	tenantID := uuid.New()
	id := uuid.New()
	st.coupons[id] = domain.Coupon{
		ID: id, TenantID: tenantID, Code: "PIZZA10",
		DiscountPercent: 10, IsActive: true, Uses: 7, CreatedAt: time.Now(),
	}

	router := setupMarketingRouter(st, &mockPromoter{})
	rr := doRequest(t, router, "PUT", "/tenants/"+tenantID.String()+"/marketing/coupons/"+id.String(), map[string]interface{}{
		"code":             "PIZZA15",
		"discount_percent": 15,
		"is_active":        false,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	updated := st.coupons[id]
	if updated.Code != "PIZZA15" || updated.DiscountPercent != 15 || updated.IsActive {
		t.Errorf("coupon not updated: %+v", updated)
	}
	if updated.Uses != 7 {
		t.Errorf("uses: got %d, want 7 (must survive edits)", updated.Uses)
	}
}

func TestCouponUpdate_NotFound(t *testing.T) {
	router := setupMarketingRouter(newMockCouponStore(), &mockPromoter{})

	rr := doRequest(t, router, "PUT", "/tenants/"+uuid.New().String()+"/marketing/coupons/"+uuid.New().String(), map[string]interface{}{
		"code":             "GHOST",
		"discount_percent": 10,
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
