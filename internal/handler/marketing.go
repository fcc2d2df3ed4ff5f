package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/store"
)

// CouponStore defines the database methods needed by coupon endpoints.
// Satisfied by *memory.Store and *postgres.Store.
type CouponStore interface {
	CreateCoupon(ctx context.Context, c domain.Coupon) error
	UpdateCoupon(ctx context.Context, c domain.Coupon) error
	ListCoupons(ctx context.Context, tenantID uuid.UUID) ([]domain.Coupon, error)
}

// Promoter is the slice of *service.Marketing the handler calls.
type Promoter interface {
	StartFlashSale(ctx context.Context, tenantID, productID uuid.UUID, salePrice decimal.Decimal, duration time.Duration) (domain.FlashSale, error)
	StopFlashSale(ctx context.Context, tenantID uuid.UUID) error
	GetFlashSale(ctx context.Context, tenantID uuid.UUID) (domain.FlashSale, error)
	SendCampaign(ctx context.Context, tenantID uuid.UUID, title, message string) (domain.Notification, error)
	Notifications(ctx context.Context, tenantID uuid.UUID) ([]domain.Notification, error)
}

// MarketingHandler handles the tenant's promotional endpoints: flash
// sales, broadcast campaigns and coupons.
type MarketingHandler struct {
	store     CouponStore
	marketing Promoter
}

// NewMarketingHandler creates a new MarketingHandler.
func NewMarketingHandler(store CouponStore, marketing Promoter) *MarketingHandler {
	return &MarketingHandler{store: store, marketing: marketing}
}

// RegisterRoutes registers marketing endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/marketing
func (h *MarketingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/flash-sale", h.GetFlashSale)
	r.Post("/flash-sale", h.StartFlashSale)
	r.Delete("/flash-sale", h.StopFlashSale)
	r.Post("/campaigns", h.SendCampaign)
	r.Get("/notifications", h.ListNotifications)
	r.Get("/coupons", h.ListCoupons)
	r.Post("/coupons", h.CreateCoupon)
	r.Put("/coupons/{id}", h.UpdateCoupon)
}

// --- Request / Response types ---

type flashSaleRequest struct {
	ProductID       string `json:"product_id"`
	DiscountedPrice string `json:"discounted_price"`
	DurationMinutes int    `json:"duration_minutes"`
}

type campaignRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type couponRequest struct {
	Code            string `json:"code"`
	DiscountPercent int32  `json:"discount_percent"`
	IsActive        bool   `json:"is_active"`
	MaxUses         int32  `json:"max_uses"`
}

type couponResponse struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	DiscountPercent int32     `json:"discount_percent"`
	IsActive        bool      `json:"is_active"`
	Uses            int32     `json:"uses"`
	MaxUses         int32     `json:"max_uses"`
	CreatedAt       time.Time `json:"created_at"`
}

func toCouponResponse(c domain.Coupon) couponResponse {
	return couponResponse{
		ID:              c.ID,
		Code:            c.Code,
		DiscountPercent: c.DiscountPercent,
		IsActive:        c.IsActive,
		Uses:            c.Uses,
		MaxUses:         c.MaxUses,
		CreatedAt:       c.CreatedAt,
	}
}

// --- Flash sale ---

// GetFlashSale returns the running sale, if any.
func (h *MarketingHandler) GetFlashSale(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	sale, err := h.marketing.GetFlashSale(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, service.ErrNoFlashSale) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no flash sale is running"})
			return
		}
		log.Printf("ERROR: get flash sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// StartFlashSale puts a product on sale.
func (h *MarketingHandler) StartFlashSale(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	var req flashSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}
	price, err := decimal.NewFromString(req.DiscountedPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discounted_price"})
		return
	}

	sale, err := h.marketing.StartFlashSale(r.Context(), tenantID, productID, price,
		time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		case errors.Is(err, service.ErrInvalidSalePrice), errors.Is(err, service.ErrInvalidDuration):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: start flash sale: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// StopFlashSale ends the running sale early.
func (h *MarketingHandler) StopFlashSale(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	if err := h.marketing.StopFlashSale(r.Context(), tenantID); err != nil {
		if errors.Is(err, service.ErrNoFlashSale) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no flash sale is running"})
			return
		}
		log.Printf("ERROR: stop flash sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Campaigns ---

// SendCampaign pushes a broadcast message to the store's customers.
func (h *MarketingHandler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and message are required"})
		return
	}

	n, err := h.marketing.SendCampaign(r.Context(), tenantID, req.Title, req.Message)
	if err != nil {
		log.Printf("ERROR: send campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// ListNotifications returns the store's campaign feed, newest first.
func (h *MarketingHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	feed, err := h.marketing.Notifications(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list notifications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if feed == nil {
		feed = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, feed)
}

// --- Coupons ---

// ListCoupons returns the tenant's coupons, newest first.
func (h *MarketingHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	coupons, err := h.store.ListCoupons(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list coupons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		resp[i] = toCouponResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCoupon adds a percent-off code.
func (h *MarketingHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validCouponRequest(w, req) {
		return
	}

	coupon := domain.Coupon{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountPercent: req.DiscountPercent,
		IsActive:        req.IsActive,
		MaxUses:         req.MaxUses,
		CreatedAt:       time.Now(),
	}

	if err := h.store.CreateCoupon(r.Context(), coupon); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "coupon code already exists"})
			return
		}
		log.Printf("ERROR: create coupon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(coupon))
}

// UpdateCoupon edits a coupon's settings; the use counter is untouched.
func (h *MarketingHandler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}
	couponID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid coupon ID"})
		return
	}

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validCouponRequest(w, req) {
		return
	}

	coupons, err := h.store.ListCoupons(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list coupons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	var current *domain.Coupon
	for i := range coupons {
		if coupons[i].ID == couponID {
			current = &coupons[i]
			break
		}
	}
	if current == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "coupon not found"})
		return
	}

	current.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	current.DiscountPercent = req.DiscountPercent
	current.IsActive = req.IsActive
	current.MaxUses = req.MaxUses

	if err := h.store.UpdateCoupon(r.Context(), *current); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "coupon not found"})
			return
		}
		log.Printf("ERROR: update coupon: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(*current))
}

// --- Helpers ---

func validCouponRequest(w http.ResponseWriter, req couponRequest) bool {
	if strings.TrimSpace(req.Code) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return false
	}
	if req.DiscountPercent < 1 || req.DiscountPercent > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_percent must be between 1 and 100"})
		return false
	}
	if req.MaxUses < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_uses must be >= 0"})
		return false
	}
	return true
}

func parseTenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return uuid.Nil, false
	}
	return tenantID, true
}
