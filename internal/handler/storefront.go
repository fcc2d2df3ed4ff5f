package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/store"
)

// StorefrontStore defines the database methods the public store pages need.
// Satisfied by *memory.Store and *postgres.Store.
type StorefrontStore interface {
	GetTenantBySlug(ctx context.Context, slug string) (domain.User, error)
	ListProducts(ctx context.Context, tenantID uuid.UUID) ([]domain.Product, error)
}

// StorefrontHandler serves the unauthenticated customer-facing store pages.
type StorefrontHandler struct {
	store     StorefrontStore
	marketing Promoter
}

// NewStorefrontHandler creates a new StorefrontHandler.
func NewStorefrontHandler(store StorefrontStore, marketing Promoter) *StorefrontHandler {
	return &StorefrontHandler{store: store, marketing: marketing}
}

// RegisterRoutes registers public store endpoints on the given Chi router.
// Mounted at /stores/{slug}
func (h *StorefrontHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Get("/products", h.Products)
	r.Get("/flash-sale", h.FlashSale)
	r.Get("/notifications", h.Notifications)
}

// --- Response types ---

type storeResponse struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	BusinessType string    `json:"business_type"`
}

// --- Handlers ---

func (h *StorefrontHandler) resolve(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	slug := chi.URLParam(r, "slug")
	tenant, err := h.store.GetTenantBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "store not found"})
			return domain.User{}, false
		}
		log.Printf("ERROR: get store by slug: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return domain.User{}, false
	}
	return tenant, true
}

// Get returns the store's public profile.
func (h *StorefrontHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, storeResponse{
		TenantID:     tenant.TenantID,
		Name:         tenant.Name,
		Slug:         tenant.StoreSlug,
		BusinessType: tenant.BusinessType,
	})
}

// Products returns the store's catalog.
func (h *StorefrontHandler) Products(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolve(w, r)
	if !ok {
		return
	}

	products, err := h.store.ListProducts(r.Context(), tenant.TenantID)
	if err != nil {
		log.Printf("ERROR: list store products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// FlashSale returns the store's running sale, if any.
func (h *StorefrontHandler) FlashSale(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolve(w, r)
	if !ok {
		return
	}

	sale, err := h.marketing.GetFlashSale(r.Context(), tenant.TenantID)
	if err != nil {
		if errors.Is(err, service.ErrNoFlashSale) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no flash sale is running"})
			return
		}
		log.Printf("ERROR: get store flash sale: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// Notifications returns the store's campaign feed.
func (h *StorefrontHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.resolve(w, r)
	if !ok {
		return
	}

	feed, err := h.marketing.Notifications(r.Context(), tenant.TenantID)
	if err != nil {
		log.Printf("ERROR: list store notifications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if feed == nil {
		feed = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, feed)
}
