package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/store"
)

// maxFeaturedProducts caps the storefront carousel.
const maxFeaturedProducts = 3

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *memory.Store and *postgres.Store; narrow interface for
// testability.
type ProductStore interface {
	ListProducts(ctx context.Context, tenantID uuid.UUID) ([]domain.Product, error)
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) error
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error
}

// ProductHandler handles product CRUD endpoints.
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// RegisterRoutes registers product CRUD endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Price             string  `json:"price"`
	PromotionalPrice  *string `json:"promotional_price"`
	Category          string  `json:"category"`
	IsFeatured        bool    `json:"is_featured"`
	Stock             *int32  `json:"stock"`
	DeliveryAvailable bool    `json:"delivery_available"`
}

type productResponse struct {
	ID                uuid.UUID `json:"id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	Price             string    `json:"price"`
	PromotionalPrice  *string   `json:"promotional_price,omitempty"`
	Category          string    `json:"category"`
	IsFeatured        bool      `json:"is_featured"`
	Stock             *int32    `json:"stock,omitempty"`
	DeliveryAvailable bool      `json:"delivery_available"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	resp := productResponse{
		ID:                p.ID,
		TenantID:          p.TenantID,
		Name:              p.Name,
		Description:       p.Description,
		Price:             p.Price.StringFixed(2),
		Category:          p.Category,
		IsFeatured:        p.IsFeatured,
		Stock:             p.Stock,
		DeliveryAvailable: p.DeliveryAvailable,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.PromotionalPrice != nil {
		s := p.PromotionalPrice.StringFixed(2)
		resp.PromotionalPrice = &s
	}
	return resp
}

// --- Helpers ---

var errNegativePrice = errors.New("negative price")

func parsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errNegativePrice
	}
	return d, nil
}

// applyRequest validates the payload and copies it onto the product.
func (h *ProductHandler) applyRequest(w http.ResponseWriter, req productRequest, p *domain.Product) bool {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return false
	}
	if req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category is required"})
		return false
	}
	if req.Price == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price is required"})
		return false
	}

	price, err := parsePrice(req.Price)
	if err != nil {
		if errors.Is(err, errNegativePrice) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		}
		return false
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Price = price
	p.Category = req.Category
	p.IsFeatured = req.IsFeatured
	p.Stock = req.Stock
	p.DeliveryAvailable = req.DeliveryAvailable
	p.PromotionalPrice = nil

	if req.PromotionalPrice != nil {
		promo, err := parsePrice(*req.PromotionalPrice)
		if err != nil || promo.GreaterThanOrEqual(price) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "promotional_price must be below price"})
			return false
		}
		p.PromotionalPrice = &promo
	}
	return true
}

// featuredSlotFree checks the carousel cap, ignoring the product itself on
// updates.
func (h *ProductHandler) featuredSlotFree(ctx context.Context, tenantID, selfID uuid.UUID) (bool, error) {
	products, err := h.store.ListProducts(ctx, tenantID)
	if err != nil {
		return false, err
	}
	featured := 0
	for _, p := range products {
		if p.IsFeatured && p.ID != selfID {
			featured++
		}
	}
	return featured < maxFeaturedProducts, nil
}

// --- Handlers ---

// List returns all products of the given tenant.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	products, err := h.store.ListProducts(r.Context(), tenantID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single product by ID.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	prodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), tenantID, prodID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create adds a new product to the catalog.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	now := time.Now()
	product := domain.Product{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !h.applyRequest(w, req, &product) {
		return
	}

	if product.IsFeatured {
		free, err := h.featuredSlotFree(r.Context(), tenantID, product.ID)
		if err != nil {
			log.Printf("ERROR: count featured products: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if !free {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "at most 3 products can be featured"})
			return
		}
	}

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update replaces a product's editable fields.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	prodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), tenantID, prodID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if !h.applyRequest(w, req, &product) {
		return
	}
	product.UpdatedAt = time.Now()

	if product.IsFeatured {
		free, err := h.featuredSlotFree(r.Context(), tenantID, product.ID)
		if err != nil {
			log.Printf("ERROR: count featured products: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if !free {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "at most 3 products can be featured"})
			return
		}
	}

	if err := h.store.UpdateProduct(r.Context(), product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete removes a product from the catalog.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	prodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if err := h.store.DeleteProduct(r.Context(), tenantID, prodID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
