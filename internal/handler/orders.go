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

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/middleware"
	"github.com/comandesja/api/internal/notify"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/store"
)

// OrderStore defines the database methods needed by order handlers beyond
// what the services cover. Satisfied by *memory.Store and *postgres.Store.
type OrderStore interface {
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (domain.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error)
	GetTenant(ctx context.Context, tenantID uuid.UUID) (domain.User, error)
}

// Lifecycle is the slice of *service.Lifecycle the handler calls.
type Lifecycle interface {
	Accept(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)
	MarkReady(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)
	Notify(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)
	ConfirmDelivered(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)
	Reject(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)
}

// Placer is the slice of *service.Checkout the handler calls.
type Placer interface {
	PlaceOrder(ctx context.Context, req service.CheckoutRequest) (domain.Order, error)
}

// OrderHandler handles order endpoints: checkout for customers, the order
// board and lifecycle actions for the kitchen.
type OrderHandler struct {
	store      OrderStore
	checkout   Placer
	lifecycle  Lifecycle
	stagnation time.Duration
}

// NewOrderHandler creates a new OrderHandler. stagnation is the age at which
// a READY order is flagged on the board.
func NewOrderHandler(store OrderStore, checkout Placer, lifecycle Lifecycle, stagnation time.Duration) *OrderHandler {
	return &OrderHandler{store: store, checkout: checkout, lifecycle: lifecycle, stagnation: stagnation}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/ticket", h.Ticket)
	r.Post("/{id}/accept", h.action(func(l Lifecycle) lifecycleFn { return l.Accept }))
	r.Post("/{id}/ready", h.action(func(l Lifecycle) lifecycleFn { return l.MarkReady }))
	r.Post("/{id}/notify", h.action(func(l Lifecycle) lifecycleFn { return l.Notify }))
	r.Post("/{id}/deliver", h.action(func(l Lifecycle) lifecycleFn { return l.ConfirmDelivered }))
	r.Post("/{id}/reject", h.action(func(l Lifecycle) lifecycleFn { return l.Reject }))
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName string                   `json:"customer_name"`
	Phone        string                   `json:"phone"`
	Address      string                   `json:"address"`
	DeliveryType string                   `json:"delivery_type"`
	Timing       string                   `json:"timing"`
	ScheduledFor string                   `json:"scheduled_for"` // RFC3339
	Payment      string                   `json:"payment_method"`
	CouponCode   string                   `json:"coupon_code"`
	Items        []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type orderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Notes     string    `json:"notes,omitempty"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	Number        string              `json:"number"`
	CustomerName  string              `json:"customer_name"`
	Phone         string              `json:"phone"`
	Address       string              `json:"address,omitempty"`
	Items         []orderItemResponse `json:"items"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method"`
	DeliveryType  string              `json:"delivery_type"`
	Timing        string              `json:"timing"`
	ScheduledFor  *time.Time          `json:"scheduled_for,omitempty"`
	CouponCode    string              `json:"coupon_code,omitempty"`
	Subtotal      string              `json:"subtotal"`
	Discount      string              `json:"discount"`
	DeliveryFee   string              `json:"delivery_fee"`
	Total         string              `json:"total"`
	Notified      bool                `json:"notified"`
	CreatedAt     time.Time           `json:"created_at"`
	ReadyAt       *time.Time          `json:"ready_at,omitempty"`
	PrepMinutes   *int                `json:"prep_minutes,omitempty"`
	Stagnant      bool                `json:"stagnant"`
	WaitMinutes   int                 `json:"wait_minutes,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// toOrderResponse maps an order for the board. Stagnation is recomputed on
// every read rather than stored, so it self-heals after restarts; pass a
// zero stagnation threshold to skip the flag (historical views).
func toOrderResponse(o domain.Order, stagnation time.Duration) orderResponse {
	now := time.Now()
	stagnant := stagnation > 0 && service.IsStagnant(o, now, stagnation)
	waitMinutes := 0
	if stagnant {
		waitMinutes = int(now.Sub(*o.ReadyAt).Minutes())
	}
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Notes:     item.Notes,
		}
	}
	return orderResponse{
		ID:            o.ID,
		TenantID:      o.TenantID,
		Number:        o.Number,
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		Items:         items,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		DeliveryType:  o.DeliveryType,
		Timing:        o.Timing,
		ScheduledFor:  o.ScheduledFor,
		CouponCode:    o.CouponCode,
		Subtotal:      o.Subtotal.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		DeliveryFee:   o.DeliveryFee.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Notified:      o.Notified,
		CreatedAt:     o.CreatedAt,
		ReadyAt:       o.ReadyAt,
		PrepMinutes:   o.PrepMinutes,
		Stagnant:      stagnant,
		WaitMinutes:   waitMinutes,
		UpdatedAt:     o.UpdatedAt,
	}
}

// --- Handlers ---

// Create places a new order through checkout.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	checkoutReq := service.CheckoutRequest{
		TenantID:     tenantID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		DeliveryType: req.DeliveryType,
		Timing:       req.Timing,
		Payment:      req.Payment,
		CouponCode:   req.CouponCode,
	}

	// The tracker key comes from the token, never the body: a customer can
	// only ever write their own active-order entry.
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.Role == enum.UserRoleCustomer {
		checkoutReq.CustomerID = claims.UserID
	}

	if req.ScheduledFor != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledFor)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid scheduled_for"})
			return
		}
		checkoutReq.ScheduledFor = &t
	}

	for _, item := range req.Items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
			return
		}
		checkoutReq.Items = append(checkoutReq.Items, service.CheckoutItem{
			ProductID: pid,
			Quantity:  item.Quantity,
			Notes:     item.Notes,
		})
	}

	// The active-order tracker shows the store's display name.
	if tenant, err := h.store.GetTenant(r.Context(), tenantID); err == nil {
		checkoutReq.StoreName = tenant.Name
	}

	order, err := h.checkout.PlaceOrder(r.Context(), checkoutReq)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order, h.stagnation))
}

// List returns the tenant's order board, optionally filtered by status.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	filter := store.OrderFilter{TenantID: &tenantID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []string{status}
	}

	orders, err := h.store.ListOrders(r.Context(), filter)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, h.stagnation)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order by ID.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), tenantID, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, h.stagnation))
}

// Ticket returns the printable kitchen ticket as plain text.
func (h *OrderHandler) Ticket(w http.ResponseWriter, r *http.Request) {
	tenantID, orderID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), tenantID, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	storeName := ""
	if tenant, err := h.store.GetTenant(r.Context(), tenantID); err == nil {
		storeName = tenant.Name
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(notify.RenderTicket(order, storeName, time.Now()))); err != nil {
		log.Printf("ERROR: write ticket: %v", err)
	}
}

// --- Lifecycle actions ---

type lifecycleFn func(ctx context.Context, tenantID, orderID uuid.UUID) (domain.Order, error)

// action adapts one lifecycle transition into an HTTP handler. All five
// share the same shape: parse IDs, run the transition, map the error.
func (h *OrderHandler) action(pick func(Lifecycle) lifecycleFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, orderID, ok := h.parseIDs(w, r)
		if !ok {
			return
		}

		order, err := pick(h.lifecycle)(r.Context(), tenantID, orderID)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrOrderNotFound):
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			case errors.Is(err, service.ErrInvalidTransition):
				writeJSON(w, http.StatusConflict, map[string]string{"error": "invalid status transition"})
			case errors.Is(err, service.ErrTransitionRace):
				writeJSON(w, http.StatusConflict, map[string]string{"error": "order changed, please retry"})
			default:
				log.Printf("ERROR: order transition: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(order, h.stagnation))
	}
}

// --- Helpers ---

func (h *OrderHandler) parseIDs(w http.ResponseWriter, r *http.Request) (tenantID, orderID uuid.UUID, ok bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, orderID, true
}

func (h *OrderHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidAddress),
		errors.Is(err, service.ErrInvalidDelivery),
		errors.Is(err, service.ErrInvalidPayment),
		errors.Is(err, service.ErrInvalidTiming),
		errors.Is(err, service.ErrScheduleRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStoreClosing),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrCouponInvalid):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: place order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
