package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/kv"
	"github.com/comandesja/api/internal/middleware"
)

// TrackingHandler serves the signed-in customer's order tracker.
type TrackingHandler struct {
	kv kv.Store
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(kvStore kv.Store) *TrackingHandler {
	return &TrackingHandler{kv: kvStore}
}

// RegisterRoutes registers tracking endpoints on the given Chi router.
// Expected to be mounted behind the auth middleware at /me
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/active-order", h.ActiveOrder)
	r.Delete("/active-order", h.ClearActiveOrder)
	r.Get("/notifications", h.Notifications)
}

// ActiveOrder returns the customer's current order summary, written at
// checkout and kept until it expires or is cleared.
func (h *TrackingHandler) ActiveOrder(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	raw, ok, err := h.kv.Get(r.Context(), kv.ActiveOrderKey(claims.UserID))
	if err != nil {
		log.Printf("ERROR: read active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active order"})
		return
	}

	var active domain.ActiveOrder
	if err := json.Unmarshal([]byte(raw), &active); err != nil {
		log.Printf("ERROR: decode active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// ClearActiveOrder drops the tracker, e.g. after the customer collected
// their order.
func (h *TrackingHandler) ClearActiveOrder(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if err := h.kv.Delete(r.Context(), kv.ActiveOrderKey(claims.UserID)); err != nil {
		log.Printf("ERROR: clear active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notifications returns the campaign feed of the store the customer is
// currently ordering from. Customers with no active order get an empty feed.
func (h *TrackingHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	raw, ok, err := h.kv.Get(r.Context(), kv.ActiveOrderKey(claims.UserID))
	if err != nil {
		log.Printf("ERROR: read active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, []domain.Notification{})
		return
	}

	var active domain.ActiveOrder
	if err := json.Unmarshal([]byte(raw), &active); err != nil {
		log.Printf("ERROR: decode active order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	feedRaw, ok, err := h.kv.Get(r.Context(), kv.NotificationsKey(active.TenantID))
	if err != nil {
		log.Printf("ERROR: read notifications feed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, []domain.Notification{})
		return
	}

	var feed []domain.Notification
	if err := json.Unmarshal([]byte(feedRaw), &feed); err != nil {
		log.Printf("ERROR: decode notifications feed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
