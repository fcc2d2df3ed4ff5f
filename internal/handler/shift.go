package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/service"
)

// Reporter is the slice of *service.Aggregator the handler calls.
type Reporter interface {
	Report(ctx context.Context, tenantID uuid.UUID, shift string, day time.Time) (domain.ShiftSummary, error)
}

// TenantLookup resolves a tenant's display name for the printed report.
type TenantLookup interface {
	GetTenant(ctx context.Context, tenantID uuid.UUID) (domain.User, error)
}

// ShiftHandler serves the till-close report.
type ShiftHandler struct {
	reporter Reporter
	tenants  TenantLookup
}

// NewShiftHandler creates a new ShiftHandler.
func NewShiftHandler(reporter Reporter, tenants TenantLookup) *ShiftHandler {
	return &ShiftHandler{reporter: reporter, tenants: tenants}
}

// RegisterRoutes registers shift endpoints on the given Chi router.
// Expected to be mounted inside a tenant-scoped subrouter: /tenants/{tid}/shifts
func (h *ShiftHandler) RegisterRoutes(r chi.Router) {
	r.Get("/report", h.Report)
}

// --- Response types ---

type shiftSummaryResponse struct {
	Shift         string          `json:"shift"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	TotalOrders   int             `json:"total_orders"`
	TotalSales    string          `json:"total_sales"`
	TotalCash     string          `json:"total_cash"`
	TotalCard     string          `json:"total_card"`
	AverageTicket string          `json:"average_ticket"`
	FallbackUsed  bool            `json:"fallback_used"`
	Orders        []orderResponse `json:"orders"`
}

func toShiftSummaryResponse(s domain.ShiftSummary) shiftSummaryResponse {
	orders := make([]orderResponse, len(s.Orders))
	for i, o := range s.Orders {
		// Historical listing, no stagnation flag.
		orders[i] = toOrderResponse(o, 0)
	}
	return shiftSummaryResponse{
		Shift:         s.Shift,
		Start:         s.Start,
		End:           s.End,
		TotalOrders:   s.TotalOrders,
		TotalSales:    s.TotalSales.StringFixed(2),
		TotalCash:     s.TotalCash.StringFixed(2),
		TotalCard:     s.TotalCard.StringFixed(2),
		AverageTicket: s.AverageTicket.StringFixed(2),
		FallbackUsed:  s.FallbackUsed,
		Orders:        orders,
	}
}

// --- Handlers ---

// Report aggregates one shift. Query params: shift (required), date
// (YYYY-MM-DD, defaults to today), format=text for the printer slip.
func (h *ShiftHandler) Report(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantID(w, r)
	if !ok {
		return
	}

	shift := r.URL.Query().Get("shift")
	if shift == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shift is required"})
		return
	}

	day := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	summary, err := h.reporter.Report(r.Context(), tenantID, shift, day)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown shift"})
			return
		}
		log.Printf("ERROR: shift report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if r.URL.Query().Get("format") == "text" {
		storeName := ""
		if tenant, err := h.tenants.GetTenant(r.Context(), tenantID); err == nil {
			storeName = tenant.Name
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(service.RenderZReport(summary, storeName, day))); err != nil {
			log.Printf("ERROR: write shift report: %v", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toShiftSummaryResponse(summary))
}
