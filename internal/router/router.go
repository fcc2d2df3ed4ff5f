package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/comandesja/api/internal/config"
	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/handler"
	"github.com/comandesja/api/internal/kv"
	mw "github.com/comandesja/api/internal/middleware"
	"github.com/comandesja/api/internal/notify"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/ws"
)

// Store is the full storage surface the router wires into handlers and
// services. Satisfied by *memory.Store and *postgres.Store.
type Store interface {
	handler.AuthStore
	handler.OrderStore
	handler.ProductStore
	handler.CouponStore
	handler.StorefrontStore
	service.CheckoutStore
	service.LifecycleStore
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, tenant scoping, and role-based middleware as needed.
func New(cfg *config.Config, st Store, kvStore kv.Store, dispatcher notify.Dispatcher, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"http://localhost:3000", // Customer app dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Services
	checkout := service.NewCheckout(st, kvStore, hub, cfg.NightShiftEnd, cfg.ClosingCutoff, cfg.DeliveryFee)
	lifecycle := service.NewLifecycle(st, dispatcher, hub)
	marketing := service.NewMarketing(st, kvStore, hub)
	aggregator := service.NewAggregator(st, []domain.ShiftWindow{
		{Name: enum.ShiftMorning, Start: cfg.MorningShiftStart, End: cfg.MorningShiftEnd},
		{Name: enum.ShiftNight, Start: cfg.NightShiftStart, End: cfg.NightShiftEnd},
	}, cfg.ShiftReportFallback)

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Customer-facing storefront (public)
	storefrontHandler := handler.NewStorefrontHandler(st, marketing)
	r.Route("/stores/{slug}", storefrontHandler.RegisterRoutes)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Customer self-service routes (not tenant-scoped)
		trackingHandler := handler.NewTrackingHandler(kvStore)
		r.Route("/me", trackingHandler.RegisterRoutes)

		// Tenant-scoped routes
		r.Route("/tenants/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTenant)

			// Orders: checkout for customers, board and lifecycle for the kitchen
			orderHandler := handler.NewOrderHandler(st, checkout, lifecycle, cfg.StagnationThreshold)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Tenant back-office routes
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleTenant))

				productHandler := handler.NewProductHandler(st)
				r.Route("/products", productHandler.RegisterRoutes)

				marketingHandler := handler.NewMarketingHandler(st, marketing)
				r.Route("/marketing", marketingHandler.RegisterRoutes)

				shiftHandler := handler.NewShiftHandler(aggregator, st)
				r.Route("/shifts", shiftHandler.RegisterRoutes)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
