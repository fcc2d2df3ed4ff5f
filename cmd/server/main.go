package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comandesja/api/internal/config"
	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/kv"
	"github.com/comandesja/api/internal/notify"
	"github.com/comandesja/api/internal/router"
	"github.com/comandesja/api/internal/service"
	"github.com/comandesja/api/internal/store/memory"
	"github.com/comandesja/api/internal/store/postgres"
	"github.com/comandesja/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backend
	var st router.Store
	var shiftStore service.ShiftStore
	var tenantName func(domain.Order) string
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			log.Fatalf("database ping failed: %v", err)
		}
		pg := postgres.New(pool)
		st, shiftStore = pg, pg
		tenantName = storeNameLookup(pg.GetTenant)
		log.Println("Using postgres order store")
	default:
		mem := memory.New()
		st, shiftStore = mem, mem
		tenantName = storeNameLookup(mem.GetTenant)
		log.Println("Using in-memory order store (orders are lost on restart)")
	}

	// Key-value backend
	var kvStore kv.Store
	switch cfg.KVDriver {
	case "redis":
		kvStore = kv.NewRedis(cfg.RedisAddr)
		log.Printf("Using redis key-value store at %s", cfg.RedisAddr)
	default:
		kvStore = kv.NewMemory()
		log.Println("Using in-memory key-value store")
	}

	// Notification dispatchers: kitchen ticket spool on stdout, plus the
	// broker when one is configured.
	dispatcher := notify.Multi{
		notify.NewPrinter(os.Stdout, tenantName),
		notify.Logger{},
	}
	if cfg.AMQPURL != "" {
		broker, err := notify.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("amqp connection failed: %v", err)
		}
		defer broker.Close()
		dispatcher = append(dispatcher, broker)
		log.Println("Publishing notifications to AMQP broker")
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Stagnation monitor: flags READY orders nobody collects
	monitor := service.NewMonitor(shiftStore, hub, cfg.StagnationThreshold, cfg.StagnationInterval)
	go monitor.Run(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router.New(cfg, st, kvStore, dispatcher, hub),
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: graceful shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}

// storeNameLookup adapts a tenant lookup into the printer's store-name
// callback. Lookup failures fall back to the printer's default name.
func storeNameLookup(getTenant func(ctx context.Context, tenantID uuid.UUID) (domain.User, error)) func(domain.Order) string {
	return func(o domain.Order) string {
		tenant, err := getTenant(context.Background(), o.TenantID)
		if err != nil {
			return ""
		}
		return tenant.Name
	}
}
