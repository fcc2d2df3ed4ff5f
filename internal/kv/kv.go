// Package kv is the small key-value surface the customer-facing features
// run on: the active-order summary, the per-tenant flash sale and the
// notification feed. Values are JSON strings; a TTL of 0 means no expiry.
package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the key-value port. Get reports (value, found, error) so a
// missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key builders. Keeping them here keeps the layout in one place.

func ActiveOrderKey(customerID uuid.UUID) string {
	return fmt.Sprintf("active_order:%s", customerID)
}

func FlashSaleKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("flash_sale:%s", tenantID)
}

func NotificationsKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("system_notifications:%s", tenantID)
}

// --- In-memory driver ---

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means never
}

// Memory is the default Store: a mutex-guarded map with lazy expiry.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}
