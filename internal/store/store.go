// Package store defines the errors and filter types shared by the storage
// drivers. Handlers and services depend on narrow consumer-side interfaces;
// both the memory and postgres drivers satisfy all of them.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a guarded update matched no row, i.e.
	// the record changed between read and write.
	ErrConflict = errors.New("record changed, please retry")
	// ErrDuplicate is returned on unique key violations (email, coupon code).
	ErrDuplicate = errors.New("record already exists")
)

// OrderFilter narrows ListOrders. A nil TenantID matches all tenants; an
// empty Statuses slice matches all statuses.
type OrderFilter struct {
	TenantID *uuid.UUID
	Statuses []string
	From     *time.Time
	To       *time.Time
}
