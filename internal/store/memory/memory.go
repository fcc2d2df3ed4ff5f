// Package memory is the default storage driver: mutex-guarded in-memory
// maps, one per record type. It is the session-local store the demo runs
// on; a single lock is all the coordination the workload needs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/store"
)

// Store holds all records for the process lifetime.
type Store struct {
	mu       sync.RWMutex
	orders   map[uuid.UUID]domain.Order
	products map[uuid.UUID]domain.Product
	users    map[uuid.UUID]domain.User
	coupons  map[uuid.UUID]domain.Coupon
	orderSeq map[uuid.UUID]int32
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]domain.Order),
		products: make(map[uuid.UUID]domain.Product),
		users:    make(map[uuid.UUID]domain.User),
		coupons:  make(map[uuid.UUID]domain.Coupon),
		orderSeq: make(map[uuid.UUID]int32),
	}
}

// --- Orders ---

func (s *Store) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq[tenantID]++
	return s.orderSeq[tenantID], nil
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return store.ErrDuplicate
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, store.ErrNotFound
	}
	return o, nil
}

// SaveOrderTransition replaces an order record in a single step, guarded by
// the status the caller read. ErrConflict means the order moved on between
// read and write.
func (s *Store) SaveOrderTransition(ctx context.Context, o domain.Order, fromStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Status != fromStatus {
		return store.ErrConflict
	}
	s.orders[o.ID] = o
	return nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Order
	for _, o := range s.orders {
		if f.TenantID != nil && o.TenantID != *f.TenantID {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(statuses []string, s string) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// --- Products ---

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return store.ErrDuplicate
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return domain.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok || cur.TenantID != p.TenantID {
		return store.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Product
	for _, p := range s.products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID uuid.UUID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Role == enum.UserRoleTenant && u.TenantID == tenantID {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Role == enum.UserRoleTenant && u.StoreSlug == slug {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

// --- Coupons ---

func (s *Store) CreateCoupon(ctx context.Context, c domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.coupons {
		if existing.TenantID == c.TenantID && strings.EqualFold(existing.Code, c.Code) {
			return store.ErrDuplicate
		}
	}
	s.coupons[c.ID] = c
	return nil
}

func (s *Store) UpdateCoupon(ctx context.Context, c domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.coupons[c.ID]
	if !ok || cur.TenantID != c.TenantID {
		return store.ErrNotFound
	}
	s.coupons[c.ID] = c
	return nil
}

func (s *Store) ListCoupons(ctx context.Context, tenantID uuid.UUID) ([]domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Coupon
	for _, c := range s.coupons {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.coupons {
		if c.TenantID == tenantID && strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return domain.Coupon{}, store.ErrNotFound
}

// RedeemCoupon increments a coupon's use count if it is still active and
// under its use limit. ErrConflict means the coupon can no longer be used.
func (s *Store) RedeemCoupon(ctx context.Context, tenantID uuid.UUID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.coupons {
		if c.TenantID != tenantID || !strings.EqualFold(c.Code, code) {
			continue
		}
		if !c.IsActive || (c.MaxUses > 0 && c.Uses >= c.MaxUses) {
			return store.ErrConflict
		}
		c.Uses++
		s.coupons[id] = c
		return nil
	}
	return store.ErrNotFound
}
