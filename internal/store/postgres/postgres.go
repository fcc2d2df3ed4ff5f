// Package postgres is the pgx-backed storage driver. Order line items are
// stored as JSONB on the order row; money columns are NUMERIC(10,2).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/store"
)

// Store wraps a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const orderColumns = `id, tenant_id, number, customer_name, phone, address, items,
	status, payment_method, delivery_type, timing, scheduled_for, coupon_code,
	subtotal, discount, delivery_fee, total, notified,
	created_at, ready_at, prep_minutes, updated_at`

// --- Orders ---

func (s *Store) NextOrderNumber(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	var next int32
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders WHERE tenant_id = $1`,
		tenantID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return next, nil
}

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (id, tenant_id, number, order_seq, customer_name, phone, address, items,
			status, payment_method, delivery_type, timing, scheduled_for, coupon_code,
			subtotal, discount, delivery_fee, total, notified,
			created_at, ready_at, prep_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		o.ID, o.TenantID, o.Number, orderSeq(o.Number), o.CustomerName, o.Phone, o.Address, items,
		o.Status, o.PaymentMethod, o.DeliveryType, o.Timing, nullTime(o.ScheduledFor), nullText(o.CouponCode),
		numeric(o.Subtotal), numeric(o.Discount), numeric(o.DeliveryFee), numeric(o.Total), o.Notified,
		o.CreatedAt, nullTime(o.ReadyAt), nullInt(o.PrepMinutes), o.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, store.ErrNotFound
	}
	return o, err
}

func (s *Store) SaveOrderTransition(ctx context.Context, o domain.Order, fromStatus string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, notified = $2, ready_at = $3, prep_minutes = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7 AND status = $8`,
		o.Status, o.Notified, nullTime(o.ReadyAt), nullInt(o.PrepMinutes), o.UpdatedAt,
		o.ID, o.TenantID, fromStatus)
	if err != nil {
		return fmt.Errorf("save order transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a moved-on order from a missing one.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND tenant_id = $2)`,
			o.ID, o.TenantID).Scan(&exists); err != nil {
			return fmt.Errorf("save order transition: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	if f.TenantID != nil {
		args = append(args, *f.TenantID)
		q += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		q += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	q += " ORDER BY created_at ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- Products ---

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, tenant_id, name, description, price, promotional_price,
			category, is_featured, stock, delivery_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.TenantID, p.Name, p.Description, numeric(p.Price), nullNumeric(p.PromotionalPrice),
		p.Category, p.IsFeatured, nullInt32(p.Stock), p.DeliveryAvailable, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (domain.Product, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, description, price, promotional_price,
			category, is_featured, stock, delivery_available, created_at, updated_at
		FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, store.ErrNotFound
	}
	return p, err
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, promotional_price = $4,
			category = $5, is_featured = $6, stock = $7, delivery_available = $8, updated_at = $9
		WHERE id = $10 AND tenant_id = $11`,
		p.Name, p.Description, numeric(p.Price), nullNumeric(p.PromotionalPrice),
		p.Category, p.IsFeatured, nullInt32(p.Stock), p.DeliveryAvailable, p.UpdatedAt,
		p.ID, p.TenantID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM products WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, tenantID uuid.UUID) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, name, description, price, promotional_price,
			category, is_featured, stock, delivery_available, created_at, updated_at
		FROM products WHERE tenant_id = $1 ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, tenant_id, store_slug, business_type, created_at)
		VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role, u.TenantID, nullText(u.StoreSlug), nullText(u.BusinessType), u.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, tenant_id,
			COALESCE(store_slug, ''), COALESCE(business_type, ''), created_at
		FROM users WHERE email = LOWER($1)`, email)
	return scanUser(row)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, tenant_id,
			COALESCE(store_slug, ''), COALESCE(business_type, ''), created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetTenant(ctx context.Context, tenantID uuid.UUID) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, tenant_id,
			COALESCE(store_slug, ''), COALESCE(business_type, ''), created_at
		FROM users WHERE role = $1 AND tenant_id = $2`, enum.UserRoleTenant, tenantID)
	return scanUser(row)
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, tenant_id,
			COALESCE(store_slug, ''), COALESCE(business_type, ''), created_at
		FROM users WHERE role = $1 AND store_slug = $2`, enum.UserRoleTenant, slug)
	return scanUser(row)
}

// --- Coupons ---

func (s *Store) CreateCoupon(ctx context.Context, c domain.Coupon) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coupons (id, tenant_id, code, discount_percent, is_active, uses, max_uses, created_at)
		VALUES ($1, $2, UPPER($3), $4, $5, $6, $7, $8)`,
		c.ID, c.TenantID, c.Code, c.DiscountPercent, c.IsActive, c.Uses, c.MaxUses, c.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (s *Store) UpdateCoupon(ctx context.Context, c domain.Coupon) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE coupons
		SET code = UPPER($1), discount_percent = $2, is_active = $3, max_uses = $4
		WHERE id = $5 AND tenant_id = $6`,
		c.Code, c.DiscountPercent, c.IsActive, c.MaxUses, c.ID, c.TenantID)
	if err != nil {
		return fmt.Errorf("update coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCoupons(ctx context.Context, tenantID uuid.UUID) ([]domain.Coupon, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, code, discount_percent, is_active, uses, max_uses, created_at
		FROM coupons WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Code, &c.DiscountPercent,
			&c.IsActive, &c.Uses, &c.MaxUses, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (domain.Coupon, error) {
	var c domain.Coupon
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, code, discount_percent, is_active, uses, max_uses, created_at
		FROM coupons WHERE tenant_id = $1 AND code = UPPER($2)`, tenantID, code).
		Scan(&c.ID, &c.TenantID, &c.Code, &c.DiscountPercent, &c.IsActive, &c.Uses, &c.MaxUses, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Coupon{}, store.ErrNotFound
	}
	return c, err
}

func (s *Store) RedeemCoupon(ctx context.Context, tenantID uuid.UUID, code string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE coupons SET uses = uses + 1
		WHERE tenant_id = $1 AND code = UPPER($2)
			AND is_active AND (max_uses = 0 OR uses < max_uses)`,
		tenantID, code)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM coupons WHERE tenant_id = $1 AND code = UPPER($2))`,
			tenantID, code).Scan(&exists); err != nil {
			return fmt.Errorf("redeem coupon: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	return nil
}

// --- Scan & convert helpers ---

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		items        []byte
		scheduledFor pgtype.Timestamptz
		couponCode   pgtype.Text
		subtotal     pgtype.Numeric
		discount     pgtype.Numeric
		deliveryFee  pgtype.Numeric
		total        pgtype.Numeric
		readyAt      pgtype.Timestamptz
		prepMinutes  pgtype.Int4
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.CustomerName, &o.Phone, &o.Address, &items,
		&o.Status, &o.PaymentMethod, &o.DeliveryType, &o.Timing, &scheduledFor, &couponCode,
		&subtotal, &discount, &deliveryFee, &total, &o.Notified,
		&o.CreatedAt, &readyAt, &prepMinutes, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal items: %w", err)
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time
		o.ScheduledFor = &t
	}
	if couponCode.Valid {
		o.CouponCode = couponCode.String
	}
	o.Subtotal = numericToDecimal(subtotal)
	o.Discount = numericToDecimal(discount)
	o.DeliveryFee = numericToDecimal(deliveryFee)
	o.Total = numericToDecimal(total)
	if readyAt.Valid {
		t := readyAt.Time
		o.ReadyAt = &t
	}
	if prepMinutes.Valid {
		m := int(prepMinutes.Int32)
		o.PrepMinutes = &m
	}
	return o, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price pgtype.Numeric
		promo pgtype.Numeric
		stock pgtype.Int4
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &price, &promo,
		&p.Category, &p.IsFeatured, &stock, &p.DeliveryAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.Price = numericToDecimal(price)
	if promo.Valid {
		d := numericToDecimal(promo)
		p.PromotionalPrice = &d
	}
	if stock.Valid {
		v := stock.Int32
		p.Stock = &v
	}
	return p, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.TenantID, &u.StoreSlug, &u.BusinessType, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// orderSeq extracts the numeric part of "ORD-042" for MAX()-based numbering.
func orderSeq(number string) int32 {
	var seq int32
	fmt.Sscanf(number, "ORD-%d", &seq)
	return seq
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func nullNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return numeric(*d)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func nullInt(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

func nullInt32(v *int32) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *v, Valid: true}
}
