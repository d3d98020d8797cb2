package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/domain/inventory"
	"github.com/example/ec-reservation/internal/domain/order"
	"github.com/example/ec-reservation/internal/domain/product"
	"github.com/example/ec-reservation/internal/outbox"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the tables used by PostgresStore if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresStore implements UnitOfWork, Reader and outbox.Repository on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &pgTx{q: sqlTx}); err != nil {
		return mapPQError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapPQError(err))
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return selectProduct(ctx, t.q, id)
}

func (t *pgTx) GetProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT id, name, price, created_at FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*product.Product, len(ids))
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}

func (t *pgTx) SaveProduct(ctx context.Context, p *product.Product) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO products (id, name, price, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`,
		p.ID, p.Name, p.Price, p.CreatedAt)
	return mapPQError(err)
}

func (t *pgTx) GetStockItem(ctx context.Context, productID string) (*inventory.StockItem, error) {
	return selectStockItem(ctx, t.q, productID, true)
}

func (t *pgTx) SaveStockItem(ctx context.Context, si *inventory.StockItem) error {
	if err := si.Validate(); err != nil {
		return err
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO stock_items (id, product_id, total_quantity, reserved_quantity, available_quantity, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (id) DO UPDATE SET
		     total_quantity = EXCLUDED.total_quantity,
		     reserved_quantity = EXCLUDED.reserved_quantity,
		     available_quantity = EXCLUDED.available_quantity,
		     updated_at = now()`,
		si.ID, si.ProductID, si.TotalQuantity, si.ReservedQuantity, si.AvailableQuantity)
	return mapPQError(err)
}

func (t *pgTx) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return selectCart(ctx, t.q, userID, true)
}

func (t *pgTx) SaveCart(ctx context.Context, c *cart.Cart) error {
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		c.ID, c.UserID, c.CreatedAt); err != nil {
		return mapPQError(err)
	}
	if _, err := t.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return err
	}
	for i, it := range c.Items {
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO cart_items (id, cart_id, product_id, product_name, quantity, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, c.ID, it.ProductID, it.ProductName, it.Quantity, i); err != nil {
			return mapPQError(err)
		}
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return selectOrder(ctx, t.q, id, true)
}

func (t *pgTx) SaveOrder(ctx context.Context, o *order.Order) error {
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_price, shipping_details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		o.ID, o.UserID, string(o.Status), o.TotalPrice, o.ShippingDetails, o.CreatedAt); err != nil {
		return mapPQError(err)
	}
	for i, it := range o.Items {
		if _, err := t.q.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase, position)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.PriceAtPurchase, i); err != nil {
			return mapPQError(err)
		}
	}
	return nil
}

// AppendOutbox inserts the row and queues a NOTIFY that Postgres delivers on commit.
func (t *pgTx) AppendOutbox(ctx context.Context, m outbox.Message) error {
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO outbox_messages (id, event_type, payload, queue_name, created_at, retry_count)
		 VALUES ($1, $2, $3, $4, $5, 0)`,
		m.ID, m.EventType, string(m.Payload), m.QueueName, m.CreatedAt); err != nil {
		return mapPQError(err)
	}
	_, err := t.q.ExecContext(ctx, `SELECT pg_notify($1, $2)`, OutboxChannel, m.ID)
	return err
}

// ============================================
// Reader
// ============================================

func (s *PostgresStore) FindCart(ctx context.Context, userID string) (*cart.Cart, error) {
	return selectCart(ctx, s.db, userID, false)
}

func (s *PostgresStore) FindOrder(ctx context.Context, id string) (*order.Order, error) {
	return selectOrder(ctx, s.db, id, false)
}

func (s *PostgresStore) ListOrders(ctx context.Context, userID string) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*order.Order, 0, len(ids))
	for _, id := range ids {
		o, err := selectOrder(ctx, s.db, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *PostgresStore) FindStockItem(ctx context.Context, productID string) (*inventory.StockItem, error) {
	return selectStockItem(ctx, s.db, productID, false)
}

func (s *PostgresStore) FindProduct(ctx context.Context, id string) (*product.Product, error) {
	return selectProduct(ctx, s.db, id)
}

// ============================================
// Row helpers
// ============================================

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func selectProduct(ctx context.Context, q querier, id string) (*product.Product, error) {
	var p product.Product
	err := q.QueryRowContext(ctx,
		`SELECT id, name, price, created_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundProduct(id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func selectStockItem(ctx context.Context, q querier, productID string, lock bool) (*inventory.StockItem, error) {
	var si inventory.StockItem
	err := q.QueryRowContext(ctx,
		`SELECT id, product_id, total_quantity, reserved_quantity, available_quantity
		 FROM stock_items WHERE product_id = $1`+forUpdate(lock), productID).
		Scan(&si.ID, &si.ProductID, &si.TotalQuantity, &si.ReservedQuantity, &si.AvailableQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundStockItem(productID)
	}
	if err != nil {
		return nil, err
	}
	return &si, nil
}

func selectCart(ctx context.Context, q querier, userID string, lock bool) (*cart.Cart, error) {
	c := &cart.Cart{Items: []cart.CartItem{}}
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id = $1`+forUpdate(lock), userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundCart(userID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, cart_id, product_id, product_name, quantity
		 FROM cart_items WHERE cart_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it cart.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.ProductName, &it.Quantity); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func selectOrder(ctx context.Context, q querier, id string, lock bool) (*order.Order, error) {
	o := &order.Order{}
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, status, total_price, shipping_details, created_at
		 FROM orders WHERE id = $1`+forUpdate(lock), id).
		Scan(&o.ID, &o.UserID, &status, &o.TotalPrice, &o.ShippingDetails, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundOrder(id)
	}
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price_at_purchase
		 FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it order.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// mapPQError turns constraint violations, deadlocks and serialization failures into Conflict.
// Errors that already carry a kind pass through.
func mapPQError(err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation", "check_violation", "foreign_key_violation",
			"serialization_failure", "deadlock_detected":
			return &apperr.Error{Kind: apperr.KindConflict, Message: pqErr.Message, Err: err}
		}
	}
	return err
}
