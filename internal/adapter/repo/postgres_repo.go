package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// checkViolation — код ошибки Postgres для нарушения CHECK.
const checkViolation = "23514"

// querier — общее подмножество pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connect — открыть пул соединений и проверить доступность базы.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PostgresStore реализует репозитории и транзакционную область поверх pgx.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// WithinTx выполняет fn в транзакции READ COMMITTED. Остатки товаров
// блокируются при чтении (FOR UPDATE), поэтому параллельные заказы
// на одни и те же товары выполняются по очереди.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(r domain.Repositories) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// после Commit откат ничего не делает
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(repos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) Customers() domain.CustomerRepository { return repos{q: s.Pool}.Customers() }
func (s *PostgresStore) Products() domain.ProductRepository   { return repos{q: s.Pool}.Products() }
func (s *PostgresStore) Orders() domain.OrderRepository       { return repos{q: s.Pool}.Orders() }

type repos struct {
	q querier
}

func (r repos) Customers() domain.CustomerRepository { return customerRepo{q: r.q} }
func (r repos) Products() domain.ProductRepository   { return productRepo{q: r.q} }
func (r repos) Orders() domain.OrderRepository       { return orderRepo{q: r.q} }

type customerRepo struct {
	q querier
}

func (r customerRepo) FindByID(ctx context.Context, id string) (domain.Customer, bool, error) {
	var c domain.Customer
	err := r.q.QueryRow(ctx, `SELECT id FROM customers WHERE id = $1`, id).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("select customer: %w", err)
	}
	return c, true, nil
}

type productRepo struct {
	q querier
}

func (r productRepo) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// порядок по id, чтобы параллельные транзакции брали блокировки одинаково
	rows, err := r.q.Query(ctx, `
SELECT id, unit_price::text, available_quantity
FROM products
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &price, &p.AvailableQuantity); err != nil {
			return nil, err
		}
		if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateQuantity пишет остаток только если он не изменился с момента чтения.
func (r productRepo) UpdateQuantity(ctx context.Context, adjustments []domain.StockAdjustment) error {
	for _, a := range adjustments {
		tag, err := r.q.Exec(ctx, `
UPDATE products SET available_quantity = $1
WHERE id = $2 AND available_quantity = $3`, a.NewQuantity, a.ProductID, a.ExpectedQuantity)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
				return domain.InsufficientStock(a.ProductID)
			}
			return fmt.Errorf("update product %s: %w", a.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return &domain.ProductError{ProductID: a.ProductID, Err: domain.ErrStockConflict}
		}
	}
	return nil
}

var (
	_ domain.UnitOfWork   = (*PostgresStore)(nil)
	_ domain.Repositories = (*PostgresStore)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
  id text PRIMARY KEY
)`,
	`CREATE TABLE IF NOT EXISTS products (
  id text PRIMARY KEY,
  unit_price numeric(12,2) NOT NULL CHECK (unit_price >= 0),
  available_quantity integer NOT NULL CHECK (available_quantity >= 0)
)`,
	`CREATE TABLE IF NOT EXISTS orders (
  id uuid PRIMARY KEY,
  customer_id text NOT NULL REFERENCES customers(id),
  created_at timestamptz NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
  order_id uuid NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  line_no integer NOT NULL,
  product_id text NOT NULL REFERENCES products(id),
  quantity integer NOT NULL CHECK (quantity > 0),
  unit_price numeric(12,2) NOT NULL,
  PRIMARY KEY (order_id, line_no)
)`,
}

// EnsureSchema — создать необходимые таблицы, если отсутствуют.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
