package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const selectOrders = `
SELECT o.id::text, o.customer_id, o.created_at, l.product_id, l.quantity, l.unit_price::text
FROM orders o
LEFT JOIN order_lines l ON l.order_id = o.id`

type orderRepo struct {
	q querier
}

func (r orderRepo) Create(ctx context.Context, customer domain.Customer, lines []domain.OrderLine) (domain.Order, error) {
	o := domain.Order{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Lines:      append([]domain.OrderLine(nil), lines...),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	if _, err := r.q.Exec(ctx, `INSERT INTO orders(id, customer_id, created_at) VALUES($1, $2, $3)`,
		o.ID.String(), o.CustomerID, o.CreatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	if len(o.Lines) == 0 {
		return o, nil
	}
	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_lines(order_id, line_no, product_id, quantity, unit_price)
VALUES($1, $2, $3, $4, $5)`, o.ID.String(), i, l.ProductID, l.Quantity, l.UnitPrice.String())
	}
	br := r.q.SendBatch(ctx, batch)
	for range o.Lines {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return domain.Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return domain.Order{}, fmt.Errorf("insert order lines: %w", err)
	}
	return o, nil
}

func (r orderRepo) FindByID(ctx context.Context, id string) (domain.Order, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, false, nil
	}
	var (
		found domain.Order
		ok    bool
	)
	err := r.scan(ctx, selectOrders+` WHERE o.id = $1 ORDER BY l.line_no`, []any{id}, func(o domain.Order) error {
		found, ok = o, true
		return nil
	})
	return found, ok, err
}

func (r orderRepo) LoadAll(ctx context.Context, fn func(o domain.Order) error) error {
	return r.scan(ctx, selectOrders+` ORDER BY o.created_at, o.id, l.line_no`, nil, fn)
}

// scan собирает заказы из строк JOIN; строки одного заказа идут подряд.
func (r orderRepo) scan(ctx context.Context, sql string, args []any, fn func(o domain.Order) error) error {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		cur     domain.Order
		started bool
	)
	for rows.Next() {
		var (
			id, customerID string
			createdAt      time.Time
			productID      *string
			quantity       *int
			price          *string
		)
		if err := rows.Scan(&id, &customerID, &createdAt, &productID, &quantity, &price); err != nil {
			return err
		}
		if !started || cur.ID.String() != id {
			if started {
				if err := fn(cur); err != nil {
					return err
				}
			}
			oid, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("order id %q: %w", id, err)
			}
			cur = domain.Order{ID: oid, CustomerID: customerID, CreatedAt: createdAt.UTC()}
			started = true
		}
		if productID == nil {
			continue
		}
		unitPrice, err := decimal.NewFromString(*price)
		if err != nil {
			return fmt.Errorf("order %s line price %q: %w", id, *price, err)
		}
		cur.Lines = append(cur.Lines, domain.OrderLine{ProductID: *productID, Quantity: *quantity, UnitPrice: unitPrice})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if started {
		return fn(cur)
	}
	return nil
}

var _ domain.OrderRepository = orderRepo{}
