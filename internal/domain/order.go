package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer — покупатель. Ядру важен только факт существования.
type Customer struct {
	ID string `json:"id"`
}

// Product — снимок товара каталога на момент чтения.
type Product struct {
	ID                string          `json:"id"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity int             `json:"available_quantity"`
}

// OrderLineRequest — строка входящего запроса на заказ.
type OrderLineRequest struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

// OrderLine — проверенная строка заказа с зафиксированной ценой.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal — стоимость строки: количество × цена.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order — доменная сущность заказа. После создания не изменяется.
type Order struct {
	ID         uuid.UUID   `json:"id"`
	CustomerID string      `json:"customer_id"`
	Lines      []OrderLine `json:"products"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// StockAdjustment — новое значение остатка товара.
// ExpectedQuantity хранит остаток из снимка и используется как условие записи.
type StockAdjustment struct {
	ProductID        string
	ExpectedQuantity int
	NewQuantity      int
}
