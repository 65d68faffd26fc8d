package usecase

import (
	"math"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Snapshot — товары, прочитанные одним вызовом FindAllByID, по id.
type Snapshot map[string]domain.Product

func NewSnapshot(products []domain.Product) Snapshot {
	s := make(Snapshot, len(products))
	for _, p := range products {
		s[p.ID] = p
	}
	return s
}

// ValidatedLine — строка запроса, прошедшая проверку, с ценой из снимка.
type ValidatedLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Validator решает, можно ли оформить заказ по снимку каталога.
// Проверки идут в фиксированном порядке, возвращается первая ошибка.
type Validator interface {
	Validate(customerFound bool, lines []domain.OrderLineRequest, snapshot Snapshot) ([]ValidatedLine, error)
}

// PerLineValidator сравнивает каждую строку с остатком независимо.
// Повторы одного товара в запросе не суммируются.
type PerLineValidator struct{}

func (PerLineValidator) Validate(customerFound bool, lines []domain.OrderLineRequest, snapshot Snapshot) ([]ValidatedLine, error) {
	return validate(customerFound, lines, snapshot, func(i int) int { return lines[i].Quantity })
}

// AggregateValidator сравнивает с остатком суммарный спрос по товару.
type AggregateValidator struct{}

func (AggregateValidator) Validate(customerFound bool, lines []domain.OrderLineRequest, snapshot Snapshot) ([]ValidatedLine, error) {
	demand := make(map[string]int, len(lines))
	for _, l := range lines {
		demand[l.ProductID] = addQuantity(demand[l.ProductID], l.Quantity)
	}
	return validate(customerFound, lines, snapshot, func(i int) int { return demand[lines[i].ProductID] })
}

// addQuantity складывает количества, останавливаясь на math.MaxInt.
func addQuantity(total, q int) int {
	if q > 0 && total > math.MaxInt-q {
		return math.MaxInt
	}
	return total + q
}

func validate(customerFound bool, lines []domain.OrderLineRequest, snapshot Snapshot, demand func(i int) int) ([]ValidatedLine, error) {
	if !customerFound {
		return nil, domain.ErrCustomerNotFound
	}
	if len(snapshot) == 0 {
		return nil, domain.ErrNoProductsFound
	}
	for _, l := range lines {
		if _, ok := snapshot[l.ProductID]; !ok {
			return nil, domain.ProductNotFound(l.ProductID)
		}
	}
	for i, l := range lines {
		if demand(i) > snapshot[l.ProductID].AvailableQuantity {
			return nil, domain.InsufficientStock(l.ProductID)
		}
	}

	out := make([]ValidatedLine, len(lines))
	for i, l := range lines {
		out[i] = ValidatedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: snapshot[l.ProductID].UnitPrice,
		}
	}
	return out, nil
}
