package usecase

import (
	"context"
	"errors"

	"github.com/example/order-placement-service/internal/domain"
)

// Adjustments считает новые остатки: одна корректировка на товар,
// спрос по повторяющимся строкам суммируется. Остаток не может уйти ниже нуля.
func Adjustments(lines []domain.OrderLine, snapshot Snapshot) ([]domain.StockAdjustment, error) {
	total := make(map[string]int, len(lines))
	var order []string
	for _, l := range lines {
		if _, seen := total[l.ProductID]; !seen {
			order = append(order, l.ProductID)
		}
		total[l.ProductID] = addQuantity(total[l.ProductID], l.Quantity)
	}

	adjustments := make([]domain.StockAdjustment, 0, len(order))
	for _, id := range order {
		p, ok := snapshot[id]
		if !ok {
			return nil, domain.ProductNotFound(id)
		}
		remaining := p.AvailableQuantity - total[id]
		if remaining < 0 {
			return nil, domain.InsufficientStock(id)
		}
		adjustments = append(adjustments, domain.StockAdjustment{
			ProductID:        id,
			ExpectedQuantity: p.AvailableQuantity,
			NewQuantity:      remaining,
		})
	}
	return adjustments, nil
}

// StockReconciler списывает остатки по сохранённому заказу.
type StockReconciler struct{}

func (StockReconciler) Reconcile(ctx context.Context, products domain.ProductRepository, lines []domain.OrderLine, snapshot Snapshot) error {
	adjustments, err := Adjustments(lines, snapshot)
	if err != nil {
		return err
	}
	if err := products.UpdateQuantity(ctx, adjustments); err != nil {
		var pe *domain.ProductError
		if errors.As(err, &pe) && (errors.Is(err, domain.ErrStockConflict) || errors.Is(err, domain.ErrInsufficientStock)) {
			// остаток успел измениться: для вызывающего это нехватка товара
			return domain.InsufficientStock(pe.ProductID)
		}
		return &domain.PersistenceError{Stage: "update quantity", Err: err}
	}
	return nil
}
