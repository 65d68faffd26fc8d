package usecase

import "github.com/example/order-placement-service/internal/domain"

// Assemble превращает проверенные строки в строки заказа, сохраняя порядок запроса.
func Assemble(validated []ValidatedLine) []domain.OrderLine {
	lines := make([]domain.OrderLine, len(validated))
	for i, v := range validated {
		lines[i] = domain.OrderLine{
			ProductID: v.ProductID,
			Quantity:  v.Quantity,
			UnitPrice: v.UnitPrice,
		}
	}
	return lines
}
