package usecase

import (
	"context"
	"errors"

	"github.com/example/order-placement-service/internal/domain"
	"go.uber.org/zap"
)

// State — шаг сценария оформления заказа.
type State int

const (
	ValidatingCustomer State = iota
	ValidatingProducts
	Assembling
	PersistingOrder
	ReconcilingStock
	Done
)

func (s State) String() string {
	switch s {
	case ValidatingCustomer:
		return "validating_customer"
	case ValidatingProducts:
		return "validating_products"
	case Assembling:
		return "assembling"
	case PersistingOrder:
		return "persisting_order"
	case ReconcilingStock:
		return "reconciling_stock"
	case Done:
		return "done"
	}
	return "unknown"
}

// CreateOrder — оформить заказ: проверить покупателя и товары, зафиксировать цены,
// сохранить заказ и списать остатки в одной транзакции.
type CreateOrder struct {
	Tx        domain.UnitOfWork
	Validator Validator
	Cache     domain.OrderCache
	Events    domain.OrderEventPublisher
	Log       *zap.Logger
}

func (uc CreateOrder) Execute(ctx context.Context, customerID string, lines []domain.OrderLineRequest) (domain.Order, error) {
	log := uc.logger().With(zap.String("customer_id", customerID), zap.Int("lines", len(lines)))
	if err := checkRequest(customerID, lines); err != nil {
		log.Warn("order request rejected", zap.Error(err))
		return domain.Order{}, err
	}

	var (
		order domain.Order
		state = ValidatingCustomer
	)
	err := uc.Tx.WithinTx(ctx, func(r domain.Repositories) error {
		customer, found, err := r.Customers().FindByID(ctx, customerID)
		if err != nil {
			return &domain.PersistenceError{Stage: "find customer", Err: err}
		}
		if !found {
			return domain.ErrCustomerNotFound
		}

		state = ValidatingProducts
		products, err := r.Products().FindAllByID(ctx, productIDs(lines))
		if err != nil {
			return &domain.PersistenceError{Stage: "find products", Err: err}
		}
		snapshot := NewSnapshot(products)
		validated, err := uc.validator().Validate(found, lines, snapshot)
		if err != nil {
			return err
		}

		state = Assembling
		orderLines := Assemble(validated)

		state = PersistingOrder
		order, err = r.Orders().Create(ctx, customer, orderLines)
		if err != nil {
			return &domain.PersistenceError{Stage: "create order", Err: err}
		}

		state = ReconcilingStock
		return StockReconciler{}.Reconcile(ctx, r.Products(), order.Lines, snapshot)
	})
	if err != nil {
		if !isRejection(err) {
			var pe *domain.PersistenceError
			if !errors.As(err, &pe) {
				err = &domain.PersistenceError{Stage: "transaction", Err: err}
			}
			log.Error("order persistence failed, nothing committed", zap.Stringer("state", state), zap.Error(err))
			return domain.Order{}, err
		}
		log.Warn("order rejected", zap.Stringer("state", state), zap.Error(err))
		return domain.Order{}, err
	}

	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.Total().String()),
		zap.Stringer("state", Done),
	)
	uc.afterCommit(ctx, log, order)
	return order, nil
}

// afterCommit обновляет кэш и публикует событие. Заказ уже сохранён,
// поэтому ошибки здесь только логируются.
func (uc CreateOrder) afterCommit(ctx context.Context, log *zap.Logger, o domain.Order) {
	if uc.Cache != nil {
		if err := uc.Cache.Set(ctx, o); err != nil {
			log.Warn("cache order", zap.String("order_id", o.ID.String()), zap.Error(err))
		}
	}
	if uc.Events != nil {
		if err := uc.Events.PublishOrderCreated(ctx, o); err != nil {
			log.Warn("publish order created", zap.String("order_id", o.ID.String()), zap.Error(err))
		}
	}
}

func (uc CreateOrder) validator() Validator {
	if uc.Validator == nil {
		return PerLineValidator{}
	}
	return uc.Validator
}

func (uc CreateOrder) logger() *zap.Logger {
	if uc.Log == nil {
		return zap.NewNop()
	}
	return uc.Log
}

func checkRequest(customerID string, lines []domain.OrderLineRequest) error {
	if customerID == "" {
		return domain.Invalid("customer_id is required")
	}
	for i, l := range lines {
		if l.ProductID == "" {
			return domain.Invalid("line %d: product id is required", i)
		}
		if l.Quantity <= 0 {
			return domain.Invalid("line %d: quantity must be positive for product %s", i, l.ProductID)
		}
	}
	return nil
}

func productIDs(lines []domain.OrderLineRequest) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// isRejection — ошибка проверки запроса, а не сбой хранилища.
func isRejection(err error) bool {
	var pe *domain.ProductError
	return errors.Is(err, domain.ErrCustomerNotFound) ||
		errors.Is(err, domain.ErrNoProductsFound) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.As(err, &pe)
}
