package domain

import "context"

// CustomerRepository — порт чтения покупателей.
type CustomerRepository interface {
	// FindByID возвращает ok=false, если покупатель не найден.
	FindByID(ctx context.Context, id string) (c Customer, ok bool, err error)
}

// ProductRepository — порт каталога и остатков.
type ProductRepository interface {
	// FindAllByID возвращает по одному товару на каждый найденный id.
	// Отсутствующие id просто не попадают в результат.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// UpdateQuantity применяет корректировки атомарно: если текущий остаток
	// товара отличается от ExpectedQuantity, возвращается ErrStockConflict.
	UpdateQuantity(ctx context.Context, adjustments []StockAdjustment) error
}

// OrderRepository — порт для операций персистентности заказов.
type OrderRepository interface {
	// Create присваивает идентификатор и сохраняет заказ вместе со строками.
	Create(ctx context.Context, customer Customer, lines []OrderLine) (Order, error)
	FindByID(ctx context.Context, id string) (Order, bool, error)
	LoadAll(ctx context.Context, fn func(o Order) error) error
}

// Repositories — набор репозиториев, привязанных к одной транзакции.
type Repositories interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
}

// UnitOfWork — транзакционная область хранилища.
// WithinTx фиксирует транзакцию, если fn вернула nil, и откатывает её в любом другом случае.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
}

// OrderCache — порт быстрого доступа к заказам (кэш).
type OrderCache interface {
	Get(ctx context.Context, id string) (Order, bool)
	Set(ctx context.Context, o Order) error
}

// OrderEventPublisher — порт публикации события о созданном заказе.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, o Order) error
}

// MessageSubscriber — порт подписчика на входящие сообщения с запросами заказов.
type MessageSubscriber interface {
	// Subscribe регистрирует обработчик; ack/повторные доставки реализует адаптер.
	Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error
}
