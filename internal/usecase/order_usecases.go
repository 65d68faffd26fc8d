package usecase

import (
	"context"
	"encoding/json"

	"github.com/example/order-placement-service/internal/domain"
	"go.uber.org/zap"
)

// GetOrderByID — получить заказ из кэша, при промахе — из репозитория.
type GetOrderByID struct {
	Cache domain.OrderCache
	Repo  domain.OrderRepository
	Log   *zap.Logger
}

func (uc GetOrderByID) Execute(ctx context.Context, id string) (domain.Order, error) {
	if o, ok := uc.Cache.Get(ctx, id); ok {
		return o, nil
	}
	if uc.Repo == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	o, ok, err := uc.Repo.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if err := uc.Cache.Set(ctx, o); err != nil {
		uc.logger().Warn("cache order", zap.String("order_id", id), zap.Error(err))
	}
	return o, nil
}

func (uc GetOrderByID) logger() *zap.Logger {
	if uc.Log == nil {
		return zap.NewNop()
	}
	return uc.Log
}

// LoadCache — загрузить все заказы из репозитория в кэш при старте.
type LoadCache struct {
	Repo  domain.OrderRepository
	Cache domain.OrderCache
}

func (uc LoadCache) Execute(ctx context.Context) (int, error) {
	n := 0
	err := uc.Repo.LoadAll(ctx, func(o domain.Order) error {
		if err := uc.Cache.Set(ctx, o); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// OrderRequest — тело запроса на заказ (HTTP и очередь).
type OrderRequest struct {
	CustomerID string                    `json:"customer_id"`
	Products   []domain.OrderLineRequest `json:"products"`
}

// ProcessOrderRequest — оформить заказ из входящего сообщения очереди.
type ProcessOrderRequest struct {
	Create CreateOrder
	Log    *zap.Logger
}

// Execute возвращает ошибку только когда сообщение стоит доставить повторно.
// Отклонённые и битые запросы, как и сбои хранилища, только логируются:
// повтор после сбоя может создать дубль заказа.
func (uc ProcessOrderRequest) Execute(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var req OrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		uc.logger().Warn("invalid order request", zap.Error(err), zap.ByteString("raw", raw))
		return nil
	}
	// результат уже залогирован сценарием
	_, _ = uc.Create.Execute(ctx, req.CustomerID, req.Products)
	return nil
}

func (uc ProcessOrderRequest) logger() *zap.Logger {
	if uc.Log == nil {
		return zap.NewNop()
	}
	return uc.Log
}
