package natsstan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	stan "github.com/nats-io/stan.go"
	"github.com/shopspring/decimal"
)

// Connect — подключение к кластеру NATS Streaming.
func Connect(clusterID, clientID, url string) (stan.Conn, error) {
	if clientID == "" {
		clientID = fmt.Sprintf("order-svc-%d", time.Now().UnixNano())
	}
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(url))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	return sc, nil
}

// OrderCreatedEvent — сообщение о созданном заказе.
type OrderCreatedEvent struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Lines      []domain.OrderLine `json:"products"`
	Total      decimal.Decimal    `json:"total"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewOrderCreatedEvent(o domain.Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID.String(),
		CustomerID: o.CustomerID,
		Lines:      o.Lines,
		Total:      o.Total(),
		CreatedAt:  o.CreatedAt,
	}
}

// Publisher — публикация событий о заказах.
type Publisher struct {
	Conn    stan.Conn
	Subject string
}

func (p *Publisher) PublishOrderCreated(_ context.Context, o domain.Order) error {
	b, err := json.Marshal(NewOrderCreatedEvent(o))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.Conn.Publish(p.Subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", p.Subject, err)
	}
	return nil
}

var _ domain.OrderEventPublisher = (*Publisher)(nil)
