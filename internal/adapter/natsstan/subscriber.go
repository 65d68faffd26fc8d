package natsstan

import (
	"context"
	"fmt"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	stan "github.com/nats-io/stan.go"
	"go.uber.org/zap"
)

const queueGroup = "order-placement-workers"

// Subscriber — очередь входящих запросов на заказ.
type Subscriber struct {
	Conn    stan.Conn
	Subject string
	Durable string
	AckWait time.Duration
	Log     *zap.Logger
}

// Subscribe регистрирует обработчик. Сообщение подтверждается, если
// обработчик вернул nil; иначе NATS Streaming доставит его повторно.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error {
	log := s.logger()
	ackWait := s.AckWait
	if ackWait == 0 {
		ackWait = 30 * time.Second
	}
	sub, err := s.Conn.QueueSubscribe(s.Subject, queueGroup, func(m *stan.Msg) {
		hCtx, cancel := context.WithTimeout(ctx, ackWait)
		defer cancel()
		if err := handler(hCtx, m.Data); err != nil {
			// не подтверждаем, даём сообщению переотправиться
			log.Warn("order request not acked", zap.Uint64("sequence", m.Sequence), zap.Error(err))
			return
		}
		if err := m.Ack(); err != nil {
			log.Error("ack failed", zap.Uint64("sequence", m.Sequence), zap.Error(err))
		}
	}, stan.DurableName(s.Durable), stan.SetManualAckMode(), stan.AckWait(ackWait), stan.DeliverAllAvailable())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.Subject, err)
	}
	go func() {
		<-ctx.Done()
		// Close сохраняет durable-подписку, в отличие от Unsubscribe
		if err := sub.Close(); err != nil {
			log.Warn("close subscription", zap.Error(err))
		}
	}()
	log.Info("subscribed to order requests", zap.String("subject", s.Subject), zap.String("durable", s.Durable))
	return nil
}

func (s *Subscriber) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)
