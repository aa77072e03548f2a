package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"crypto-draft-bot/internal/domain"
	"crypto-draft-bot/internal/infra/metrics"
)

// RabbitDraftQueue реализует очередь задач поверх AMQP.
type RabbitDraftQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	consumeOnce sync.Once
	consumeErr  error
	deliveries  <-chan amqp.Delivery
}

// NewRabbitDraftQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitDraftQueue(amqpURL, queue string) (*RabbitDraftQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitDraftQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitDraftQueue) Enqueue(ctx context.Context, job domain.DraftJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive читает задачу из очереди. Подписка на доставку создаётся лениво,
// чтобы процессы, которые только публикуют, не резервировали сообщения.
func (q *RabbitDraftQueue) Receive(ctx context.Context) (domain.DraftJob, domain.DraftAckFunc, error) {
	q.consumeOnce.Do(func() {
		if err := q.ch.Qos(1, 0, false); err != nil {
			q.consumeErr = fmt.Errorf("set qos: %w", err)
			return
		}
		deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			q.consumeErr = fmt.Errorf("consume: %w", err)
			return
		}
		q.deliveries = deliveries
	})
	if q.consumeErr != nil {
		return domain.DraftJob{}, nil, q.consumeErr
	}

	select {
	case <-ctx.Done():
		return domain.DraftJob{}, nil, ctx.Err()
	case msg, ok := <-q.deliveries:
		if !ok {
			return domain.DraftJob{}, nil, errors.New("rabbitmq queue: канал доставки закрыт")
		}
		var job domain.DraftJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			_ = msg.Nack(false, false)
			return domain.DraftJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return msg.Ack(false)
			}
			return msg.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close освобождает канал и соединение.
func (q *RabbitDraftQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
