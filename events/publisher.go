package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"go-storefront/models"
)

const (
	QueueOrderPlaced   = "order.placed"
	QueuePaymentFailed = "payment.failed"

	publishTimeout = 3 * time.Second
)

// OrderEvent is the message body published for order notifications.
type OrderEvent struct {
	EventID     string             `json:"event_id"`
	EventName   string             `json:"event_name"`
	OccurredAt  time.Time          `json:"occurred_at"`
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	Email       string             `json:"email"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount models.Money       `json:"total_amount"`
	Currency    string             `json:"currency"`
	Items       []models.OrderItem `json:"items"`
}

func newOrderEvent(name string, user *models.User, order *models.Order, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:     uuid.NewString(),
		EventName:   name,
		OccurredAt:  now.UTC(),
		OrderID:     order.ID.Hex(),
		UserID:      order.UserID.Hex(),
		Email:       user.Email,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Items:       order.Items,
	}
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order events to durable queues on the default exchange.
type Publisher struct {
	ch  channel
	now func() time.Time
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, q := range []string{QueueOrderPlaced, QueuePaymentFailed} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch, now: time.Now}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) OrderPlaced(ctx context.Context, user *models.User, order *models.Order) error {
	return p.publish(ctx, QueueOrderPlaced, newOrderEvent(QueueOrderPlaced, user, order, p.now()))
}

func (p *Publisher) PaymentFailed(ctx context.Context, user *models.User, order *models.Order) error {
	return p.publish(ctx, QueuePaymentFailed, newOrderEvent(QueuePaymentFailed, user, order, p.now()))
}

func (p *Publisher) publish(ctx context.Context, queue string, ev OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(pubCtx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}
