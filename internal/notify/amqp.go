package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
)

const notificationsExchange = "notifications"

// notificationMessage is the payload published per dispatch. External
// consumers (a print bridge, a push-notification worker) subscribe by
// routing key.
type notificationMessage struct {
	OrderID      string `json:"order_id"`
	TenantID     string `json:"tenant_id"`
	Number       string `json:"number"`
	CustomerName string `json:"customer_name"`
	Status       string `json:"status"`
	DeliveryType string `json:"delivery_type"`
	Total        string `json:"total"`
	Channel      string `json:"channel"`
	SentAt       int64  `json:"sent_at"`
}

// AMQP publishes dispatches to a RabbitMQ topic exchange. Publishes are
// serialized; the broker connection is shared.
type AMQP struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to the broker and declares the notifications exchange.
func DialAMQP(url string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(notificationsExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQP{conn: conn, ch: ch}, nil
}

// Close tears down the channel and connection.
func (a *AMQP) Close() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func (a *AMQP) Dispatch(ctx context.Context, order domain.Order, channel string) error {
	msg := notificationMessage{
		OrderID:      order.ID.String(),
		TenantID:     order.TenantID.String(),
		Number:       order.Number,
		CustomerName: order.CustomerName,
		Status:       order.Status,
		DeliveryType: order.DeliveryType,
		Total:        order.Total.StringFixed(2),
		Channel:      channel,
		SentAt:       time.Now().UnixMilli(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.PublishWithContext(ctx,
		notificationsExchange,
		routingKey(channel),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func routingKey(channel string) string {
	switch channel {
	case enum.ChannelPrint:
		return "notifications.print"
	case enum.ChannelCustomerAlert:
		return "notifications.customer"
	}
	return "notifications.other"
}
