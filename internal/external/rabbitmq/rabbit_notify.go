package rewards

import (
	"context"
	"encoding/json"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const queuenotify = "notifications"

// Уведомления в очередь notifications. MessageId - ключ идемпотентности
type RabbitNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitNotifier() (*RabbitNotifier, error) {
	conn, err := Dial()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err = declare(ch, queuenotify); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitNotifier{conn, ch}, nil
}

func (r *RabbitNotifier) Notify(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.ch.PublishWithContext(ctx,
		"",          // exchange
		queuenotify, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.IdempotencyKey,
			Type:         string(n.Type),
			Timestamp:    n.CreatedAt,
			Body:         body,
		})
}

func (r *RabbitNotifier) Close() {
	r.ch.Close()
	r.conn.Close()
}
