package rewards

import (
	"context"
	"encoding/json"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	queue    = "redeems"
	queueout = "confirms"
)

// Подключение к RabbitMQ из окружения
func Dial() (*amqp.Connection, error) {
	rabbiturl, err := config.Required("RABBIT_URL")
	if err != nil {
		return nil, err
	}
	rabbitport, err := config.Required("RABBIT_PORT")
	if err != nil {
		return nil, err
	}
	rabbituser, err := config.Required("RABBIT_USER")
	if err != nil {
		return nil, err
	}
	rabbitpass, err := config.Required("RABBIT_PASSWORD")
	if err != nil {
		return nil, err
	}
	vhost := config.String("RABBIT_VHOST", "rewards")
	return amqp.Dial("amqp://" + rabbituser + ":" + rabbitpass + "@" + rabbiturl + ":" + rabbitport + "/" + vhost)
}

func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

// Списания: читаем redeems, отвечаем в confirms
type RabbitConsumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Msg   <-chan amqp.Delivery
	chout *amqp.Channel
}

func NewRabbitConsumer() (rabbit *RabbitConsumer, err error) {
	conn, err := Dial()
	if err != nil {
		return nil, err
	}
	// канал для входящих
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err = declare(ch, queue); err != nil {
		conn.Close()
		return nil, err
	}
	// prefetch по числу воркеров
	if err = ch.Qos(config.Workers("REWARDS_REDEEM_COUNT", 5), 0, false); err != nil {
		conn.Close()
		return nil, err
	}

	// канал для исходящих
	chout, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err = declare(chout, queueout); err != nil {
		conn.Close()
		return nil, err
	}

	msg, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitConsumer{conn, ch, msg, chout}, nil
}

func (r *RabbitConsumer) Close() {
	r.ch.Close()
	r.chout.Close()
	r.conn.Close()
}

type RedeemConfirm struct {
	RedeemID string `json:"redeemId"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// подтверждение списания
func (r *RabbitConsumer) Processed(ctx context.Context, redeemID string, procErr error) error {
	st := &RedeemConfirm{RedeemID: redeemID, Success: procErr == nil}
	if procErr != nil {
		st.Error = procErr.Error()
	}
	msg, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.chout.PublishWithContext(ctx,
		"",       // exchange
		queueout, // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         msg,
		})
}
