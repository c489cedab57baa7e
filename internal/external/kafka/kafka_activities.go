package rewards

import (
	"context"
	"errors"
	"sync"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicActivities = "activities"
	TopicReturns    = "returns"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Читатель топика. Смещение фиксируется после обработки сообщения
type KafkaReader struct {
	reader messageReader
	logger *zap.Logger
}

func NewReader(topic string, group string, logger *zap.Logger) (*KafkaReader, error) {
	// config
	kafkaurl, err := config.Required("KAFKA_URL")
	if err != nil {
		return nil, err
	}
	kafkaport, err := config.Required("KAFKA_PORT")
	if err != nil {
		return nil, err
	}

	kafkaconfig := kafka.ReaderConfig{
		Brokers: []string{kafkaurl + ":" + kafkaport},
		Topic:   topic,
		GroupID: group,
	}
	return &KafkaReader{kafka.NewReader(kafkaconfig), logger}, nil
}

func (k *KafkaReader) Close() error {
	return k.reader.Close()
}

// Чтение до отмены ctx, не более workers сообщений одновременно.
// Обработчики идемпотентны, поэтому сообщение фиксируется и после ошибки обработки
func (k *KafkaReader) Run(ctx context.Context, workers int, handle func(ctx context.Context, body []byte) error) error {
	if workers < 1 {
		workers = 1
	}
	wg := &sync.WaitGroup{}
	semaphore := make(chan struct{}, workers)
	defer wg.Wait()

	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		wg.Add(1)
		go func(msg kafka.Message) {
			defer wg.Done()
			defer func() { <-semaphore }()
			if err := handle(ctx, msg.Value); err != nil {
				k.logger.Error("kafka message",
					zap.String("topic", msg.Topic),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			if err := k.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
				k.logger.Error("kafka commit", zap.Error(err))
			}
		}(msg)
	}
}
