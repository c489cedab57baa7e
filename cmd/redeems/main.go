// Job - списание XP по запросам из RabbitMQ
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	rabbit "github.com/glkeru/loyalty/rewards/internal/external/rabbitmq"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"go.uber.org/zap"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// rabbitmq
	reader, err := rabbit.NewRabbitConsumer()
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer reader.Close()

	// storage, catalog, services
	a, err := app.New(ctx, logger)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer a.Close()

	// workers
	count := config.Workers("REWARDS_REDEEM_COUNT", 5)
	wg := &sync.WaitGroup{}
	wg.Add(count)
	for i := 0; i < count; i++ {
		go worker(ctx, a.Service, wg, logger, reader)
	}
	wg.Wait()
}

// worker for rabbitmq messages
func worker(ctx context.Context, serv *services.RewardsService, wg *sync.WaitGroup, logger *zap.Logger, reader *rabbit.RabbitConsumer) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-reader.Msg:
			if !ok {
				return
			}
			redeemID, err := serv.HandleRedeem(ctx, msg.Body)
			if err != nil {
				logger.Error("redeem", zap.String("redeem", redeemID), zap.Error(err))
			}
			// без идентификатора ответить некуда
			if redeemID == "" {
				_ = msg.Nack(false, false)
				continue
			}
			if err = reader.Processed(ctx, redeemID, err); err != nil {
				logger.Error(err.Error())
				_ = msg.Nack(false, true)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
