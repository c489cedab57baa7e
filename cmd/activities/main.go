// Job - начисление XP за действия пользователей и покупки
// Опрос Kafka -> правила начисления, стрики, уведомления
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	kafka "github.com/glkeru/loyalty/rewards/internal/external/kafka"
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

	// kafka
	reader, err := kafka.NewReader(kafka.TopicActivities, config.String("KAFKA_GROUP", "rewards"), logger)
	if err != nil {
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

	// start
	err = reader.Run(ctx, config.Workers("REWARDS_ACTIVITIES_COUNT", 5), a.Service.HandleActivity)
	if err != nil {
		logger.Error(err.Error())
		return
	}
	logger.Info("activities job stopped")
}
