// Job - уведомления о стриках под угрозой потери
// Запускается сразу и затем каждые STREAK_SWEEP_INTERVAL. Журнал и стрики не меняются
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	config "github.com/glkeru/loyalty/rewards/internal/config"
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

	a, err := app.New(ctx, logger)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer a.Close()

	sweep := a.SweepService(config.Workers("STREAK_SWEEP_COUNT", 5))
	once := config.String("STREAK_SWEEP_ONCE", "") == "true"
	ticker := time.NewTicker(config.Duration("STREAK_SWEEP_INTERVAL", time.Hour))
	defer ticker.Stop()

	for {
		if _, err := sweep.Sweep(ctx, time.Now()); err != nil {
			logger.Error(err.Error())
		}
		if once {
			logger.Info("Job streak sweep is finished")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
