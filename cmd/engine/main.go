// HTTP API движка наград: профиль, действия, списания, стрики, корзина
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/glkeru/loyalty/rewards/internal/api"
	app "github.com/glkeru/loyalty/rewards/internal/app"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	tracing "github.com/glkeru/loyalty/rewards/observability/otel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// config
	port, err := config.Required("ENGINE_PORT")
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// tracing
	shutdown, err := tracing.InitTracer(ctx, "rewards-engine", logger)
	if err != nil {
		logger.Warn("tracing is disabled", zap.Error(err))
	}
	defer shutdown()

	// storage, catalog, services
	a, err := app.New(ctx, logger)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer a.Close()

	// api handlers
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", otelhttp.NewHandler(api.NewHandler(a.Service, logger), "rewards-engine"))
	srv := &http.Server{
		Handler:      mux,
		Addr:         ":" + port,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()
	logger.Info("engine started", zap.String("port", port))

	// shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	timeout, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer tcancel()
	if err = srv.Shutdown(timeout); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
