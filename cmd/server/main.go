// gRPC server - профиль и история XP транзакций
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	serv "github.com/glkeru/loyalty/rewards/internal/api/grpc"
	app "github.com/glkeru/loyalty/rewards/internal/app"
	config "github.com/glkeru/loyalty/rewards/internal/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// config
	port, err := config.Required("REWARDS_GRPC_PORT")
	if err != nil {
		panic(err)
	}
	// log
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	a, err := app.New(context.Background(), logger)
	if err != nil {
		logger.Error(err.Error())
		panic(err)
	}
	defer a.Close()

	lis, err := net.Listen("tcp", "0.0.0.0:"+port)
	if err != nil {
		panic(err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	grpcServer := grpc.NewServer()
	serv.RegisterProfileServer(grpcServer, serv.NewProfileService(a.Service, logger))

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	<-interrupt
	grpcServer.GracefulStop()
}
