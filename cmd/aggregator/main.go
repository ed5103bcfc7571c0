package main

import (
	"context"
	"log"

	router "github.com/Renal37/dessert-aggregator/internal/app"
	"github.com/Renal37/dessert-aggregator/internal/database"
	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/rabbitmq"
	"github.com/Renal37/dessert-aggregator/internal/services"
	"github.com/Renal37/dessert-aggregator/internal/utils"
	"github.com/Renal37/dessert-aggregator/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	config, err := NewConfig()
	if err != nil {
		log.Fatalf("Config wasn't loaded due to %s", err)
	}

	if err := logger.Initialize(config.logLevel, config.env); err != nil {
		log.Fatalf("Logger wasn't initialized due to %s", err)
	}
	defer logger.Log.Sync()

	ctx := utils.HandleTerminationProcess(context.Background(), func() {
		logger.Log.Info("termination signal received, shutting down")
	})

	db, err := database.New(ctx, config.dsn)
	if err != nil {
		logger.Log.Fatal("database wasn't initialized", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Log.Fatal("migrations weren't run", zap.Error(err))
	}

	publisher, err := rabbitmq.NewPublisher(config.amqpURL, config.eventsQueue)
	if err != nil {
		logger.Log.Fatal("event publisher wasn't initialized", zap.Error(err))
	}
	defer publisher.Close()

	consumer, err := rabbitmq.NewConsumer(config.amqpURL, config.prefetch)
	if err != nil {
		logger.Log.Fatal("event consumer wasn't initialized", zap.Error(err))
	}
	defer consumer.Close()

	aggregateService := services.NewAggregateService(db, services.AggregateConfig{
		Location:        config.bucketLocation,
		RollingInterval: config.rollingInterval,
		EventRetention:  config.eventRetention,
	})

	jobQueueService := services.NewJobQueueService(ctx, 100, 2)
	defer jobQueueService.Shutdown()

	if err := aggregateService.ScheduleMaintenance(jobQueueService); err != nil {
		logger.Log.Fatal("aggregate maintenance wasn't scheduled", zap.Error(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return workers.NewEventWorker(consumer, aggregateService, config.eventsQueue).Start(groupCtx)
	})

	group.Go(func() error {
		return router.New(
			router.Config{Endpoint: config.endpoint},
			services.NewAuthService(db, publisher),
			services.NewJWTService(config.authSecretKey),
			services.NewOrderService(db, publisher, config.deliveryFee),
			aggregateService,
		).Run(groupCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Log.Error("service stopped with error", zap.Error(err))
		return
	}

	logger.Log.Info("service stopped")
}
