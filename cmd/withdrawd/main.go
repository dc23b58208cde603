package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/DrGermanius/withdraw/internal"
	"github.com/DrGermanius/withdraw/internal/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	//decimals at json as numbers
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	sugaredLogger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer sugaredLogger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	defer db.Close()

	if err = db.PingContext(ctx); err != nil {
		sugaredLogger.Fatalf("database is unreachable: %s", err.Error())
	}
	if err = migrations.Up(db); err != nil {
		sugaredLogger.Fatal(err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	if err = rdb.Ping(ctx).Err(); err != nil {
		sugaredLogger.Fatalf("redis is unreachable: %s", err.Error())
	}

	delays, err := cfg.RetryDelays()
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	topology := Topology{Queue: cfg.QueueName, RetryDelays: delays}

	queue, err := NewRabbitQueue(cfg.RabbitURL, topology, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatal(err)
	}
	defer queue.Close()

	location, err := time.LoadLocation(cfg.InputTimezone)
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	store := NewStore(db, sugaredLogger)
	notifier := NewNotifier(store, NewSMTPMailer(cfg), sugaredLogger)
	settler := NewSettler(store, notifier, cfg.OptimisticDebit, cfg.NotifyTimeout, sugaredLogger)
	service := NewService(store, settler, NewRedisIdempotency(rdb, cfg.IdempotencyTTL, cfg.PendingKeyTTL, sugaredLogger), sugaredLogger)
	handlers := NewHandlers(service, NewRequestValidator(location, cfg.ScheduleHorizon), sugaredLogger)
	scheduler := NewScheduler(store, queue, cfg.SchedulerBatch, cfg.SchedulerReclaimAfter, sugaredLogger)
	consumer := NewConsumer(settler, queue, topology, cfg.QueueHandleTimeout, sugaredLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx, cfg.SchedulerInterval); err != nil {
			sugaredLogger.Errorw("scheduler stopped with error", "error", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := queue.Consume(ctx, consumer, cfg.QueueWorkers, cfg.QueuePrefetch); err != nil {
			sugaredLogger.Errorw("consumer stopped with error", "error", err)
			stop()
		}
	}()

	app := fiber.New()
	app.Use(logger.New())
	handlers.Routes(app, JWTMiddleware(cfg.JWTSecret))

	go func() {
		if err := app.Listen(cfg.RunAddress); err != nil {
			sugaredLogger.Errorw("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	sugaredLogger.Info("Shutting down service...")

	if err = app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		sugaredLogger.Errorw("http shutdown failed", "error", err)
	}
	wg.Wait()
	settler.Wait()
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	zc.Level = lvl

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return z.Sugar(), nil
}
